package wirekit

import (
	"reflect"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option configures a Container.
type Option interface {
	apply(*options)
}

type options struct {
	logger         *zap.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
	profile        string
	profileSet     bool

	// OnResolved is called after each successful top-level resolution.
	onResolved func(pluginType reflect.Type, obj any, duration time.Duration)

	// OnError is called when a top-level resolution fails.
	onError func(pluginType reflect.Type, err error)
}

// optionFunc adapts a function to Option.
type optionFunc func(*options)

func (f optionFunc) apply(opts *options) {
	f(opts)
}

// WithLogger sets the logger. The container logs at Debug for builds and
// compilations and at Info for graph changes.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(opts *options) {
		opts.logger = logger
	})
}

// WithMetrics records resolutions, builds, cache hits and compilations.
func WithMetrics(m *Metrics) Option {
	return optionFunc(func(opts *options) {
		opts.metrics = m
	})
}

// WithTracerProvider starts a span for every top-level resolution.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return optionFunc(func(opts *options) {
		opts.tracerProvider = tp
	})
}

// WithProfile selects the profile the container starts with, overriding
// the graph's active profile.
func WithProfile(profile string) Option {
	return optionFunc(func(opts *options) {
		opts.profile = profile
		opts.profileSet = true
	})
}

// WithOnResolved registers a callback for successful top-level resolutions.
func WithOnResolved(fn func(pluginType reflect.Type, obj any, duration time.Duration)) Option {
	return optionFunc(func(opts *options) {
		opts.onResolved = fn
	})
}

// WithOnError registers a callback for failed top-level resolutions.
func WithOnError(fn func(pluginType reflect.Type, err error)) Option {
	return optionFunc(func(opts *options) {
		opts.onError = fn
	})
}
