package testutil

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Engine is the plugin type used throughout the tests.
type Engine interface {
	Cylinders() int
}

// V8Engine is the default engine.
type V8Engine struct {
	cylinders int
	Serial    int64
}

func (e *V8Engine) Cylinders() int { return e.cylinders }

// V6Engine is the economy engine.
type V6Engine struct {
	cylinders int
}

func (e *V6Engine) Cylinders() int { return e.cylinders }

// TurboEngine decorates another engine.
type TurboEngine struct {
	Inner Engine
}

func (e *TurboEngine) Cylinders() int { return e.Inner.Cylinders() }

// Car depends on an Engine.
type Car struct {
	Engine Engine
	Model  string
	Radio  *Radio
}

// Radio is set through a setter.
type Radio struct {
	Station string
}

// Garage holds every engine.
type Garage struct {
	Engines []Engine
}

// Workshop depends twice on the same transient Tool.
type Workshop struct {
	Left  *Tool
	Right *Tool
}

// Tool counts how many times it was built.
type Tool struct {
	ID int64
}

// Counter hands out increasing serials, safe for concurrent use.
type Counter struct {
	n atomic.Int64
}

// Next returns the next serial.
func (c *Counter) Next() int64 {
	return c.n.Add(1)
}

// Count returns the number of serials handed out.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// NewV8 builds a V8 engine with the given cylinders.
func NewV8(cylinders int) *V8Engine {
	return &V8Engine{cylinders: cylinders}
}

// NewV6 builds a V6 engine with the given cylinders.
func NewV6(cylinders int) *V6Engine {
	return &V6Engine{cylinders: cylinders}
}

// NewCar builds a car around an engine.
func NewCar(engine Engine) *Car {
	return &Car{Engine: engine}
}

// NewGarage builds a garage of engines.
func NewGarage(engines []Engine) *Garage {
	return &Garage{Engines: engines}
}

// NewWorkshop builds a workshop with two tools.
func NewWorkshop(left, right *Tool) *Workshop {
	return &Workshop{Left: left, Right: right}
}

// Chicken and Egg depend on each other.
type Chicken struct{ Egg *Egg }
type Egg struct{ Chicken *Chicken }

func NewChicken(egg *Egg) *Chicken { return &Chicken{Egg: egg} }
func NewEgg(chicken *Chicken) *Egg { return &Egg{Chicken: chicken} }

// ErrBroken is returned by failing constructors.
var ErrBroken = errors.New("broken")

// Resource records when it is closed.
type Resource struct {
	Name string

	mu     sync.Mutex
	closed int
	log    *[]string
	err    error
}

// NewResource creates a resource appending its name to log when closed.
func NewResource(name string, log *[]string) *Resource {
	return &Resource{Name: name, log: log}
}

// FailingResource creates a resource whose Close fails.
func FailingResource(name string) *Resource {
	return &Resource{Name: name, err: fmt.Errorf("close %s: %w", name, ErrBroken)}
}

// Close implements io.Closer.
func (r *Resource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed++
	if r.log != nil {
		*r.log = append(*r.log, r.Name)
	}
	return r.err
}

// Closed returns how many times Close was called.
func (r *Resource) Closed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
