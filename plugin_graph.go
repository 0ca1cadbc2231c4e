package wirekit

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// PluginGraph is the registry of plugin types and their instances. It is
// mutable until Seal; a sealed graph is read without locking and every
// mutation fails with GraphSealedError.
type PluginGraph struct {
	mu       sync.RWMutex
	sealed   atomic.Bool
	families map[reflect.Type]*family
	order    []reflect.Type

	// profile name -> plugin type -> instance name
	profiles map[string]map[reflect.Type]string
	profile  string
}

// family holds the instances registered for one plugin type.
type family struct {
	pluginType  reflect.Type
	instances   []*Instance
	defaultName string
	lifecycle   Lifecycle
}

// FamilyInfo describes one plugin type for diagnostics.
type FamilyInfo struct {
	PluginType reflect.Type
	Lifecycle  string
	Default    string
	Instances  []InstanceInfo
}

// InstanceInfo describes one registered instance for diagnostics.
type InstanceInfo struct {
	Name        string
	Concrete    reflect.Type
	Lifecycle   string
	Description string
	Default     bool

	// Filled by Container.WhatDoIHave from compiled plans.
	DependsOn []string
	UsedBy    []string
}

// NewPluginGraph creates an empty, unsealed graph.
func NewPluginGraph() *PluginGraph {
	return &PluginGraph{
		families: make(map[reflect.Type]*family),
		profiles: make(map[string]map[reflect.Type]string),
	}
}

func (f *family) find(name string) (*Instance, int) {
	for i, inst := range f.instances {
		if inst.name == name {
			return inst, i
		}
	}
	return nil, -1
}

func (f *family) names() []string {
	names := make([]string, len(f.instances))
	for i, inst := range f.instances {
		names[i] = inst.name
	}
	return names
}

func (f *family) clone() *family {
	instances := make([]*Instance, len(f.instances))
	copy(instances, f.instances)
	return &family{
		pluginType:  f.pluginType,
		instances:   instances,
		defaultName: f.defaultName,
		lifecycle:   f.lifecycle,
	}
}

func (g *PluginGraph) checkMutable(op string, pluginType reflect.Type) error {
	if g.sealed.Load() {
		return GraphSealedError{Operation: op, PluginType: pluginType}
	}
	return nil
}

func (g *PluginGraph) familyFor(pluginType reflect.Type) *family {
	f, ok := g.families[pluginType]
	if !ok {
		f = &family{pluginType: pluginType}
		g.families[pluginType] = f
		g.order = append(g.order, pluginType)
	}
	return f
}

func checkAssignable(pluginType reflect.Type, inst *Instance) error {
	if pluginType == nil {
		return ErrPluginTypeNil
	}
	if inst == nil {
		return ErrInstanceNil
	}
	if !inst.concrete.AssignableTo(pluginType) {
		return TypeMismatchError{Expected: pluginType, Actual: inst.concrete, Context: "registration"}
	}
	return nil
}

// Register adds inst to the plugin type's family. Registering a name again
// with the same concrete type replaces the earlier instance; with another
// concrete type it fails with DuplicateNameError. The first instance of a
// family becomes its default.
func (g *PluginGraph) Register(pluginType reflect.Type, inst *Instance) error {
	if err := checkAssignable(pluginType, inst); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable("register", pluginType); err != nil {
		return err
	}

	f := g.familyFor(pluginType)
	if existing, idx := f.find(inst.name); existing != nil {
		if existing.concrete != inst.concrete {
			return DuplicateNameError{
				PluginType: pluginType,
				Name:       inst.name,
				Existing:   existing.concrete,
				Incoming:   inst.concrete,
			}
		}
		f.instances[idx] = inst
		return nil
	}

	f.instances = append(f.instances, inst)
	if f.defaultName == "" {
		f.defaultName = inst.name
	}
	return nil
}

// Replace adds inst, replacing any instance with the same name regardless
// of its concrete type.
func (g *PluginGraph) Replace(pluginType reflect.Type, inst *Instance) error {
	if err := checkAssignable(pluginType, inst); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable("replace", pluginType); err != nil {
		return err
	}

	f := g.familyFor(pluginType)
	if _, idx := f.find(inst.name); idx >= 0 {
		f.instances[idx] = inst
		return nil
	}

	f.instances = append(f.instances, inst)
	if f.defaultName == "" {
		f.defaultName = inst.name
	}
	return nil
}

// SetDefault registers inst if needed and makes it the family default.
func (g *PluginGraph) SetDefault(pluginType reflect.Type, inst *Instance) error {
	if err := g.Replace(pluginType, inst); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.families[pluginType].defaultName = inst.name
	return nil
}

// SetDefaultName makes the named instance the family default.
func (g *PluginGraph) SetDefaultName(pluginType reflect.Type, name string) error {
	if pluginType == nil {
		return ErrPluginTypeNil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable("set default of", pluginType); err != nil {
		return err
	}

	f, ok := g.families[pluginType]
	if !ok {
		return MissingInstanceError{PluginType: pluginType, Name: name}
	}
	if inst, _ := f.find(name); inst == nil {
		return MissingInstanceError{PluginType: pluginType, Name: name, Available: f.names()}
	}

	f.defaultName = name
	return nil
}

// SetLifecycle sets the lifecycle used by instances of the family that do
// not set their own.
func (g *PluginGraph) SetLifecycle(pluginType reflect.Type, lifecycle Lifecycle) error {
	if pluginType == nil {
		return ErrPluginTypeNil
	}
	if lifecycle == nil {
		return ErrLifecycleNil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable("set lifecycle of", pluginType); err != nil {
		return err
	}

	g.familyFor(pluginType).lifecycle = lifecycle
	return nil
}

// AddProfile makes the named instance the default of pluginType while
// profile is active. The instance does not need to be registered yet; a
// missing one is reported when it is resolved or validated.
func (g *PluginGraph) AddProfile(profile string, pluginType reflect.Type, name string) error {
	if pluginType == nil {
		return ErrPluginTypeNil
	}
	if profile == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable("add profile for", pluginType); err != nil {
		return err
	}

	m, ok := g.profiles[profile]
	if !ok {
		m = make(map[reflect.Type]string)
		g.profiles[profile] = m
	}
	m[pluginType] = name
	return nil
}

// SetActiveProfile selects the profile a container starts with when no
// WithProfile option is given.
func (g *PluginGraph) SetActiveProfile(profile string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable("set active profile", nil); err != nil {
		return err
	}

	g.profile = profile
	return nil
}

// ActiveProfile returns the profile selected with SetActiveProfile.
func (g *PluginGraph) ActiveProfile() string {
	defer g.rlock()()
	return g.profile
}

// Profiles returns the names of all profiles.
func (g *PluginGraph) Profiles() []string {
	defer g.rlock()()

	names := make([]string, 0, len(g.profiles))
	for name := range g.profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type profileDefault struct {
	pluginType reflect.Type
	name       string
}

// profileDefaults returns the mappings of profile sorted by plugin type.
func (g *PluginGraph) profileDefaults(profile string) []profileDefault {
	defer g.rlock()()

	out := make([]profileDefault, 0, len(g.profiles[profile]))
	for t, name := range g.profiles[profile] {
		out = append(out, profileDefault{pluginType: t, name: name})
	}
	slices.SortFunc(out, func(a, b profileDefault) int {
		return strings.Compare(a.pluginType.String(), b.pluginType.String())
	})
	return out
}

// Include applies modules in order.
func (g *PluginGraph) Include(modules ...Module) error {
	for _, m := range modules {
		if m == nil {
			continue
		}
		if err := m(g); err != nil {
			return err
		}
	}
	return nil
}

// Seal freezes the graph. Sealing twice is a no-op.
func (g *PluginGraph) Seal() *PluginGraph {
	g.mu.Lock()
	g.sealed.Store(true)
	g.mu.Unlock()
	return g
}

// Sealed reports whether the graph is sealed.
func (g *PluginGraph) Sealed() bool {
	return g.sealed.Load()
}

// Clone returns an unsealed copy of the graph. Instances are shared, they
// are immutable.
func (g *PluginGraph) Clone() *PluginGraph {
	defer g.rlock()()

	c := NewPluginGraph()
	for _, t := range g.order {
		c.families[t] = g.families[t].clone()
		c.order = append(c.order, t)
	}
	for name, m := range g.profiles {
		cm := make(map[reflect.Type]string, len(m))
		for t, n := range m {
			cm[t] = n
		}
		c.profiles[name] = cm
	}
	c.profile = g.profile
	return c
}

// rlock read-locks an unsealed graph and returns the matching unlock. A
// sealed graph is read without locking.
func (g *PluginGraph) rlock() func() {
	if g.sealed.Load() {
		return func() {}
	}
	g.mu.RLock()
	return g.mu.RUnlock
}

// Find returns the named instance of pluginType, or its default when name
// is empty.
func (g *PluginGraph) Find(pluginType reflect.Type, name string) (*Instance, error) {
	return g.find(pluginType, name, "")
}

// find is Find with profile defaults applied.
func (g *PluginGraph) find(pluginType reflect.Type, name, profile string) (*Instance, error) {
	if pluginType == nil {
		return nil, ErrPluginTypeNil
	}

	defer g.rlock()()

	f, ok := g.families[pluginType]
	if !ok || len(f.instances) == 0 {
		return nil, MissingInstanceError{PluginType: pluginType, Name: name}
	}

	if name == "" {
		name = g.defaultNameLocked(f, profile)
		if name == "" {
			return nil, MissingInstanceError{PluginType: pluginType, Available: f.names()}
		}
	}

	inst, _ := f.find(name)
	if inst == nil {
		return nil, MissingInstanceError{PluginType: pluginType, Name: name, Available: f.names()}
	}
	return inst, nil
}

func (g *PluginGraph) defaultNameLocked(f *family, profile string) string {
	if profile != "" {
		if name, ok := g.profiles[profile][f.pluginType]; ok {
			return name
		}
	}
	return f.defaultName
}

// hasDefault reports whether pluginType has a default under profile, for
// auto-wiring.
func (g *PluginGraph) hasDefault(pluginType reflect.Type, profile string) bool {
	_, err := g.find(pluginType, "", profile)
	return err == nil
}

// FindAll returns every instance of pluginType in registration order.
func (g *PluginGraph) FindAll(pluginType reflect.Type) []*Instance {
	defer g.rlock()()

	f, ok := g.families[pluginType]
	if !ok {
		return nil
	}
	out := make([]*Instance, len(f.instances))
	copy(out, f.instances)
	return out
}

// Has reports whether pluginType has any instance.
func (g *PluginGraph) Has(pluginType reflect.Type) bool {
	defer g.rlock()()

	f, ok := g.families[pluginType]
	return ok && len(f.instances) > 0
}

// PluginTypes returns the registered plugin types in registration order.
func (g *PluginGraph) PluginTypes() []reflect.Type {
	defer g.rlock()()

	out := make([]reflect.Type, len(g.order))
	copy(out, g.order)
	return out
}

// typeLifecycle returns the family lifecycle of pluginType, or nil.
func (g *PluginGraph) typeLifecycle(pluginType reflect.Type) Lifecycle {
	defer g.rlock()()

	if f, ok := g.families[pluginType]; ok {
		return f.lifecycle
	}
	return nil
}

// Families describes the graph. Defaults reflect the graph's active profile.
func (g *PluginGraph) Families() []FamilyInfo {
	return g.familyInfos(g.ActiveProfile())
}

func (g *PluginGraph) familyInfos(profile string) []FamilyInfo {
	defer g.rlock()()

	infos := make([]FamilyInfo, 0, len(g.order))
	for _, t := range g.order {
		f := g.families[t]
		def := g.defaultNameLocked(f, profile)

		info := FamilyInfo{
			PluginType: t,
			Default:    def,
			Instances:  make([]InstanceInfo, len(f.instances)),
		}
		if f.lifecycle != nil {
			info.Lifecycle = f.lifecycle.String()
		}

		for i, inst := range f.instances {
			info.Instances[i] = InstanceInfo{
				Name:        inst.name,
				Concrete:    inst.concrete,
				Lifecycle:   lifecycleOf(inst, f.lifecycle).String(),
				Description: inst.Description(),
				Default:     inst.name == def,
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// lookupByName finds a registered plugin type by its reflect name, as used
// in configuration files.
func (g *PluginGraph) lookupByName(typeName string) (reflect.Type, bool) {
	defer g.rlock()()

	for _, t := range g.order {
		if t.String() == typeName {
			return t, true
		}
	}
	return nil, false
}
