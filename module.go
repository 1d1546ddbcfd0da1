package block_exec

import (
	"fmt"
	"sync"
)

// ModuleID names a module by publisher address and module name.
type ModuleID struct {
	Address string
	Name    string
}

func (id ModuleID) String() string {
	return id.Address + "::" + id.Name
}

// EntryFunc is a module entry point, executed against the transaction's
// execution context.
type EntryFunc func(*ExecContext) error

type Module struct {
	ID    ModuleID
	Entry map[string]EntryFunc
}

// ModuleResolver resolves module lookups during warm-up and execution.
type ModuleResolver interface {
	LoadModule(ModuleID) (*Module, error)
}

// StaticResolver is a ModuleResolver over a fixed module set.
type StaticResolver struct {
	mods map[ModuleID]*Module
}

var _ ModuleResolver = (*StaticResolver)(nil)

func NewStaticResolver(mods ...*Module) *StaticResolver {
	r := &StaticResolver{mods: make(map[ModuleID]*Module, len(mods))}
	for _, mod := range mods {
		r.mods[mod.ID] = mod
	}
	return r
}

func (r *StaticResolver) LoadModule(id ModuleID) (*Module, error) {
	mod, ok := r.mods[id]
	if !ok {
		return nil, fmt.Errorf("module %s not found", id)
	}
	return mod, nil
}

// moduleCache is the read-through code cache of one VM instance. Resolution
// is content-addressed by module identity, so entries loaded during one
// speculative attempt stay valid for every re-execution.
type moduleCache struct {
	mutex sync.RWMutex
	mods  map[ModuleID]*Module
}

func newModuleCache() *moduleCache {
	return &moduleCache{mods: make(map[ModuleID]*Module)}
}

func (c *moduleCache) get(id ModuleID) (*Module, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	mod, ok := c.mods[id]
	return mod, ok
}

func (c *moduleCache) put(id ModuleID, mod *Module) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.mods[id] = mod
}
