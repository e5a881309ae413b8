package instance

import (
	"sync/atomic"

	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/cache"
)

// Instance is one use of converted geometry.
//
// An instanced Instance owns a proxy node and a reference to the shared
// master. Otherwise it owns its node outright. An empty Instance has no
// node at all; it is what unsupported objects convert to.
type Instance struct {
	backend  backend.Backend
	node     backend.Node
	master   *cache.Ref[backend.Node]
	released atomic.Bool
}

// Node returns the node to transform and shade: the proxy when instanced,
// the owned node otherwise, nil when empty or released.
func (i *Instance) Node() backend.Node {
	if i == nil || i.released.Load() {
		return nil
	}
	return i.node
}

// Master returns the shared master node, or nil.
func (i *Instance) Master() backend.Node {
	if i == nil || i.released.Load() {
		return nil
	}
	return i.master.Value()
}

// Instanced reports whether the Instance renders a shared master.
func (i *Instance) Instanced() bool {
	return i != nil && i.master != nil
}

// Empty reports whether the Instance has no node.
func (i *Instance) Empty() bool {
	return i == nil || i.node == nil
}

// Release destroys the proxy or owned node and drops the master reference.
// Safe on nil and safe to call twice.
func (i *Instance) Release() {
	if i == nil || !i.released.CompareAndSwap(false, true) {
		return
	}
	if i.node != nil {
		i.backend.Destroy(i.node)
	}
	i.master.Release()
}
