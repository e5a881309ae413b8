// Package shader deduplicates shader networks.
//
// Cache.Get converts each distinct network once, keyed by the network's
// content hash, and hands out reference-counted Handles. A Handle must be
// kept for as long as any node is bound to its root; ClearUnused destroys
// networks whose handles have all been released.
package shader

import (
	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/cache"
	"github.com/gogpu/scenecache/contenthash"
	"github.com/gogpu/scenecache/scene"
)

// Cache maps shader network content to converted networks.
//
// Get is safe for concurrent use. ClearUnused and DestroyAll must not run
// concurrently with Get or with a render.
type Cache struct {
	backend backend.Backend
	table   *cache.Table[contenthash.Hash, *Network]
}

// NewCache creates an empty cache converting networks with b.
func NewCache(b backend.Backend) *Cache {
	return &Cache{
		backend: b,
		table: cache.New[contenthash.Hash, *Network](contenthash.Hash.Uint64, func(n *Network) {
			n.Destroy()
		}),
	}
}

// Get returns a handle to the converted network, converting it if no
// identical network is cached. Concurrent requests for the same network
// convert it once.
//
// A conversion error is returned to the caller that performed the
// conversion; nothing is cached for it and later requests retry.
func (c *Cache) Get(network *scene.ShaderNetwork) (*Handle, error) {
	if network == nil {
		return nil, ErrNilNetwork
	}

	h := network.ContentHash()
	ref, err := c.table.Acquire(h, func() (*Network, bool, error) {
		n, err := Build(c.backend, network, "shader"+h.String()+"_")
		if err != nil {
			scenecache.Logger().Warn("shader: conversion failed", "hash", h.String(), "err", err)
			return nil, false, err
		}
		scenecache.Logger().Debug("shader: converted network", "hash", h.String(), "nodes", len(n.nodes))
		return n, true, nil
	})
	if err != nil {
		return nil, err
	}
	return &Handle{ref: ref, hash: h}, nil
}

// ClearUnused destroys every cached network without an outstanding Handle
// and returns how many were removed.
func (c *Cache) ClearUnused() int {
	n := c.table.ClearUnused()
	if n > 0 {
		scenecache.Logger().Debug("shader: cleared unused networks", "count", n)
	}
	return n
}

// DestroyAll destroys every cached network regardless of outstanding handles.
func (c *Cache) DestroyAll() {
	c.table.DestroyAll()
}

// Len returns the number of cached networks.
func (c *Cache) Len() int {
	return c.table.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	return c.table.Stats()
}

// Handle is a reference to a cached network.
// The zero of *Handle (nil) is a valid empty handle.
type Handle struct {
	ref  *cache.Ref[*Network]
	hash contenthash.Hash
}

// Root returns the network's root node, or nil.
func (h *Handle) Root() backend.Node {
	if h == nil {
		return nil
	}
	return h.ref.Value().Root()
}

// Network returns the converted network, or nil.
func (h *Handle) Network() *Network {
	if h == nil {
		return nil
	}
	return h.ref.Value()
}

// Hash returns the content hash the network is cached under.
func (h *Handle) Hash() contenthash.Hash {
	if h == nil {
		return contenthash.Hash{}
	}
	return h.hash
}

// Retain returns an independent handle to the same network.
// Retaining nil or a released handle returns nil.
func (h *Handle) Retain() *Handle {
	if h == nil {
		return nil
	}
	ref := h.ref.Retain()
	if ref == nil {
		return nil
	}
	return &Handle{ref: ref, hash: h.hash}
}

// Release drops the reference. Safe on nil and safe to call twice.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.ref.Release()
}
