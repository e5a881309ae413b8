// Package backendtest provides a counting backend for tests.
package backendtest

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/backend/memory"
	"github.com/gogpu/scenecache/scene"
)

// Counting wraps the memory backend and counts conversion calls.
// Hooks may be set before the backend is shared between goroutines.
type Counting struct {
	*memory.Backend

	Converts        atomic.Int32
	SampleConverts  atomic.Int32
	ShaderConverts  atomic.Int32
	InstanceCreates atomic.Int32
	Destroys        atomic.Int32

	// ConvertDelay slows every conversion down to widen race windows.
	ConvertDelay time.Duration

	// ShaderErr, when non-nil, is returned by ConvertShader.
	ShaderErr error

	mu        sync.Mutex
	destroyed []backend.Node
}

// New returns a counting backend over a fresh memory backend.
func New(opts ...memory.Option) *Counting {
	return &Counting{Backend: memory.New(opts...)}
}

// Convert counts and forwards to the memory backend.
func (c *Counting) Convert(obj scene.Object) (backend.Node, error) {
	c.Converts.Add(1)
	c.delay()
	return c.Backend.Convert(obj)
}

// ConvertSamples counts and forwards to the memory backend.
func (c *Counting) ConvertSamples(samples []scene.Object, times []float32) (backend.Node, error) {
	c.SampleConverts.Add(1)
	c.delay()
	return c.Backend.ConvertSamples(samples, times)
}

// ConvertShader counts and forwards to the memory backend unless ShaderErr is set.
func (c *Counting) ConvertShader(network *scene.ShaderNetwork, prefix string) ([]backend.Node, error) {
	c.ShaderConverts.Add(1)
	c.delay()
	if c.ShaderErr != nil {
		return nil, c.ShaderErr
	}
	return c.Backend.ConvertShader(network, prefix)
}

// CreateInstance counts and forwards to the memory backend.
func (c *Counting) CreateInstance(master backend.Node) (backend.Node, error) {
	c.InstanceCreates.Add(1)
	return c.Backend.CreateInstance(master)
}

// Destroy counts, records and forwards to the memory backend.
func (c *Counting) Destroy(n backend.Node) {
	if n == nil {
		return
	}
	c.Destroys.Add(1)
	c.mu.Lock()
	c.destroyed = append(c.destroyed, n)
	c.mu.Unlock()
	c.Backend.Destroy(n)
}

// WasDestroyed reports whether n has been passed to Destroy.
func (c *Counting) WasDestroyed(n backend.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.destroyed {
		if d == n {
			return true
		}
	}
	return false
}

func (c *Counting) delay() {
	if c.ConvertDelay > 0 {
		time.Sleep(c.ConvertDelay)
	}
}
