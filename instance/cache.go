// Package instance deduplicates geometry conversion.
//
// Cache.Get converts each distinct piece of geometry once and renders every
// use of it through a lightweight instancing proxy. The shared master node is
// hidden; visibility and transforms live on the proxies. Content that cannot
// be shared (see CanInstance) is converted per call and owned by the
// returned Instance.
package instance

import (
	"errors"
	"fmt"

	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/cache"
	"github.com/gogpu/scenecache/contenthash"
	"github.com/gogpu/scenecache/scene"
)

// Errors returned by GetSamples.
var (
	// ErrSampleMismatch is returned when sample and time counts differ.
	ErrSampleMismatch = errors.New("instance: sample and time counts differ")

	// ErrNoSamples is returned when no samples are given.
	ErrNoSamples = errors.New("instance: no samples")
)

// MasterPrefix prefixes the names of shared master nodes.
const MasterPrefix = "instance:"

// Cache maps geometry content to shared master nodes.
//
// Get and GetSamples are safe for concurrent use. ClearUnused and
// DestroyAll must not run concurrently with them or with a render.
type Cache struct {
	backend backend.Backend
	table   *cache.Table[contenthash.Hash, backend.Node]
}

// NewCache creates an empty cache converting geometry with b.
func NewCache(b backend.Backend) *Cache {
	return &Cache{
		backend: b,
		table:   cache.New[contenthash.Hash, backend.Node](contenthash.Hash.Uint64, b.Destroy),
	}
}

// CanInstance reports whether obj may share a master node given attrs.
//
// Only renderable geometry is shared. Subdivision meshes are shared unless
// adaptive subdivision depends on the view, since each use would then need
// its own tessellation.
func CanInstance(obj scene.Object, attrs *attributes.Attributes) bool {
	if obj == nil || !obj.Kind().Renderable() {
		return false
	}
	if m, ok := obj.(scene.Subdividable); ok && m.Interpolation() != scene.InterpolationLinear {
		return !polyMesh(attrs).ViewDependent()
	}
	return true
}

// Get returns an Instance rendering obj with attrs.
//
// Unsupported objects yield an empty Instance and a nil error. Errors from
// the backend are returned as is.
func (c *Cache) Get(obj scene.Object, attrs *attributes.Attributes) (*Instance, error) {
	if obj == nil {
		return &Instance{}, nil
	}
	convert := func() (backend.Node, error) { return c.backend.Convert(obj) }

	if !CanInstance(obj, attrs) {
		return c.unique(obj.Kind(), attrs, convert)
	}

	h := contenthash.New()
	h.AppendHash(obj.ContentHash())
	appendSubdivision(h, obj, attrs)
	return c.shared(obj.Kind(), h.Sum(), attrs, convert)
}

// GetSamples returns an Instance rendering a motion-blurred object.
// Every sample must describe the same kind of object.
func (c *Cache) GetSamples(samples []scene.Object, times []float32, attrs *attributes.Attributes) (*Instance, error) {
	if len(samples) != len(times) {
		return nil, fmt.Errorf("%w: %d samples, %d times", ErrSampleMismatch, len(samples), len(times))
	}
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	first := samples[0]
	if first == nil {
		return &Instance{}, nil
	}
	convert := func() (backend.Node, error) { return c.backend.ConvertSamples(samples, times) }

	if !CanInstance(first, attrs) {
		return c.unique(first.Kind(), attrs, convert)
	}

	h := contenthash.New()
	for _, s := range samples {
		if s == nil {
			return &Instance{}, nil
		}
		h.AppendHash(s.ContentHash())
	}
	for _, t := range times {
		h.AppendFloat32(t)
	}
	appendSubdivision(h, first, attrs)
	return c.shared(first.Kind(), h.Sum(), attrs, convert)
}

// unique converts content that is not shared.
func (c *Cache) unique(kind scene.Kind, attrs *attributes.Attributes, convert func() (backend.Node, error)) (*Instance, error) {
	n, err := convert()
	if err != nil {
		return nil, fmt.Errorf("instance: convert %s: %w", kind, err)
	}
	if n == nil {
		unsupported(kind)
		return &Instance{}, nil
	}
	applyPolyMesh(n, attrs)
	scenecache.Logger().Debug("instance: converted unshared object", "kind", kind.String())
	return &Instance{backend: c.backend, node: n}, nil
}

// shared finds or builds the master for key and wraps it in a proxy.
func (c *Cache) shared(kind scene.Kind, key contenthash.Hash, attrs *attributes.Attributes, convert func() (backend.Node, error)) (*Instance, error) {
	ref, err := c.table.Acquire(key, func() (backend.Node, bool, error) {
		n, err := convert()
		if err != nil {
			return nil, false, fmt.Errorf("instance: convert %s: %w", kind, err)
		}
		if n == nil {
			return nil, false, nil
		}
		n.SetName(MasterPrefix + key.String())
		applyPolyMesh(n, attrs)
		// The master is only rendered through proxies.
		n.Set("visibility", uint8(0))
		scenecache.Logger().Debug("instance: converted master", "kind", kind.String(), "hash", key.String())
		return n, true, nil
	})
	if err != nil {
		return nil, err
	}
	if ref == nil {
		unsupported(kind)
		return &Instance{}, nil
	}

	proxy, err := c.backend.CreateInstance(ref.Value())
	if err != nil {
		ref.Release()
		return nil, fmt.Errorf("instance: create proxy: %w", err)
	}
	return &Instance{backend: c.backend, node: proxy, master: ref}, nil
}

// ClearUnused destroys every master node without an outstanding Instance
// and returns how many were removed.
func (c *Cache) ClearUnused() int {
	n := c.table.ClearUnused()
	if n > 0 {
		scenecache.Logger().Debug("instance: cleared unused masters", "count", n)
	}
	return n
}

// DestroyAll destroys every master node regardless of outstanding instances.
func (c *Cache) DestroyAll() {
	c.table.DestroyAll()
}

// Len returns the number of cached masters.
func (c *Cache) Len() int {
	return c.table.Len()
}

// Stats returns cache statistics.
func (c *Cache) Stats() cache.Stats {
	return c.table.Stats()
}

func polyMesh(attrs *attributes.Attributes) attributes.PolyMesh {
	if attrs == nil {
		return attributes.DefaultPolyMesh()
	}
	return attrs.PolyMesh
}

// appendSubdivision folds the subdivision settings into the key of meshes
// that are subdivided, since they are baked into the master.
func appendSubdivision(h *contenthash.Hasher, obj scene.Object, attrs *attributes.Attributes) {
	if m, ok := obj.(scene.Subdividable); ok && m.Interpolation() != scene.InterpolationLinear {
		polyMesh(attrs).Hash(h)
	}
}

func applyPolyMesh(n backend.Node, attrs *attributes.Attributes) {
	if n.Type() == backend.NodePolyMesh {
		polyMesh(attrs).Apply(n)
	}
}

func unsupported(kind scene.Kind) {
	scenecache.Logger().Warn("instance: unsupported object", "kind", kind.String())
}
