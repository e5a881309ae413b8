package handle

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/instance"
	"github.com/gogpu/scenecache/shader"
)

// Light is the handle for lights.
//
// A light's renderable node is its light shader, which only arrives with
// the attributes. The handle therefore keeps the light name and the last
// transform itself and applies both to every light shader it builds.
type Light struct {
	object  *Object
	backend backend.Backend
	name    string

	mu       sync.Mutex
	matrices []mgl32.Mat4
	times    []float32
	network  *shader.Network
	released bool
}

// NewLight returns a light handle named name. inst holds the light's
// geometry, if any, and is usually empty.
func NewLight(b backend.Backend, name string, inst *instance.Instance) *Light {
	return &Light{
		object:   NewObject(inst),
		backend:  b,
		name:     name,
		matrices: []mgl32.Mat4{mgl32.Ident4()},
	}
}

// Name returns the light name.
func (l *Light) Name() string {
	return l.name
}

// State implements ObjectHandle. A light is Bound from creation until
// Release, whether or not it has geometry.
func (l *Light) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return Released
	}
	return Bound
}

// Shader returns the light shader root, or nil.
func (l *Light) Shader() backend.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.network.Root()
}

// SetTransform implements ObjectHandle.
func (l *Light) SetTransform(m mgl32.Mat4) {
	l.object.SetTransform(m)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.matrices = []mgl32.Mat4{m}
	l.times = nil
	l.applyTransformLocked()
}

// SetTransformSamples implements ObjectHandle.
func (l *Light) SetTransformSamples(samples []mgl32.Mat4, times []float32) {
	l.object.SetTransformSamples(samples, times)
	if len(samples) != len(times) || len(samples) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.matrices = append([]mgl32.Mat4(nil), samples...)
	l.times = append([]float32(nil), times...)
	l.applyTransformLocked()
}

// SetAttributes implements ObjectHandle. The light shader is rebuilt from
// attrs on every call and given the light's name and transform.
func (l *Light) SetAttributes(attrs *attributes.Attributes) {
	if attrs == nil {
		return
	}
	l.object.SetAttributes(attrs)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}

	l.network.Destroy()
	l.network = nil
	if attrs.LightShader == nil {
		return
	}

	network, err := shader.Build(l.backend, attrs.LightShader, l.name+":")
	if err != nil {
		scenecache.Logger().Warn("handle: light shader failed", "light", l.name, "err", err)
		return
	}
	l.network = network
	if root := network.Root(); root != nil {
		root.SetName(l.name)
	}
	l.applyTransformLocked()
}

func (l *Light) applyTransformLocked() {
	root := l.network.Root()
	if root == nil {
		return
	}
	if len(l.matrices) == 1 {
		root.SetMatrix(l.matrices[0])
		return
	}
	root.SetMatrixSamples(l.matrices, l.times)
}

// Release implements ObjectHandle. The light shader is destroyed.
func (l *Light) Release() {
	l.object.Release()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return
	}
	l.released = true
	l.network.Destroy()
	l.network = nil
}
