// Package handle wraps converted objects in the handles the scene traversal
// mutates: transforms and attribute blocks are applied to the object's node
// until the handle is released.
package handle

import (
	"strings"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/instance"
	"github.com/gogpu/scenecache/shader"
)

// State is the lifecycle state of a handle.
type State int

const (
	// Unbound handles have no node. Mutators are ignored.
	Unbound State = iota
	// Bound handles apply every mutation to their node.
	Bound
	// Released handles have dropped their node. Mutators are ignored.
	Released
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bound:
		return "bound"
	case Released:
		return "released"
	default:
		return "unknown"
	}
}

// ObjectHandle is the interface the scene traversal uses to update an
// object after creation.
//
// Mutators may be called any number of times; the latest call wins.
type ObjectHandle interface {
	SetTransform(m mgl32.Mat4)
	SetTransformSamples(samples []mgl32.Mat4, times []float32)
	SetAttributes(attrs *attributes.Attributes)
	State() State
	Release()
}

var (
	_ ObjectHandle = (*Object)(nil)
	_ ObjectHandle = (*Light)(nil)
)

// Object is the handle for geometry and cameras.
type Object struct {
	mu       sync.Mutex
	instance *instance.Instance
	shader   *shader.Handle
	released bool
}

// NewObject returns a handle owning inst. An empty inst gives an Unbound
// handle.
func NewObject(inst *instance.Instance) *Object {
	return &Object{instance: inst}
}

// State implements ObjectHandle.
func (o *Object) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Object) stateLocked() State {
	switch {
	case o.released:
		return Released
	case o.instance.Empty():
		return Unbound
	default:
		return Bound
	}
}

// Node returns the node mutations are applied to, or nil unless Bound.
func (o *Object) Node() backend.Node {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.nodeLocked()
}

func (o *Object) nodeLocked() backend.Node {
	if o.released {
		return nil
	}
	return o.instance.Node()
}

// Instance returns the underlying instance.
func (o *Object) Instance() *instance.Instance {
	return o.instance
}

// SetTransform implements ObjectHandle.
func (o *Object) SetTransform(m mgl32.Mat4) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := o.nodeLocked(); n != nil {
		n.SetMatrix(m)
	}
}

// SetTransformSamples implements ObjectHandle.
// Mismatched sample and time counts are ignored with a warning.
func (o *Object) SetTransformSamples(samples []mgl32.Mat4, times []float32) {
	if len(samples) != len(times) {
		scenecache.Logger().Warn("handle: transform sample and time counts differ",
			"samples", len(samples), "times", len(times))
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if n := o.nodeLocked(); n != nil {
		n.SetMatrixSamples(samples, times)
	}
}

// SetAttributes implements ObjectHandle.
//
// User parameters no longer present in attrs are reset. Shapes also
// receive visibility, culling and shading flags, and are bound to the
// surface shader, of which the handle keeps its own reference.
func (o *Object) SetAttributes(attrs *attributes.Attributes) {
	if attrs == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	n := o.nodeLocked()
	if n == nil {
		return
	}

	for _, param := range n.Params() {
		if !strings.HasPrefix(param, attributes.UserPrefix) {
			continue
		}
		if _, ok := attrs.User[param]; !ok {
			n.Reset(param)
		}
	}
	for name, v := range attrs.User {
		n.Set(name, v)
	}

	if !n.IsShape() {
		return
	}

	n.Set("visibility", uint8(attrs.Visibility))
	n.Set("cull_mode", attrs.Sidedness)
	n.Set("receive_shadows", attrs.Shading&attributes.ReceiveShadows != 0)
	n.Set("self_shadows", attrs.Shading&attributes.SelfShadows != 0)
	n.Set("opaque", attrs.Shading&attributes.Opaque != 0)
	n.Set("matte", attrs.Shading&attributes.Matte != 0)

	previous := o.shader
	o.shader = attrs.SurfaceShader.Retain()
	if root := o.shader.Root(); root != nil {
		n.Set("shader", root)
	} else {
		n.Reset("shader")
	}
	previous.Release()
}

// Release implements ObjectHandle. It destroys the node and drops the
// shader and master references, leaving cached resources to the next sweep.
func (o *Object) Release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return
	}
	o.released = true
	o.instance.Release()
	o.shader.Release()
	o.shader = nil
}
