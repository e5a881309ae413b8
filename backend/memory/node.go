package memory

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// node is the memory backend's implementation of backend.Node.
type node struct {
	id    uint64
	typ   string
	shape bool

	mu       sync.RWMutex
	name     string
	matrices []mgl32.Mat4
	times    []float32
	params   map[string]any
}

func newNode(id uint64, typ string, shape bool) *node {
	return &node{
		id:     id,
		typ:    typ,
		shape:  shape,
		params: make(map[string]any),
	}
}

func (n *node) Type() string  { return n.typ }
func (n *node) IsShape() bool { return n.shape }

func (n *node) Name() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.name
}

func (n *node) SetName(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.name = name
}

func (n *node) SetMatrix(m mgl32.Mat4) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matrices = []mgl32.Mat4{m}
	n.times = nil
}

func (n *node) SetMatrixSamples(samples []mgl32.Mat4, times []float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matrices = append([]mgl32.Mat4(nil), samples...)
	n.times = append([]float32(nil), times...)
}

func (n *node) Matrix() mgl32.Mat4 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.matrices) == 0 {
		return mgl32.Ident4()
	}
	return n.matrices[0]
}

// MatrixSamples returns copies of the transform samples and their times.
func (n *node) MatrixSamples() ([]mgl32.Mat4, []float32) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]mgl32.Mat4(nil), n.matrices...), append([]float32(nil), n.times...)
}

func (n *node) Set(param string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.params[param] = value
}

func (n *node) Get(param string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.params[param]
	return v, ok
}

func (n *node) Reset(param string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.params, param)
}

func (n *node) Params() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.params))
	for k := range n.params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// visible reports whether the node contributes to camera rays.
// Shapes without a visibility parameter are visible.
func (n *node) visible() bool {
	v, ok := n.Get("visibility")
	if !ok {
		return true
	}
	mask, ok := v.(uint8)
	return !ok || mask != 0
}
