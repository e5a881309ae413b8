// Package memory provides an in-process reference backend.
//
// The memory backend keeps every node in a table, compiles WGSL shader
// sources to SPIR-V with naga and "renders" by walking the visible shapes.
// It is the default backend for tests and tools that need real node
// lifetimes without a production renderer.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/naga"
	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/scene"
)

// Package errors for the memory backend.
var (
	// ErrForeignNode is returned when a node created by another backend is passed in.
	ErrForeignNode = errors.New("memory: node belongs to another backend")

	// ErrSampleMismatch is returned when sample and time counts differ.
	ErrSampleMismatch = errors.New("memory: sample and time counts differ")

	// ErrCameraNotFound is returned by Render when the camera option names no camera.
	ErrCameraNotFound = errors.New("memory: camera not found")
)

func init() {
	backend.Register(backend.BackendMemory, func() backend.Backend { return New() })
}

// defaultOptions are the global options every memory backend starts with.
func defaultOptions() map[string]any {
	return map[string]any{
		"AA_samples":   3,
		"xres":         640,
		"yres":         480,
		"aspect_ratio": float32(1),
		"region_min_x": -1,
		"region_min_y": -1,
		"region_max_x": -1,
		"region_max_y": -1,
		"camera":       "",
	}
}

// Option configures a Backend during creation.
type Option func(*Backend)

// WithPassDuration makes every Render pass take at least d.
// Useful to exercise interruption of progressive renders.
func WithPassDuration(d time.Duration) Option {
	return func(b *Backend) {
		b.passDuration = d
	}
}

// WithOption overrides the default value of a global option.
func WithOption(name string, value any) Option {
	return func(b *Backend) {
		b.defaults[name] = value
		b.options[name] = value
	}
}

// Stats describes the work done by the most recent Render calls.
type Stats struct {
	// Passes is the number of completed Render calls.
	Passes int
	// Shapes is the number of visible shapes seen by the last pass.
	Shapes int
	// Instances is the number of visible instance proxies seen by the last pass.
	Instances int
	// AASamples is the AA_samples value of the last pass.
	AASamples int
	// Interrupted is the number of interrupted passes.
	Interrupted int
}

// Backend is the in-memory backend.
type Backend struct {
	nextID atomic.Uint64

	mu     sync.RWMutex
	nodes  map[uint64]*node
	closed bool

	optMu    sync.RWMutex
	options  map[string]any
	defaults map[string]any

	passDuration time.Duration

	renderMu    sync.Mutex
	cancel      context.CancelFunc
	interrupted atomic.Bool
	rendering   atomic.Bool
	stats       Stats
}

// New creates an empty memory backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		nodes:    make(map[uint64]*node),
		options:  defaultOptions(),
		defaults: defaultOptions(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return backend.BackendMemory }

// newNode creates and registers a node.
func (b *Backend) newNode(typ string, shape bool) (*node, error) {
	n := newNode(b.nextID.Add(1), typ, shape)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, backend.ErrClosed
	}
	b.nodes[n.id] = n
	return n, nil
}

// own returns n as a node of this backend.
func (b *Backend) own(n backend.Node) (*node, error) {
	mn, ok := n.(*node)
	if !ok || mn == nil {
		return nil, ErrForeignNode
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.nodes[mn.id] != mn {
		return nil, ErrForeignNode
	}
	return mn, nil
}

// Convert implements backend.Backend.
func (b *Backend) Convert(obj scene.Object) (backend.Node, error) {
	if obj == nil {
		return nil, nil
	}

	switch o := obj.(type) {
	case *scene.Mesh:
		n, err := b.newNode(backend.NodePolyMesh, true)
		if err != nil {
			return nil, err
		}
		n.Set("nsides", len(o.VerticesPerFace))
		n.Set("vidxs", len(o.VertexIDs))
		n.Set("vlist", len(o.P))
		if o.Interpolation() == scene.InterpolationCatmullClark {
			n.Set("subdiv_type", "catclark")
		} else {
			n.Set("subdiv_type", "none")
		}
		return n, nil

	case *scene.Curves:
		n, err := b.newNode("curves", true)
		if err != nil {
			return nil, err
		}
		n.Set("num_points", len(o.VerticesPerCurve))
		n.Set("points", len(o.P))
		n.Set("basis", o.Basis)
		n.Set("radius", o.Width/2)
		return n, nil

	case *scene.Points:
		n, err := b.newNode("points", true)
		if err != nil {
			return nil, err
		}
		n.Set("points", len(o.P))
		n.Set("radius", o.Radius)
		return n, nil

	case *scene.Camera:
		typ := "persp_camera"
		if o.Projection == scene.ProjectionOrthographic {
			typ = "ortho_camera"
		}
		n, err := b.newNode(typ, false)
		if err != nil {
			return nil, err
		}
		if typ == "persp_camera" {
			n.Set("fov", o.FieldOfView)
		}
		n.Set("near_clip", o.ClippingPlanes[0])
		n.Set("far_clip", o.ClippingPlanes[1])
		return n, nil
	}

	return nil, nil
}

// ConvertSamples implements backend.Backend.
// The node type comes from the first sample; every sample must have the
// same kind.
func (b *Backend) ConvertSamples(samples []scene.Object, times []float32) (backend.Node, error) {
	if len(samples) != len(times) {
		return nil, fmt.Errorf("%w: %d samples, %d times", ErrSampleMismatch, len(samples), len(times))
	}
	if len(samples) == 0 {
		return nil, nil
	}
	for _, s := range samples[1:] {
		if s == nil || s.Kind() != samples[0].Kind() {
			return nil, nil
		}
	}

	n, err := b.Convert(samples[0])
	if err != nil || n == nil {
		return n, err
	}
	n.Set("motion_samples", len(samples))
	n.Set("deform_time_samples", append([]float32(nil), times...))
	return n, nil
}

// ConvertShader implements backend.Backend.
//
// Shaders with WGSL Source are compiled with naga; a compile failure
// destroys the nodes created so far and returns the error.
func (b *Backend) ConvertShader(network *scene.ShaderNetwork, prefix string) ([]backend.Node, error) {
	if network == nil || len(network.Shaders) == 0 {
		return nil, backend.ErrEmptyNetwork
	}

	nodes := make([]backend.Node, 0, len(network.Shaders))
	byHandle := make(map[string]*node, len(network.Shaders))
	fail := func(err error) ([]backend.Node, error) {
		for _, n := range nodes {
			b.Destroy(n)
		}
		return nil, err
	}

	for i := range network.Shaders {
		s := &network.Shaders[i]
		n, err := b.newNode(s.Type, false)
		if err != nil {
			return fail(err)
		}
		nodes = append(nodes, n)

		handle := s.Handle
		if handle == "" {
			handle = strconv.Itoa(i)
		}
		n.SetName(prefix + handle)
		byHandle[handle] = n

		for param, value := range s.Parameters {
			if link, ok := value.(scene.Link); ok {
				target, ok := byHandle[link.Handle]
				if !ok {
					return fail(fmt.Errorf("memory: shader %q links to unknown handle %q", handle, link.Handle))
				}
				n.Set(param, backend.Node(target))
				continue
			}
			n.Set(param, value)
		}

		if s.Source != "" {
			spirv, err := naga.Compile(s.Source)
			if err != nil {
				return fail(fmt.Errorf("memory: compile shader %q: %w", handle, err))
			}
			n.Set("spirv_words", len(spirv)/4)
		}
	}

	return nodes, nil
}

// CreateInstance implements backend.Backend.
func (b *Backend) CreateInstance(master backend.Node) (backend.Node, error) {
	m, err := b.own(master)
	if err != nil {
		return nil, err
	}
	n, err := b.newNode(backend.NodeInstance, true)
	if err != nil {
		return nil, err
	}
	n.Set("node", backend.Node(m))
	return n, nil
}

// Destroy implements backend.Backend.
func (b *Backend) Destroy(n backend.Node) {
	mn, ok := n.(*node)
	if !ok || mn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nodes[mn.id] == mn {
		delete(b.nodes, mn.id)
	}
}

// LookUp implements backend.Backend.
// If several nodes share a name, the oldest one wins.
func (b *Backend) LookUp(name string) backend.Node {
	var found *node
	for _, n := range b.snapshot() {
		if n.Name() == name && (found == nil || n.id < found.id) {
			found = n
		}
	}
	if found == nil {
		return nil
	}
	return found
}

// snapshot returns the current nodes.
func (b *Backend) snapshot() []*node {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*node, 0, len(b.nodes))
	for _, n := range b.nodes {
		out = append(out, n)
	}
	return out
}

// NodeCount returns the number of live nodes.
func (b *Backend) NodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.nodes)
}

// NodesOfType returns the number of live nodes of the given type.
func (b *Backend) NodesOfType(typ string) int {
	count := 0
	for _, n := range b.snapshot() {
		if n.typ == typ {
			count++
		}
	}
	return count
}

// SetOption implements backend.Backend.
// Options prefixed with "user:" are accepted without a default.
func (b *Backend) SetOption(name string, value any) error {
	b.optMu.Lock()
	defer b.optMu.Unlock()
	if _, ok := b.defaults[name]; !ok && !strings.HasPrefix(name, "user:") {
		return fmt.Errorf("%w: %q", backend.ErrUnknownOption, name)
	}
	b.options[name] = value
	return nil
}

// ResetOption implements backend.Backend.
func (b *Backend) ResetOption(name string) error {
	b.optMu.Lock()
	defer b.optMu.Unlock()
	def, ok := b.defaults[name]
	if !ok {
		if strings.HasPrefix(name, "user:") {
			delete(b.options, name)
			return nil
		}
		return fmt.Errorf("%w: %q", backend.ErrUnknownOption, name)
	}
	b.options[name] = def
	return nil
}

// Option implements backend.Backend.
func (b *Backend) Option(name string) (any, bool) {
	b.optMu.RLock()
	defer b.optMu.RUnlock()
	v, ok := b.options[name]
	return v, ok
}

// Render implements backend.Backend.
func (b *Backend) Render(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.renderMu.Lock()
	b.cancel = cancel
	b.interrupted.Store(false)
	b.renderMu.Unlock()

	b.rendering.Store(true)
	defer func() {
		b.rendering.Store(false)
		b.renderMu.Lock()
		b.cancel = nil
		b.renderMu.Unlock()
	}()

	if v, _ := b.Option("camera"); v != nil {
		if cam, _ := v.(string); cam != "" {
			if n := b.LookUp(cam); n == nil || !strings.HasSuffix(n.Type(), "_camera") {
				return fmt.Errorf("%w: %q", ErrCameraNotFound, cam)
			}
		}
	}

	aa, _ := b.Option("AA_samples")
	aaSamples, _ := aa.(int)

	var shapes, instances int
	for _, n := range b.snapshot() {
		if err := b.checkInterrupt(ctx); err != nil {
			return err
		}
		if !n.shape || !n.visible() {
			continue
		}
		shapes++
		if n.typ == backend.NodeInstance {
			instances++
		}
	}

	if b.passDuration > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(b.passDuration):
		}
	}
	if err := b.checkInterrupt(ctx); err != nil {
		return err
	}

	b.renderMu.Lock()
	b.stats.Passes++
	b.stats.Shapes = shapes
	b.stats.Instances = instances
	b.stats.AASamples = aaSamples
	b.renderMu.Unlock()

	scenecache.Logger().Debug("memory: render pass complete",
		"shapes", shapes, "instances", instances, "aa_samples", aaSamples)
	return nil
}

// checkInterrupt returns ErrInterrupted or the context error once the
// render should stop.
func (b *Backend) checkInterrupt(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	b.renderMu.Lock()
	b.stats.Interrupted++
	b.renderMu.Unlock()
	if b.interrupted.Load() {
		return backend.ErrInterrupted
	}
	return ctx.Err()
}

// Interrupt implements backend.Backend.
func (b *Backend) Interrupt() {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()
	if b.cancel != nil {
		b.interrupted.Store(true)
		b.cancel()
	}
}

// Rendering implements backend.Backend.
func (b *Backend) Rendering() bool {
	return b.rendering.Load()
}

// Stats returns the render statistics.
func (b *Backend) Stats() Stats {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()
	return b.stats
}

// Close implements backend.Backend.
func (b *Backend) Close() {
	b.Interrupt()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes = make(map[uint64]*node)
	b.closed = true
}
