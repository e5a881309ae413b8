package backend

import (
	"context"
	"errors"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache/scene"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrUnknownOption is returned by SetOption for parameters the backend does not have.
	ErrUnknownOption = errors.New("backend: unknown option")

	// ErrInterrupted is returned by Render when Interrupt was called.
	ErrInterrupted = errors.New("backend: render interrupted")

	// ErrEmptyNetwork is returned when converting a shader network with no shaders.
	ErrEmptyNetwork = errors.New("backend: empty shader network")

	// ErrClosed is returned when a backend is used after Close.
	ErrClosed = errors.New("backend: closed")
)

// Well-known node types.
const (
	// NodePolyMesh is the type of polygon mesh shapes.
	NodePolyMesh = "polymesh"
	// NodeInstance is the type of instancing proxies.
	NodeInstance = "ginstance"
)

// Node is a renderer-native node: a shape, camera, shader or instance proxy.
//
// Nodes are created and destroyed by their Backend. Implementations must be
// safe for concurrent use, since distinct handles may mutate distinct nodes
// from different goroutines while the node table is being read.
type Node interface {
	// Type returns the node type, e.g. "polymesh" or "ginstance".
	Type() string

	// Name returns the node name. Names are used by LookUp.
	Name() string
	SetName(name string)

	// IsShape reports whether the node is renderable geometry
	// (and so accepts visibility and shading parameters).
	IsShape() bool

	// SetMatrix sets a single transform.
	SetMatrix(m mgl32.Mat4)

	// SetMatrixSamples sets a motion-blurred transform.
	SetMatrixSamples(samples []mgl32.Mat4, times []float32)

	// Matrix returns the first transform sample, or identity.
	Matrix() mgl32.Mat4

	// Set sets a parameter value.
	Set(param string, value any)

	// Get returns a parameter value.
	Get(param string) (any, bool)

	// Reset restores a parameter to its default (unset) value.
	Reset(param string)

	// Params returns the names of all set parameters in sorted order.
	Params() []string
}

// Backend converts scene content into native nodes and renders them.
//
// Convert, ConvertSamples, ConvertShader, CreateInstance and Destroy may be
// called concurrently. Render, WriteScene and the option setters are called
// from a single goroutine between traversals.
type Backend interface {
	// Name returns the backend identifier (e.g., "memory").
	Name() string

	// Convert creates a node for obj. A nil node with a nil error means the
	// object type is not supported; this is not a failure.
	Convert(obj scene.Object) (Node, error)

	// ConvertSamples creates a motion-blurred node from time samples.
	// The same nil-node convention as Convert applies.
	ConvertSamples(samples []scene.Object, times []float32) (Node, error)

	// ConvertShader creates one node per shader of the network. Node names
	// are prefixed with prefix. The last node is the network root.
	ConvertShader(network *scene.ShaderNetwork, prefix string) ([]Node, error)

	// CreateInstance creates a lightweight proxy that renders master.
	CreateInstance(master Node) (Node, error)

	// Destroy releases a node. Destroying nil is a no-op.
	Destroy(n Node)

	// LookUp returns the node with the given name, or nil.
	LookUp(name string) Node

	// SetOption sets a global render option.
	SetOption(name string, value any) error

	// ResetOption restores a global render option to its default.
	ResetOption(name string) error

	// Option returns a global render option.
	Option(name string) (any, bool)

	// Render renders the current scene. It returns ErrInterrupted if
	// Interrupt is called and ctx.Err() if ctx is canceled.
	Render(ctx context.Context) error

	// Interrupt asks an in-flight Render to stop.
	Interrupt()

	// Rendering reports whether a Render is in flight.
	Rendering() bool

	// WriteScene writes a description of every node to w.
	WriteScene(w io.Writer) error

	// Close destroys all nodes. The backend should not be used afterwards.
	Close()
}
