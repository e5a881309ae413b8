package scene

import "github.com/gogpu/scenecache/contenthash"

// Kind identifies the type of a scene object.
type Kind int

const (
	// KindNull is an object without geometry (for example a light locator).
	KindNull Kind = iota
	// KindMesh is a polygon or subdivision mesh.
	KindMesh
	// KindCurves is a set of curves.
	KindCurves
	// KindPoints is a point cloud.
	KindPoints
	// KindCamera is a camera.
	KindCamera
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindMesh:
		return "mesh"
	case KindCurves:
		return "curves"
	case KindPoints:
		return "points"
	case KindCamera:
		return "camera"
	default:
		return "unknown"
	}
}

// Renderable reports whether objects of this kind produce visible geometry.
func (k Kind) Renderable() bool {
	switch k {
	case KindMesh, KindCurves, KindPoints:
		return true
	default:
		return false
	}
}

// Object is a piece of scene content produced by the traversal.
//
// ContentHash must be equal for two objects that convert to identical
// renderer nodes and should differ whenever anything that affects
// conversion differs.
type Object interface {
	ContentHash() contenthash.Hash
	Kind() Kind
}

// Null is an object without geometry.
type Null struct {
	// Label only distinguishes otherwise identical nulls.
	Label string
}

// Kind implements Object.
func (n *Null) Kind() Kind { return KindNull }

// ContentHash implements Object.
func (n *Null) ContentHash() contenthash.Hash {
	return contenthash.Of(func(h *contenthash.Hasher) {
		h.AppendString("null").AppendString(n.Label)
	})
}
