package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache/contenthash"
)

// Mesh interpolation schemes.
const (
	InterpolationLinear       = "linear"
	InterpolationCatmullClark = "catmullClark"
)

// Subdividable is implemented by objects whose conversion depends on an
// interpolation scheme.
type Subdividable interface {
	Object
	Interpolation() string
}

// Mesh is a polygon mesh, optionally rendered as a subdivision surface.
type Mesh struct {
	VerticesPerFace []int32
	VertexIDs       []int32
	P               []mgl32.Vec3

	// Scheme is the interpolation scheme. Empty means linear.
	Scheme string
}

// Kind implements Object.
func (m *Mesh) Kind() Kind { return KindMesh }

// Interpolation returns the interpolation scheme, defaulting to linear.
func (m *Mesh) Interpolation() string {
	if m.Scheme == "" {
		return InterpolationLinear
	}
	return m.Scheme
}

// ContentHash implements Object.
func (m *Mesh) ContentHash() contenthash.Hash {
	h := contenthash.New()
	h.AppendString("mesh").AppendString(m.Interpolation())
	appendInt32s(h, m.VerticesPerFace)
	appendInt32s(h, m.VertexIDs)
	appendVec3s(h, m.P)
	return h.Sum()
}

// NumFaces returns the number of faces.
func (m *Mesh) NumFaces() int {
	return len(m.VerticesPerFace)
}

// Curves is a set of curves sharing one basis.
type Curves struct {
	VerticesPerCurve []int32
	P                []mgl32.Vec3
	Basis            string
	Width            float32
}

// Kind implements Object.
func (c *Curves) Kind() Kind { return KindCurves }

// ContentHash implements Object.
func (c *Curves) ContentHash() contenthash.Hash {
	h := contenthash.New()
	h.AppendString("curves").AppendString(c.Basis).AppendFloat32(c.Width)
	appendInt32s(h, c.VerticesPerCurve)
	appendVec3s(h, c.P)
	return h.Sum()
}

// Points is a point cloud with a uniform radius.
type Points struct {
	P      []mgl32.Vec3
	Radius float32
}

// Kind implements Object.
func (p *Points) Kind() Kind { return KindPoints }

// ContentHash implements Object.
func (p *Points) ContentHash() contenthash.Hash {
	h := contenthash.New()
	h.AppendString("points").AppendFloat32(p.Radius)
	appendVec3s(h, p.P)
	return h.Sum()
}

func appendInt32s(h *contenthash.Hasher, v []int32) {
	h.AppendInt(len(v))
	for _, x := range v {
		h.AppendUint32(uint32(x))
	}
}

func appendVec3s(h *contenthash.Hasher, v []mgl32.Vec3) {
	h.AppendInt(len(v))
	for _, x := range v {
		h.AppendVec3(x)
	}
}
