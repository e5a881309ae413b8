package scene

import "github.com/gogpu/scenecache/contenthash"

// Camera projections.
const (
	ProjectionPerspective  = "perspective"
	ProjectionOrthographic = "orthographic"
)

// Camera describes a render camera.
// Zero fields are filled in by WithDefaults.
type Camera struct {
	Projection       string
	FieldOfView      float32
	ClippingPlanes   [2]float32
	Resolution       [2]int
	PixelAspectRatio float32
	// CropWindow is min x, min y, max x, max y in normalized coordinates.
	CropWindow [4]float32
}

// Kind implements Object.
func (c *Camera) Kind() Kind { return KindCamera }

// ContentHash implements Object.
func (c *Camera) ContentHash() contenthash.Hash {
	h := contenthash.New()
	h.AppendString("camera").AppendString(c.Projection).AppendFloat32(c.FieldOfView)
	h.AppendFloat32(c.ClippingPlanes[0]).AppendFloat32(c.ClippingPlanes[1])
	h.AppendInt(c.Resolution[0]).AppendInt(c.Resolution[1])
	h.AppendFloat32(c.PixelAspectRatio)
	for _, v := range c.CropWindow {
		h.AppendFloat32(v)
	}
	return h.Sum()
}

// WithDefaults returns a copy of c with the standard parameters filled in.
func (c *Camera) WithDefaults() *Camera {
	out := *c
	if out.Projection == "" {
		out.Projection = ProjectionPerspective
	}
	if out.FieldOfView == 0 && out.Projection == ProjectionPerspective {
		out.FieldOfView = 90
	}
	if out.ClippingPlanes == [2]float32{} {
		out.ClippingPlanes = [2]float32{0.01, 100000}
	}
	if out.Resolution[0] <= 0 || out.Resolution[1] <= 0 {
		out.Resolution = [2]int{640, 480}
	}
	if out.PixelAspectRatio <= 0 {
		out.PixelAspectRatio = 1
	}
	if out.CropWindow == [4]float32{} {
		out.CropWindow = [4]float32{0, 0, 1, 1}
	}
	return &out
}
