package attributes

import (
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/contenthash"
)

// Subdivision spaces.
const (
	SpaceRaster = "raster"
	SpaceObject = "object"
)

// PolyMesh holds subdivision settings for polygon meshes.
type PolyMesh struct {
	SubdivIterations     int
	SubdivAdaptiveError  float32
	SubdivAdaptiveMetric string
	SubdivAdaptiveSpace  string
}

// DefaultPolyMesh returns the settings used when no attribute overrides them.
func DefaultPolyMesh() PolyMesh {
	return PolyMesh{
		SubdivIterations:     1,
		SubdivAdaptiveError:  0,
		SubdivAdaptiveMetric: "auto",
		SubdivAdaptiveSpace:  SpaceRaster,
	}
}

func resolvePolyMesh(set Set) PolyMesh {
	p := DefaultPolyMesh()
	if v, ok := intValue(set, NameSubdivIterations); ok {
		p.SubdivIterations = v
	}
	if v, ok := floatValue(set, NameSubdivAdaptiveError); ok {
		p.SubdivAdaptiveError = v
	}
	if v, ok := value[string](set, NameSubdivAdaptiveMetric); ok {
		p.SubdivAdaptiveMetric = v
	}
	if v, ok := value[string](set, NameSubdivAdaptiveSpace); ok {
		p.SubdivAdaptiveSpace = v
	}
	return p
}

// ViewDependent reports whether subdivision depends on where the mesh is
// seen from. Such meshes cannot share a master node.
func (p PolyMesh) ViewDependent() bool {
	return p.SubdivAdaptiveError != 0 && p.SubdivAdaptiveSpace != SpaceObject
}

// Hash appends the settings to h.
func (p PolyMesh) Hash(h *contenthash.Hasher) {
	h.AppendInt(p.SubdivIterations).
		AppendFloat32(p.SubdivAdaptiveError).
		AppendString(p.SubdivAdaptiveMetric).
		AppendString(p.SubdivAdaptiveSpace)
}

// Apply sets the subdivision parameters on a polymesh node.
func (p PolyMesh) Apply(n backend.Node) {
	iterations := p.SubdivIterations
	if iterations < 0 {
		iterations = 0
	} else if iterations > 255 {
		iterations = 255
	}
	n.Set("subdiv_iterations", uint8(iterations))
	n.Set("subdiv_adaptive_error", p.SubdivAdaptiveError)
	n.Set("subdiv_adaptive_metric", p.SubdivAdaptiveMetric)
	n.Set("subdiv_adaptive_space", p.SubdivAdaptiveSpace)
}

func intValue(set Set, name string) (int, bool) {
	raw, ok := set[name]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint8:
		return int(v), true
	}
	warnType(name, raw, 0)
	return 0, false
}

func floatValue(set Set, name string) (float32, bool) {
	raw, ok := set[name]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	}
	warnType(name, raw, float32(0))
	return 0, false
}
