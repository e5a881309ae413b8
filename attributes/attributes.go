// Package attributes resolves raw scene attribute blocks into the settings
// the caches and object handles apply to backend nodes.
package attributes

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/scene"
	"github.com/gogpu/scenecache/shader"
)

// Attribute names understood by Resolve.
const (
	NameSurface       = "surface"
	NameLight         = "light"
	NameDoubleSided   = "doubleSided"
	NameRenderSurface = "render:surface"
	NameRenderLight   = "render:light"

	NameVisibilityCamera    = "render:visibility:camera"
	NameVisibilityShadow    = "render:visibility:shadow"
	NameVisibilityReflected = "render:visibility:reflected"
	NameVisibilityRefracted = "render:visibility:refracted"
	NameVisibilityDiffuse   = "render:visibility:diffuse"
	NameVisibilityGlossy    = "render:visibility:glossy"

	NameReceiveShadows = "render:receiveShadows"
	NameSelfShadows    = "render:selfShadows"
	NameOpaque         = "render:opaque"
	NameMatte          = "render:matte"

	NameSubdivIterations     = "render:polymesh:subdivIterations"
	NameSubdivAdaptiveError  = "render:polymesh:subdivAdaptiveError"
	NameSubdivAdaptiveMetric = "render:polymesh:subdivAdaptiveMetric"
	NameSubdivAdaptiveSpace  = "render:polymesh:subdivAdaptiveSpace"

	// UserPrefix marks attributes passed through to nodes verbatim.
	UserPrefix = "user:"
)

// Set is a raw attribute block as produced by the scene traversal.
type Set map[string]any

// Ray is a bit mask of ray types.
type Ray uint8

// Ray types.
const (
	RayCamera Ray = 1 << iota
	RayShadow
	RayReflected
	RayRefracted
	RayDiffuse
	RayGlossy

	RayNone Ray = 0
	RayAll      = RayCamera | RayShadow | RayReflected | RayRefracted | RayDiffuse | RayGlossy
)

// ShadingFlags is a bit mask of shading switches.
type ShadingFlags uint8

// Shading flags.
const (
	ReceiveShadows ShadingFlags = 1 << iota
	SelfShadows
	Opaque
	Matte

	DefaultShading = ReceiveShadows | SelfShadows | Opaque
	AllShading     = ReceiveShadows | SelfShadows | Opaque | Matte
)

// Attributes is a resolved attribute block.
//
// An Attributes holds a reference to its surface shader. Call Release once
// the block has been applied to every object that needs it; objects keep
// their own reference.
type Attributes struct {
	// Visibility is the mask of ray types the object is visible to.
	Visibility Ray
	// Sidedness is the face culling mode: CullModeNone for double-sided.
	Sidedness gputypes.CullMode
	// Shading holds the shading switches.
	Shading ShadingFlags
	// SurfaceShader is the cached surface shader, or nil.
	SurfaceShader *shader.Handle
	// LightShader is the light shader description, or nil.
	// Light shaders are converted per light, never cached.
	LightShader *scene.ShaderNetwork
	// PolyMesh holds the subdivision settings for polygon meshes.
	PolyMesh PolyMesh
	// User holds the "user:" attributes.
	User map[string]any
}

// Resolve resolves set. The surface shader, if any, is obtained from
// shaders; an error converting it is returned.
//
// Attributes of the wrong type are ignored with a warning.
func Resolve(set Set, shaders *shader.Cache) (*Attributes, error) {
	a := &Attributes{
		Visibility: RayAll,
		Sidedness:  gputypes.CullModeNone,
		Shading:    DefaultShading,
		PolyMesh:   resolvePolyMesh(set),
		User:       make(map[string]any),
	}

	a.updateVisibility(set, NameVisibilityCamera, RayCamera)
	a.updateVisibility(set, NameVisibilityShadow, RayShadow)
	a.updateVisibility(set, NameVisibilityReflected, RayReflected)
	a.updateVisibility(set, NameVisibilityRefracted, RayRefracted)
	a.updateVisibility(set, NameVisibilityDiffuse, RayDiffuse)
	a.updateVisibility(set, NameVisibilityGlossy, RayGlossy)

	if doubleSided, ok := value[bool](set, NameDoubleSided); ok {
		if doubleSided {
			a.Sidedness = gputypes.CullModeNone
		} else {
			a.Sidedness = gputypes.CullModeBack
		}
	}

	a.updateShading(set, NameReceiveShadows, ReceiveShadows)
	a.updateShading(set, NameSelfShadows, SelfShadows)
	a.updateShading(set, NameOpaque, Opaque)
	a.updateShading(set, NameMatte, Matte)

	if surface := network(set, NameRenderSurface, NameSurface); surface != nil {
		if shaders == nil {
			return nil, fmt.Errorf("attributes: surface shader requires a shader cache")
		}
		h, err := shaders.Get(surface)
		if err != nil {
			return nil, fmt.Errorf("attributes: surface shader: %w", err)
		}
		a.SurfaceShader = h
	}

	a.LightShader = network(set, NameRenderLight, NameLight)

	for name, v := range set {
		if strings.HasPrefix(name, UserPrefix) && v != nil {
			a.User[name] = v
		}
	}

	return a, nil
}

// Release drops the surface shader reference. Safe on nil and safe to
// call twice.
func (a *Attributes) Release() {
	if a == nil {
		return
	}
	a.SurfaceShader.Release()
}

func (a *Attributes) updateVisibility(set Set, name string, ray Ray) {
	if v, ok := value[bool](set, name); ok {
		if v {
			a.Visibility |= ray
		} else {
			a.Visibility &^= ray
		}
	}
}

func (a *Attributes) updateShading(set Set, name string, flag ShadingFlags) {
	if v, ok := value[bool](set, name); ok {
		if v {
			a.Shading |= flag
		} else {
			a.Shading &^= flag
		}
	}
}

// network returns the first shader network found under names, in order.
func network(set Set, names ...string) *scene.ShaderNetwork {
	for _, name := range names {
		if n, ok := value[*scene.ShaderNetwork](set, name); ok && n != nil {
			return n
		}
	}
	return nil
}

// value returns set[name] as a T. Present values of another type are
// reported and treated as absent.
func value[T any](set Set, name string) (T, bool) {
	var zero T
	raw, ok := set[name]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		warnType(name, raw, zero)
		return zero, false
	}
	return v, true
}

func warnType(name string, got, want any) {
	scenecache.Logger().Warn("attributes: unexpected attribute type",
		"attribute", name,
		"got", fmt.Sprintf("%T", got),
		"want", fmt.Sprintf("%T", want))
}
