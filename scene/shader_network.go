package scene

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache/contenthash"
)

// Link is a parameter value connecting a parameter to the output of another
// shader in the same network, identified by its handle.
type Link struct {
	Handle string
}

// Shader is one node of a shader network.
type Shader struct {
	// Type is the shader type, e.g. "standard_surface" or "point_light".
	Type string
	// Handle names the shader within its network so other shaders can link to it.
	Handle string
	// Parameters holds parameter values. Supported value types are bool,
	// int, int32, float32, float64, string, mgl32.Vec3, mgl32.Mat4,
	// []float32 and Link.
	Parameters map[string]any
	// Source is optional WGSL source compiled by backends that support it.
	Source string
}

// ShaderNetwork is an ordered list of shaders. Shaders may only link to
// shaders earlier in the list; the last shader is the root.
type ShaderNetwork struct {
	Shaders []Shader
}

// Root returns the root shader, or nil for an empty network.
func (n *ShaderNetwork) Root() *Shader {
	if n == nil || len(n.Shaders) == 0 {
		return nil
	}
	return &n.Shaders[len(n.Shaders)-1]
}

// ContentHash returns the digest of the whole network, in order.
func (n *ShaderNetwork) ContentHash() contenthash.Hash {
	h := contenthash.New()
	h.AppendString("shaderNetwork")
	if n == nil {
		return h.Sum()
	}
	h.AppendInt(len(n.Shaders))
	for i := range n.Shaders {
		s := &n.Shaders[i]
		h.AppendString(s.Type).AppendString(s.Handle).AppendString(s.Source)
		AppendParameters(h, s.Parameters)
	}
	return h.Sum()
}

// AppendParameters hashes a parameter map in sorted key order.
func AppendParameters(h *contenthash.Hasher, params map[string]any) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h.AppendInt(len(keys))
	for _, k := range keys {
		h.AppendString(k)
		AppendValue(h, params[k])
	}
}

// AppendValue hashes a single parameter value together with its type.
func AppendValue(h *contenthash.Hasher, v any) {
	switch v := v.(type) {
	case nil:
		h.AppendString("nil")
	case bool:
		h.AppendString("bool").AppendBool(v)
	case int:
		h.AppendString("int").AppendInt(v)
	case int32:
		h.AppendString("int32").AppendUint32(uint32(v))
	case float32:
		h.AppendString("float32").AppendFloat32(v)
	case float64:
		h.AppendString("float64").AppendFloat64(v)
	case string:
		h.AppendString("string").AppendString(v)
	case mgl32.Vec3:
		h.AppendString("vec3").AppendVec3(v)
	case mgl32.Mat4:
		h.AppendString("mat4").AppendMat4(v)
	case []float32:
		h.AppendString("floats").AppendInt(len(v))
		for _, f := range v {
			h.AppendFloat32(f)
		}
	case Link:
		h.AppendString("link").AppendString(v.Handle)
	default:
		h.AppendString(fmt.Sprintf("%T", v)).AppendString(fmt.Sprintf("%v", v))
	}
}
