package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/scene"
)

func triangle() *scene.Mesh {
	return &scene.Mesh{
		VerticesPerFace: []int32{3},
		VertexIDs:       []int32{0, 1, 2},
		P:               []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
	}
}

func TestRegistered(t *testing.T) {
	if !backend.IsRegistered(backend.BackendMemory) {
		t.Fatal("expected the memory backend to be registered")
	}
	b, err := backend.Get(backend.BackendMemory)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if b.Name() != backend.BackendMemory {
		t.Errorf("Name = %q, want %q", b.Name(), backend.BackendMemory)
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name  string
		obj   scene.Object
		typ   string
		shape bool
	}{
		{"mesh", triangle(), backend.NodePolyMesh, true},
		{"curves", &scene.Curves{VerticesPerCurve: []int32{4}, Basis: "bezier", Width: 0.2}, "curves", true},
		{"points", &scene.Points{Radius: 0.5}, "points", true},
		{"perspective", (&scene.Camera{}).WithDefaults(), "persp_camera", false},
		{"orthographic", &scene.Camera{Projection: scene.ProjectionOrthographic}, "ortho_camera", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New()
			n, err := b.Convert(tt.obj)
			if err != nil {
				t.Fatalf("Convert: %v", err)
			}
			if n == nil {
				t.Fatal("expected a node")
			}
			if n.Type() != tt.typ {
				t.Errorf("Type = %q, want %q", n.Type(), tt.typ)
			}
			if n.IsShape() != tt.shape {
				t.Errorf("IsShape = %v, want %v", n.IsShape(), tt.shape)
			}
			if b.NodeCount() != 1 {
				t.Errorf("NodeCount = %d, want 1", b.NodeCount())
			}
		})
	}
}

func TestConvertSubdivisionType(t *testing.T) {
	b := New()
	mesh := triangle()
	mesh.Scheme = scene.InterpolationCatmullClark
	n, _ := b.Convert(mesh)
	if v, _ := n.Get("subdiv_type"); v != "catclark" {
		t.Errorf("subdiv_type = %v, want catclark", v)
	}
	n, _ = b.Convert(triangle())
	if v, _ := n.Get("subdiv_type"); v != "none" {
		t.Errorf("subdiv_type = %v, want none", v)
	}
}

func TestConvertUnsupported(t *testing.T) {
	b := New()
	for _, obj := range []scene.Object{nil, &scene.Null{}} {
		n, err := b.Convert(obj)
		if err != nil || n != nil {
			t.Errorf("Convert(%v) = %v, %v; want nil, nil", obj, n, err)
		}
	}
	if b.NodeCount() != 0 {
		t.Errorf("NodeCount = %d, want 0", b.NodeCount())
	}
}

func TestConvertSamples(t *testing.T) {
	b := New()

	if _, err := b.ConvertSamples([]scene.Object{triangle()}, nil); !errors.Is(err, ErrSampleMismatch) {
		t.Errorf("expected ErrSampleMismatch, got %v", err)
	}
	if n, err := b.ConvertSamples(nil, nil); n != nil || err != nil {
		t.Errorf("expected nil, nil for no samples, got %v, %v", n, err)
	}
	if n, _ := b.ConvertSamples([]scene.Object{triangle(), &scene.Points{}}, []float32{0, 1}); n != nil {
		t.Error("expected mixed kinds to be unsupported")
	}

	n, err := b.ConvertSamples([]scene.Object{triangle(), triangle()}, []float32{0, 0.5})
	if err != nil || n == nil {
		t.Fatalf("ConvertSamples: %v, %v", n, err)
	}
	if v, _ := n.Get("motion_samples"); v != 2 {
		t.Errorf("motion_samples = %v, want 2", v)
	}
}

func TestConvertShader(t *testing.T) {
	b := New()
	network := &scene.ShaderNetwork{Shaders: []scene.Shader{
		{Type: "image", Handle: "tex"},
		{Type: "standard_surface", Parameters: map[string]any{
			"base_color": scene.Link{Handle: "tex"},
			"roughness":  float32(0.3),
		}},
	}}

	nodes, err := b.ConvertShader(network, "net_")
	if err != nil {
		t.Fatalf("ConvertShader: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	if nodes[0].Name() != "net_tex" || nodes[1].Name() != "net_1" {
		t.Errorf("names = %q, %q", nodes[0].Name(), nodes[1].Name())
	}
	if v, _ := nodes[1].Get("base_color"); v != nodes[0] {
		t.Error("expected the link to resolve to the image node")
	}
	if v, _ := nodes[1].Get("roughness"); v != float32(0.3) {
		t.Errorf("roughness = %v, want 0.3", v)
	}
}

func TestConvertShaderErrors(t *testing.T) {
	b := New()

	if _, err := b.ConvertShader(nil, ""); !errors.Is(err, backend.ErrEmptyNetwork) {
		t.Errorf("expected ErrEmptyNetwork, got %v", err)
	}

	broken := &scene.ShaderNetwork{Shaders: []scene.Shader{
		{Type: "image", Handle: "tex"},
		{Type: "standard_surface", Parameters: map[string]any{"base_color": scene.Link{Handle: "missing"}}},
	}}
	if _, err := b.ConvertShader(broken, ""); err == nil {
		t.Error("expected an error for an unknown link")
	}
	if b.NodeCount() != 0 {
		t.Errorf("expected partial networks to be destroyed, %d nodes remain", b.NodeCount())
	}

	invalid := &scene.ShaderNetwork{Shaders: []scene.Shader{
		{Type: "wgsl_surface", Source: "this is not wgsl"},
	}}
	if _, err := b.ConvertShader(invalid, ""); err == nil {
		t.Error("expected a compile error")
	}
	if b.NodeCount() != 0 {
		t.Errorf("expected failed networks to be destroyed, %d nodes remain", b.NodeCount())
	}
}

func TestCreateInstance(t *testing.T) {
	b := New()
	master, _ := b.Convert(triangle())

	proxy, err := b.CreateInstance(master)
	if err != nil {
		t.Fatalf("CreateInstance: %v", err)
	}
	if proxy.Type() != backend.NodeInstance || !proxy.IsShape() {
		t.Errorf("unexpected proxy %s", proxy.Type())
	}
	if v, _ := proxy.Get("node"); v != master {
		t.Error("expected the proxy to reference its master")
	}

	other := New()
	if _, err := other.CreateInstance(master); !errors.Is(err, ErrForeignNode) {
		t.Errorf("expected ErrForeignNode, got %v", err)
	}
	b.Destroy(master)
	if _, err := b.CreateInstance(master); !errors.Is(err, ErrForeignNode) {
		t.Errorf("expected ErrForeignNode for a destroyed master, got %v", err)
	}
}

func TestDestroyAndLookUp(t *testing.T) {
	b := New()
	first, _ := b.Convert(triangle())
	second, _ := b.Convert(triangle())
	first.SetName("shared")
	second.SetName("shared")

	if b.LookUp("shared") != first {
		t.Error("expected the oldest node to win")
	}
	b.Destroy(first)
	b.Destroy(first)
	b.Destroy(nil)
	if b.LookUp("shared") != second {
		t.Error("expected the remaining node after Destroy")
	}
	if b.LookUp("missing") != nil {
		t.Error("expected nil for an unknown name")
	}
}

func TestNodeParams(t *testing.T) {
	b := New()
	n, _ := b.Convert(triangle())
	n.Set("user:b", 1)
	n.Set("user:a", 2)
	n.Reset("subdiv_type")

	params := n.Params()
	want := []string{"nsides", "user:a", "user:b", "vidxs", "vlist"}
	if len(params) != len(want) {
		t.Fatalf("Params = %v, want %v", params, want)
	}
	for i := range want {
		if params[i] != want[i] {
			t.Errorf("Params[%d] = %q, want %q", i, params[i], want[i])
		}
	}

	if n.Matrix() != mgl32.Ident4() {
		t.Error("expected identity by default")
	}
	n.SetMatrixSamples([]mgl32.Mat4{mgl32.Translate3D(1, 0, 0), mgl32.Ident4()}, []float32{0, 1})
	if n.Matrix() != mgl32.Translate3D(1, 0, 0) {
		t.Error("expected Matrix to return the first sample")
	}
}

func TestOptions(t *testing.T) {
	b := New(WithOption("AA_samples", 6))

	if v, _ := b.Option("AA_samples"); v != 6 {
		t.Errorf("AA_samples = %v, want 6", v)
	}
	if err := b.SetOption("AA_samples", 1); err != nil {
		t.Fatalf("SetOption: %v", err)
	}
	if err := b.ResetOption("AA_samples"); err != nil {
		t.Fatalf("ResetOption: %v", err)
	}
	if v, _ := b.Option("AA_samples"); v != 6 {
		t.Errorf("AA_samples = %v, want 6 after reset", v)
	}

	if err := b.SetOption("bogus", 1); !errors.Is(err, backend.ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}
	if err := b.ResetOption("bogus"); !errors.Is(err, backend.ErrUnknownOption) {
		t.Errorf("expected ErrUnknownOption, got %v", err)
	}
	if err := b.SetOption("user:shot", "sh010"); err != nil {
		t.Errorf("expected user options to be accepted, got %v", err)
	}
}

func TestRender(t *testing.T) {
	b := New()
	mesh, _ := b.Convert(triangle())
	proxy, _ := b.CreateInstance(mesh)
	mesh.Set("visibility", uint8(0))
	_ = proxy

	if err := b.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	st := b.Stats()
	if st.Passes != 1 || st.Shapes != 1 || st.Instances != 1 || st.AASamples != 3 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestRenderCameraNotFound(t *testing.T) {
	b := New()
	_ = b.SetOption("camera", "missing")
	if err := b.Render(context.Background()); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound, got %v", err)
	}

	cam, _ := b.Convert((&scene.Camera{}).WithDefaults())
	cam.SetName("missing")
	if err := b.Render(context.Background()); err != nil {
		t.Errorf("Render: %v", err)
	}
}

func TestRenderInterrupt(t *testing.T) {
	b := New(WithPassDuration(time.Hour))

	errc := make(chan error, 1)
	go func() { errc <- b.Render(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for !b.Rendering() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	// Wait for the render to publish its cancel func.
	for time.Now().Before(deadline) {
		b.renderMu.Lock()
		ready := b.cancel != nil
		b.renderMu.Unlock()
		if ready {
			break
		}
		time.Sleep(time.Millisecond)
	}
	b.Interrupt()

	select {
	case err := <-errc:
		if !errors.Is(err, backend.ErrInterrupted) {
			t.Errorf("expected ErrInterrupted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Render did not stop")
	}
	if b.Rendering() {
		t.Error("expected Rendering to be false")
	}
	if b.Stats().Interrupted != 1 {
		t.Errorf("Interrupted = %d, want 1", b.Stats().Interrupted)
	}
}

func TestRenderContextCanceled(t *testing.T) {
	b := New(WithPassDuration(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := b.Render(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestWriteScene(t *testing.T) {
	b := New()
	mesh, _ := b.Convert(triangle())
	mesh.SetName("master")
	proxy, _ := b.CreateInstance(mesh)
	proxy.SetName("crate")
	proxy.SetMatrix(mgl32.Translate3D(1, 2, 3))

	var buf bytes.Buffer
	if err := b.WriteScene(&buf); err != nil {
		t.Fatalf("WriteScene: %v", err)
	}

	var file sceneFile
	if err := json.Unmarshal(buf.Bytes(), &file); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(file.Nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(file.Nodes))
	}
	if file.Nodes[0].Name != "master" || file.Nodes[1].Name != "crate" {
		t.Errorf("expected creation order, got %q, %q", file.Nodes[0].Name, file.Nodes[1].Name)
	}
	if file.Nodes[1].Params["node"] != "master" {
		t.Errorf("node param = %v, want master", file.Nodes[1].Params["node"])
	}
	if len(file.Nodes[1].Matrices) != 1 || file.Nodes[1].Matrices[0] != mgl32.Translate3D(1, 2, 3) {
		t.Errorf("unexpected matrices %v", file.Nodes[1].Matrices)
	}
	if _, ok := file.Options["AA_samples"]; !ok {
		t.Error("expected options to be written")
	}
}

func TestClose(t *testing.T) {
	b := New()
	_, _ = b.Convert(triangle())
	b.Close()

	if b.NodeCount() != 0 {
		t.Errorf("NodeCount = %d, want 0", b.NodeCount())
	}
	if _, err := b.Convert(triangle()); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
