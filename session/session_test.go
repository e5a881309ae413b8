package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/backend/memory"
	"github.com/gogpu/scenecache/handle"
	"github.com/gogpu/scenecache/instance"
	"github.com/gogpu/scenecache/internal/backendtest"
	"github.com/gogpu/scenecache/scene"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	orig := scenecache.Logger()
	t.Cleanup(func() { scenecache.SetLogger(orig) })
	var buf bytes.Buffer
	scenecache.SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})))
	return &buf
}

func box(size float32) *scene.Mesh {
	return &scene.Mesh{
		VerticesPerFace: []int32{4},
		VertexIDs:       []int32{0, 1, 2, 3},
		P:               []mgl32.Vec3{{0, 0, 0}, {size, 0, 0}, {size, size, 0}, {0, size, 0}},
	}
}

func mustAttributes(t *testing.T, s *Session, set attributes.Set) *attributes.Attributes {
	t.Helper()
	a, err := s.Attributes(set)
	if err != nil {
		t.Fatalf("Attributes: %v", err)
	}
	t.Cleanup(a.Release)
	return a
}

func option(t *testing.T, b backend.Backend, name string) any {
	t.Helper()
	v, ok := b.Option(name)
	if !ok {
		t.Fatalf("option %q not set", name)
	}
	return v
}

func TestOption(t *testing.T) {
	buf := captureLog(t)
	b := backendtest.New()
	s := New(b)

	s.Option("render:AA_samples", 8)
	if got := option(t, b, "AA_samples"); got != 8 {
		t.Errorf("AA_samples = %v, want 8", got)
	}
	s.Option("render:AA_samples", nil)
	if got := option(t, b, "AA_samples"); got != 3 {
		t.Errorf("AA_samples = %v, want default 3", got)
	}

	s.Option("user:shot", "sh010")
	if got := option(t, b, "user:shot"); got != "sh010" {
		t.Errorf("user:shot = %v, want sh010", got)
	}
	s.Option("user:shot", nil)
	if _, ok := b.Option("user:shot"); ok {
		t.Error("expected user:shot to be reset")
	}

	if buf.Len() != 0 {
		t.Fatalf("unexpected warnings: %s", buf.String())
	}

	s.Option("other:samples", 4)
	if buf.Len() != 0 {
		t.Errorf("expected options for other renderers to be ignored, got: %s", buf.String())
	}

	s.Option("render:bogus", 1)
	if !strings.Contains(buf.String(), "unknown option") {
		t.Errorf("expected an unknown option warning, got: %s", buf.String())
	}
	buf.Reset()

	s.Option("frobnicate", true)
	if !strings.Contains(buf.String(), "unknown option") {
		t.Errorf("expected an unknown option warning, got: %s", buf.String())
	}
	buf.Reset()

	s.Option(CameraOption, 5)
	if !strings.Contains(buf.String(), "unexpected option type") {
		t.Errorf("expected a type warning, got: %s", buf.String())
	}
}

func TestRenderCreatesDefaultCamera(t *testing.T) {
	b := backendtest.New()
	s := New(b)
	defer s.Close()

	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	cam := b.LookUp(DefaultCameraName)
	if cam == nil || cam.Type() != "persp_camera" {
		t.Fatalf("expected a default perspective camera, got %v", cam)
	}
	if got := option(t, b, "camera"); got != DefaultCameraName {
		t.Errorf("camera = %v, want %s", got, DefaultCameraName)
	}
	if got := option(t, b, "xres"); got != 640 {
		t.Errorf("xres = %v, want 640", got)
	}
	if got := option(t, b, "region_max_y"); got != 479 {
		t.Errorf("region_max_y = %v, want 479", got)
	}
	if b.Stats().Passes != 1 {
		t.Errorf("Passes = %d, want 1", b.Stats().Passes)
	}

	// A second render reuses the default camera.
	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if n := b.NodesOfType("persp_camera"); n != 1 {
		t.Errorf("expected 1 camera, got %d", n)
	}
}

func TestRenderSelectedCamera(t *testing.T) {
	b := backendtest.New()
	s := New(b)
	defer s.Close()

	_, err := s.Camera("shot", &scene.Camera{
		Projection:       scene.ProjectionOrthographic,
		Resolution:       [2]int{1920, 1080},
		PixelAspectRatio: 2,
		CropWindow:       [4]float32{0.5, 0, 1, 1},
	}, mustAttributes(t, s, nil))
	if err != nil {
		t.Fatalf("Camera: %v", err)
	}
	s.Option(CameraOption, "shot")

	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := option(t, b, "camera"); got != "shot" {
		t.Errorf("camera = %v, want shot", got)
	}
	if got := option(t, b, "xres"); got != 1920 {
		t.Errorf("xres = %v, want 1920", got)
	}
	if got := option(t, b, "aspect_ratio"); got != float32(0.5) {
		t.Errorf("aspect_ratio = %v, want 0.5", got)
	}
	if got := option(t, b, "region_min_x"); got != 959 {
		t.Errorf("region_min_x = %v, want 959", got)
	}
	if got := option(t, b, "region_max_x"); got != 1919 {
		t.Errorf("region_max_x = %v, want 1919", got)
	}
	if b.LookUp(DefaultCameraName) != nil {
		t.Error("expected no default camera")
	}
	if b.LookUp("shot").Type() != "ortho_camera" {
		t.Error("expected the named camera to be an orthographic camera")
	}
}

func TestRenderSweepsCaches(t *testing.T) {
	b := backendtest.New()
	s := New(b, WithRenderType(Interactive))
	defer s.Close()

	attrs := mustAttributes(t, s, attributes.Set{attributes.NameSurface: &scene.ShaderNetwork{
		Shaders: []scene.Shader{{Type: "standard_surface", Handle: "s"}},
	}})
	kept, err := s.Object("kept", box(1), attrs)
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	dropped, err := s.Object("dropped", box(2), attrs)
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	droppedMaster := dropped.(*handle.Object).Instance().Master()
	dropped.Release()

	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	s.Pause()

	if !b.WasDestroyed(droppedMaster) {
		t.Error("expected the released object's master to be swept")
	}
	if s.Instances().Len() != 1 {
		t.Errorf("instance Len = %d, want 1", s.Instances().Len())
	}
	if s.Shaders().Len() != 1 {
		t.Errorf("shader Len = %d, want 1", s.Shaders().Len())
	}

	kept.Release()
	attrs.Release()
	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	s.Pause()
	if s.Instances().Len() != 0 || s.Shaders().Len() != 0 {
		t.Errorf("expected empty caches, got %d instances and %d shaders",
			s.Instances().Len(), s.Shaders().Len())
	}
}

func TestBatchKeepsHandlesAlive(t *testing.T) {
	b := backendtest.New()
	s := New(b)

	h, err := s.Object("crate", box(1), mustAttributes(t, s, nil))
	if err != nil {
		t.Fatalf("Object: %v", err)
	}
	proxy := h.(*handle.Object).Node()

	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if s.Instances().Len() != 1 {
		t.Errorf("expected the stored object to survive the sweep")
	}
	if b.LookUp("crate") != proxy {
		t.Error("expected the object node to be named")
	}
	if st := b.Stats(); st.Instances != 1 {
		t.Errorf("rendered %d instances, want 1", st.Instances)
	}

	s.Close()
	if h.State() != handle.Released {
		t.Errorf("State = %v, want released", h.State())
	}
	if b.NodeCount() != 0 {
		t.Errorf("expected Close to leave no nodes, got %d", b.NodeCount())
	}
}

func TestLight(t *testing.T) {
	b := backendtest.New()
	s := New(b)
	defer s.Close()

	attrs := mustAttributes(t, s, attributes.Set{attributes.NameLight: &scene.ShaderNetwork{
		Shaders: []scene.Shader{{Type: "point_light", Handle: "light"}},
	}})
	h, err := s.Light("key", &scene.Null{}, attrs)
	if err != nil {
		t.Fatalf("Light: %v", err)
	}
	h.SetTransform(mgl32.Translate3D(0, 5, 0))

	root := b.LookUp("key")
	if root == nil || root.Type() != "point_light" {
		t.Fatalf("expected a point light named key, got %v", root)
	}
	if root.Matrix() != mgl32.Translate3D(0, 5, 0) {
		t.Error("expected the light transform to be applied")
	}
}

func TestRenderSceneDescription(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.json")
	b := backendtest.New()
	s := New(b, WithRenderType(SceneDescription), WithFileName(path))
	defer s.Close()

	if _, err := s.Object("crate", box(1), mustAttributes(t, s, nil)); err != nil {
		t.Fatalf("Object: %v", err)
	}
	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b.Stats().Passes != 0 {
		t.Error("expected no render pass")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var file struct {
		Options map[string]any `json:"options"`
		Nodes   []struct {
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"nodes"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if file.Options["camera"] != DefaultCameraName {
		t.Errorf("camera = %v, want %s", file.Options["camera"], DefaultCameraName)
	}
	names := make(map[string]string)
	for _, n := range file.Nodes {
		names[n.Name] = n.Type
	}
	if names["crate"] != backend.NodeInstance {
		t.Errorf("expected crate to be an instance, got %q", names["crate"])
	}
}

func TestRenderSceneDescriptionWithoutFile(t *testing.T) {
	s := New(backendtest.New(), WithRenderType(SceneDescription))
	defer s.Close()
	if err := s.Render(context.Background()); !errors.Is(err, ErrNoFileName) {
		t.Errorf("expected ErrNoFileName, got %v", err)
	}
}

func TestInteractiveProgressiveRender(t *testing.T) {
	b := backendtest.New(memory.WithOption("AA_samples", 3))
	s := New(b, WithRenderType(Interactive))
	defer s.Close()

	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	// -5 -4 -3 -2 -1 1 3
	deadline := time.Now().Add(5 * time.Second)
	for b.Stats().Passes < 7 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	s.Pause()

	st := b.Stats()
	if st.Passes != 7 {
		t.Errorf("Passes = %d, want 7", st.Passes)
	}
	if st.AASamples != 3 {
		t.Errorf("last pass AA_samples = %d, want 3", st.AASamples)
	}
	if got := option(t, b, "AA_samples"); got != 3 {
		t.Errorf("AA_samples = %v, want 3 restored", got)
	}
}

func TestPauseInterruptsInteractiveRender(t *testing.T) {
	b := backendtest.New(memory.WithPassDuration(time.Hour))
	s := New(b, WithRenderType(Interactive))

	if err := s.Render(context.Background()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	done := make(chan struct{})
	go func() {
		s.Pause()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Pause did not stop the render")
	}

	if b.Rendering() {
		t.Error("expected no render in flight")
	}
	if b.Stats().Passes != 0 {
		t.Errorf("Passes = %d, want 0", b.Stats().Passes)
	}
	if got := option(t, b, "AA_samples"); got != 3 {
		t.Errorf("AA_samples = %v, want 3 restored", got)
	}

	s.Pause()
	s.Close()
}

func TestPopulate(t *testing.T) {
	b := backendtest.New()
	s := New(b, WithWorkers(8))
	defer s.Close()

	attrs := mustAttributes(t, s, nil)
	entries := make([]Entry, 100)
	for i := range entries {
		entries[i] = Entry{
			Name:       fmt.Sprintf("obj%d", i),
			Object:     box(float32(i % 4)),
			Attributes: attrs,
			Transforms: []mgl32.Mat4{mgl32.Translate3D(float32(i), 0, 0)},
		}
	}
	entries[99] = Entry{
		Name:           "moving",
		Samples:        []scene.Object{box(0), box(1)},
		Times:          []float32{0, 1},
		Attributes:     attrs,
		Transforms:     []mgl32.Mat4{mgl32.Ident4(), mgl32.Translate3D(0, 1, 0)},
		TransformTimes: []float32{0, 1},
	}

	handles, err := s.Populate(context.Background(), entries)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(handles) != len(entries) {
		t.Fatalf("got %d handles, want %d", len(handles), len(entries))
	}
	if got := b.Converts.Load(); got != 4 {
		t.Errorf("expected 4 conversions, got %d", got)
	}
	if got := b.SampleConverts.Load(); got != 1 {
		t.Errorf("expected 1 sample conversion, got %d", got)
	}

	node := handles[7].(*handle.Object).Node()
	if node.Name() != "obj7" {
		t.Errorf("handle 7 name = %q, want obj7", node.Name())
	}
	if node.Matrix() != mgl32.Translate3D(7, 0, 0) {
		t.Error("expected the entry transform to be applied")
	}
}

func TestPopulateError(t *testing.T) {
	b := backendtest.New()
	s := New(b, WithRenderType(Interactive), WithWorkers(2))
	defer s.Close()

	entries := []Entry{
		{Name: "a", Object: box(1)},
		{Name: "b", Object: box(2)},
		{Name: "bad", Samples: []scene.Object{box(1)}, Times: []float32{0, 1}},
	}
	handles, err := s.Populate(context.Background(), entries)
	if !errors.Is(err, instance.ErrSampleMismatch) {
		t.Fatalf("expected ErrSampleMismatch, got %v", err)
	}
	if handles != nil {
		t.Error("expected no handles on error")
	}
	s.Instances().ClearUnused()
	if s.Instances().Len() != 0 {
		t.Errorf("expected every created handle to be released, %d masters remain", s.Instances().Len())
	}
}

func TestPopulateCanceled(t *testing.T) {
	s := New(backendtest.New(), WithRenderType(Interactive))
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Populate(ctx, []Entry{{Name: "a", Object: box(1)}}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRenderTypeString(t *testing.T) {
	tests := []struct {
		rt   RenderType
		want string
	}{
		{Batch, "batch"},
		{Interactive, "interactive"},
		{SceneDescription, "sceneDescription"},
		{RenderType(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.rt.String(); got != tt.want {
			t.Errorf("RenderType(%d).String() = %q, want %q", int(tt.rt), got, tt.want)
		}
	}
}
