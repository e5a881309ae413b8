// Command scenedemo builds a grid of instanced meshes, renders it and
// writes a scene description.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/backend"
	_ "github.com/gogpu/scenecache/backend/memory"
	"github.com/gogpu/scenecache/scene"
	"github.com/gogpu/scenecache/session"
)

func main() {
	var (
		backendName = flag.String("backend", backend.BackendMemory, "backend name")
		grid        = flag.Int("grid", 16, "objects per grid side")
		variants    = flag.Int("variants", 3, "distinct meshes in the grid")
		workers     = flag.Int("workers", 0, "populate workers (0 = GOMAXPROCS)")
		output      = flag.String("output", "scene.json", "scene description file")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		scenecache.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	if *variants < 1 {
		*variants = 1
	}

	ctx := context.Background()

	// Batch render.
	b, err := backend.Get(*backendName)
	if err != nil {
		log.Fatalf("Backend %q: %v (available: %v)", *backendName, err, backend.Available())
	}
	s := session.New(b, session.WithWorkers(*workers))
	if err := populate(ctx, s, *grid, *variants); err != nil {
		log.Fatalf("Populate: %v", err)
	}
	if err := s.Render(ctx); err != nil {
		log.Fatalf("Render: %v", err)
	}
	stats := s.Instances().Stats()
	log.Printf("Rendered %d objects from %d masters (hit rate %.2f)\n",
		*grid**grid, stats.Len, stats.HitRate)
	s.Close()

	// Scene description.
	b, err = backend.Get(*backendName)
	if err != nil {
		log.Fatalf("Backend %q: %v", *backendName, err)
	}
	s = session.New(b,
		session.WithRenderType(session.SceneDescription),
		session.WithFileName(*output),
		session.WithWorkers(*workers))
	defer s.Close()
	if err := populate(ctx, s, *grid, *variants); err != nil {
		log.Fatalf("Populate: %v", err)
	}
	if err := s.Render(ctx); err != nil {
		log.Fatalf("Write scene: %v", err)
	}
	log.Printf("Scene written to %s\n", *output)
}

func populate(ctx context.Context, s *session.Session, grid, variants int) error {
	s.Option("render:AA_samples", 4)

	cam, err := s.Attributes(nil)
	if err != nil {
		return err
	}
	defer cam.Release()
	if _, err := s.Camera("main", &scene.Camera{
		FieldOfView: 45,
		Resolution:  [2]int{1280, 720},
	}, cam); err != nil {
		return err
	}
	s.Option(session.CameraOption, "main")

	attrs, err := s.Attributes(attributes.Set{
		attributes.NameSurface: &scene.ShaderNetwork{Shaders: []scene.Shader{
			{Type: "image", Handle: "tex", Parameters: map[string]any{"filename": "grid.tx"}},
			{Type: "standard_surface", Handle: "surface", Parameters: map[string]any{
				"base_color": scene.Link{Handle: "tex"},
				"roughness":  float32(0.4),
			}},
		}},
		attributes.NameSubdivIterations: 2,
		"user:demo":                     true,
	})
	if err != nil {
		return err
	}
	defer attrs.Release()

	meshes := make([]*scene.Mesh, variants)
	for i := range meshes {
		meshes[i] = prism(float32(i + 1))
	}

	entries := make([]session.Entry, 0, grid*grid)
	for y := 0; y < grid; y++ {
		for x := 0; x < grid; x++ {
			i := y*grid + x
			entries = append(entries, session.Entry{
				Name:       fmt.Sprintf("/grid/obj%d", i),
				Object:     meshes[i%variants],
				Attributes: attrs,
				Transforms: []mgl32.Mat4{mgl32.Translate3D(float32(x)*2, 0, float32(y)*2)},
			})
		}
	}

	_, err = s.Populate(ctx, entries)
	return err
}

// prism returns a subdivided prism of the given height.
func prism(height float32) *scene.Mesh {
	return &scene.Mesh{
		VerticesPerFace: []int32{3, 3, 4, 4, 4},
		VertexIDs:       []int32{0, 1, 2, 3, 5, 4, 0, 3, 4, 1, 1, 4, 5, 2, 2, 5, 3, 0},
		P: []mgl32.Vec3{
			{0, 0, 0}, {1, 0, 0}, {0.5, 0, 1},
			{0, height, 0}, {1, height, 0}, {0.5, height, 1},
		},
		Scheme: scene.InterpolationCatmullClark,
	}
}
