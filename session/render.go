package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/handle"
	"github.com/gogpu/scenecache/scene"
)

// aaOption is the backend option holding the anti-aliasing sample count.
const aaOption = "AA_samples"

// interactiveRender tracks the background goroutine of an interactive
// render.
type interactiveRender struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Render sweeps unused cache entries and renders.
//
// Batch sessions render synchronously and return the backend's error.
// SceneDescription sessions write the scene to the configured file.
// Interactive sessions start a progressive render in the background and
// return immediately; call Pause before changing the scene again.
//
// Render must not be called concurrently with scene construction.
func (s *Session) Render(ctx context.Context) error {
	s.Pause()

	if err := s.updateCamera(); err != nil {
		return err
	}

	shaders := s.shaders.ClearUnused()
	instances := s.instances.ClearUnused()
	log := scenecache.Logger()
	log.Debug("session: swept caches", "shaders", shaders, "instances", instances)

	switch s.opts.renderType {
	case Batch:
		log.Info("session: batch render", "backend", s.backend.Name())
		if err := s.backend.Render(ctx); err != nil {
			return fmt.Errorf("session: render: %w", err)
		}
		return nil

	case SceneDescription:
		return s.writeScene()

	case Interactive:
		s.startInteractive(ctx)
		return nil
	}
	return fmt.Errorf("session: unknown render type %d", s.opts.renderType)
}

func (s *Session) writeScene() error {
	if s.opts.fileName == "" {
		return ErrNoFileName
	}
	f, err := os.Create(s.opts.fileName)
	if err != nil {
		return fmt.Errorf("session: write scene: %w", err)
	}
	if err := s.backend.WriteScene(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("session: write scene: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("session: write scene: %w", err)
	}
	scenecache.Logger().Info("session: wrote scene", "file", s.opts.fileName)
	return nil
}

// Pause interrupts an interactive render and waits for it to stop.
// It does nothing if no render is running.
func (s *Session) Pause() {
	s.render.mu.Lock()
	cancel, done := s.render.cancel, s.render.done
	s.render.cancel, s.render.done = nil, nil
	s.render.mu.Unlock()

	if done == nil {
		return
	}
	if s.backend.Rendering() {
		s.backend.Interrupt()
	}
	cancel()
	<-done
}

func (s *Session) startInteractive(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.render.mu.Lock()
	s.render.cancel, s.render.done = cancel, done
	s.render.mu.Unlock()

	go func() {
		defer close(done)
		s.progressive(ctx)
	}()
}

// progressive renders at increasing sample counts up to the configured
// one: from min(-5, final) up to 1, then final directly. The configured
// count is restored afterwards.
func (s *Session) progressive(ctx context.Context) {
	final := 3
	if v, ok := s.backend.Option(aaOption); ok {
		if n, ok := v.(int); ok {
			final = n
		}
	}
	start := min(-5, final)
	log := scenecache.Logger()

	for aa := start; aa <= final; aa++ {
		if aa == 0 || (aa > 1 && aa != final) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if err := s.backend.SetOption(aaOption, aa); err != nil {
			log.Warn("session: set sample count", "err", err)
			break
		}
		if err := s.backend.Render(ctx); err != nil {
			log.Debug("session: interactive render stopped", "aa_samples", aa, "err", err)
			break
		}
	}

	if err := s.backend.SetOption(aaOption, final); err != nil {
		log.Warn("session: restore sample count", "err", err)
	}
}

// updateCamera points the backend at the selected camera, creating the
// default camera if none is selected, and sets the resolution, pixel
// aspect ratio and crop region from it.
func (s *Session) updateCamera() error {
	s.mu.Lock()
	name := s.cameraName
	cam, ok := s.cameras[name]
	var stale handle.ObjectHandle
	if ok && name != DefaultCameraName && s.defaultCamera != nil {
		stale = s.defaultCamera
		s.defaultCamera = nil
	}
	needDefault := !ok && s.defaultCamera == nil
	s.mu.Unlock()

	if stale != nil {
		stale.Release()
	}

	if !ok {
		if needDefault {
			attrs, err := s.Attributes(nil)
			if err != nil {
				return err
			}
			h, err := s.Camera(DefaultCameraName, &scene.Camera{}, attrs)
			attrs.Release()
			if err != nil {
				return fmt.Errorf("session: default camera: %w", err)
			}
			s.mu.Lock()
			s.defaultCamera = h
			s.mu.Unlock()
		}
		s.mu.Lock()
		name = DefaultCameraName
		cam = s.cameras[DefaultCameraName]
		s.mu.Unlock()
	}

	xres, yres := cam.Resolution[0], cam.Resolution[1]
	crop := cam.CropWindow
	options := []struct {
		name  string
		value any
	}{
		{"camera", name},
		{"xres", xres},
		{"yres", yres},
		// The backend's aspect ratio is y/x; the camera's is x/y.
		{"aspect_ratio", 1 / cam.PixelAspectRatio},
		{"region_min_x", int(float32(xres-1) * crop[0])},
		{"region_min_y", int(float32(yres-1) * crop[1])},
		{"region_max_x", int(float32(xres-1) * crop[2])},
		{"region_max_y", int(float32(yres-1) * crop[3])},
	}
	for _, o := range options {
		if err := s.backend.SetOption(o.name, o.value); err != nil {
			return fmt.Errorf("session: set %s: %w", o.name, err)
		}
	}
	return nil
}
