// Package session drives a backend from a scene traversal.
//
// A Session owns the shader and instance caches. Traversal goroutines call
// Attributes, Camera, Light, Object and ObjectSamples concurrently; Render
// then sweeps both caches and renders, writes or starts an interactive
// render depending on the session's RenderType.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/gogpu/scenecache"
	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/handle"
	"github.com/gogpu/scenecache/instance"
	"github.com/gogpu/scenecache/scene"
	"github.com/gogpu/scenecache/shader"
)

// DefaultCameraName names the camera created when no camera is selected.
const DefaultCameraName = "scenecache:defaultCamera"

// Option name prefixes.
const (
	// RenderOptionPrefix prefixes options forwarded to the backend.
	RenderOptionPrefix = "render:"
	// UserOptionPrefix prefixes user options, forwarded verbatim.
	UserOptionPrefix = "user:"
)

// CameraOption selects the render camera by name.
const CameraOption = "camera"

// ErrNoFileName is returned by Render for a SceneDescription session
// without a file name.
var ErrNoFileName = errors.New("session: no scene description file name")

// Session connects a scene traversal to a backend.
type Session struct {
	backend   backend.Backend
	opts      options
	shaders   *shader.Cache
	instances *instance.Cache

	mu            sync.Mutex
	cameraName    string
	cameras       map[string]*scene.Camera
	defaultCamera handle.ObjectHandle
	stored        []handle.ObjectHandle

	render interactiveRender
}

// New creates a session rendering with b.
func New(b backend.Backend, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Session{
		backend:   b,
		opts:      o,
		shaders:   shader.NewCache(b),
		instances: instance.NewCache(b),
		cameras:   make(map[string]*scene.Camera),
	}
}

// RenderType returns the session's render type.
func (s *Session) RenderType() RenderType {
	return s.opts.renderType
}

// Shaders returns the session's shader cache.
func (s *Session) Shaders() *shader.Cache {
	return s.shaders
}

// Instances returns the session's instance cache.
func (s *Session) Instances() *instance.Cache {
	return s.instances
}

// Option sets a global option.
//
// "camera" selects the render camera, "render:<name>" sets backend option
// <name> and "user:<name>" is passed to the backend unchanged. A nil
// value resets the option. Other prefixed names belong to other renderers
// and are ignored; anything else is reported as unknown.
func (s *Session) Option(name string, value any) {
	log := scenecache.Logger()
	switch {
	case name == CameraOption:
		s.mu.Lock()
		defer s.mu.Unlock()
		if value == nil {
			s.cameraName = ""
			return
		}
		cam, ok := value.(string)
		if !ok {
			log.Warn("session: unexpected option type", "option", name, "value", value)
			return
		}
		s.cameraName = cam

	case strings.HasPrefix(name, RenderOptionPrefix):
		if err := s.setBackendOption(strings.TrimPrefix(name, RenderOptionPrefix), value); err != nil {
			if errors.Is(err, backend.ErrUnknownOption) {
				log.Warn("session: unknown option", "option", name)
				return
			}
			log.Warn("session: option failed", "option", name, "err", err)
		}

	case strings.HasPrefix(name, UserOptionPrefix):
		if err := s.setBackendOption(name, value); err != nil {
			log.Warn("session: option failed", "option", name, "err", err)
		}

	case strings.Contains(name, ":"):
		// Prefixed for another renderer.

	default:
		log.Warn("session: unknown option", "option", name)
	}
}

func (s *Session) setBackendOption(name string, value any) error {
	if value == nil {
		return s.backend.ResetOption(name)
	}
	return s.backend.SetOption(name, value)
}

// Attributes resolves an attribute block. The surface shader is taken
// from the session's shader cache. Release the result once it has been
// passed to every object that uses it.
func (s *Session) Attributes(set attributes.Set) (*attributes.Attributes, error) {
	return attributes.Resolve(set, s.shaders)
}

// Camera creates a camera named name. A copy of cam with standard
// parameters filled in is kept for selecting the render resolution.
// A nil cam is a default camera.
func (s *Session) Camera(name string, cam *scene.Camera, attrs *attributes.Attributes) (handle.ObjectHandle, error) {
	if cam == nil {
		cam = &scene.Camera{}
	}
	withDefaults := cam.WithDefaults()
	s.mu.Lock()
	s.cameras[name] = withDefaults
	s.mu.Unlock()

	inst, err := s.instances.Get(withDefaults, attrs)
	if err != nil {
		return nil, err
	}
	return s.finish(name, handle.NewObject(inst), attrs), nil
}

// Light creates a light named name. obj holds the light's geometry, if
// any; the light itself comes from the light shader in attrs.
func (s *Session) Light(name string, obj scene.Object, attrs *attributes.Attributes) (handle.ObjectHandle, error) {
	inst, err := s.instances.Get(obj, attrs)
	if err != nil {
		return nil, err
	}
	return s.finish(name, handle.NewLight(s.backend, name, inst), attrs), nil
}

// Object creates an object named name.
func (s *Session) Object(name string, obj scene.Object, attrs *attributes.Attributes) (handle.ObjectHandle, error) {
	inst, err := s.instances.Get(obj, attrs)
	if err != nil {
		return nil, err
	}
	return s.finish(name, handle.NewObject(inst), attrs), nil
}

// ObjectSamples creates a motion-blurred object named name.
func (s *Session) ObjectSamples(name string, samples []scene.Object, times []float32, attrs *attributes.Attributes) (handle.ObjectHandle, error) {
	inst, err := s.instances.GetSamples(samples, times, attrs)
	if err != nil {
		return nil, err
	}
	return s.finish(name, handle.NewObject(inst), attrs), nil
}

// nodeOwner is implemented by handles that expose their node.
type nodeOwner interface {
	Node() backend.Node
}

// finish names the handle's node, applies attrs and stores the handle.
func (s *Session) finish(name string, h handle.ObjectHandle, attrs *attributes.Attributes) handle.ObjectHandle {
	if o, ok := h.(nodeOwner); ok {
		if n := o.Node(); n != nil {
			n.SetName(name)
		}
	}
	h.SetAttributes(attrs)
	return s.store(h)
}

// store keeps h alive until Close in non-interactive sessions, where the
// traversal is free to drop its handles before rendering.
func (s *Session) store(h handle.ObjectHandle) handle.ObjectHandle {
	if s.opts.renderType != Interactive {
		s.mu.Lock()
		s.stored = append(s.stored, h)
		s.mu.Unlock()
	}
	return h
}

// Close stops any render, releases every stored handle, destroys both
// caches and closes the backend.
func (s *Session) Close() {
	s.Pause()

	s.mu.Lock()
	stored := s.stored
	s.stored = nil
	defaultCamera := s.defaultCamera
	s.defaultCamera = nil
	s.mu.Unlock()

	for _, h := range stored {
		h.Release()
	}
	if defaultCamera != nil {
		defaultCamera.Release()
	}

	s.shaders.DestroyAll()
	s.instances.DestroyAll()
	s.backend.Close()
	scenecache.Logger().Info("session: closed", "backend", s.backend.Name())
}
