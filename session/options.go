package session

import "runtime"

// RenderType selects what Render does.
type RenderType int

const (
	// Batch renders once and returns when the render completes.
	Batch RenderType = iota
	// Interactive renders progressively in the background until paused.
	Interactive
	// SceneDescription writes the scene to a file instead of rendering.
	SceneDescription
)

// String returns the render type name.
func (t RenderType) String() string {
	switch t {
	case Batch:
		return "batch"
	case Interactive:
		return "interactive"
	case SceneDescription:
		return "sceneDescription"
	default:
		return "unknown"
	}
}

// Option configures a Session during creation.
//
// Example:
//
//	s := session.New(b,
//		session.WithRenderType(session.SceneDescription),
//		session.WithFileName("scene.json"))
type Option func(*options)

// options holds optional configuration for Session creation.
type options struct {
	renderType RenderType
	fileName   string
	workers    int
}

// defaultOptions returns the default session options.
func defaultOptions() options {
	return options{
		renderType: Batch,
		workers:    runtime.GOMAXPROCS(0),
	}
}

// WithRenderType sets the render type. The default is Batch.
func WithRenderType(t RenderType) Option {
	return func(o *options) {
		o.renderType = t
	}
}

// WithFileName sets the file SceneDescription sessions write to.
func WithFileName(name string) Option {
	return func(o *options) {
		o.fileName = name
	}
}

// WithWorkers sets how many goroutines Populate uses.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}
