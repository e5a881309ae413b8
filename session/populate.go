package session

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/scenecache/attributes"
	"github.com/gogpu/scenecache/handle"
	"github.com/gogpu/scenecache/scene"
)

// Entry describes one object for Populate.
type Entry struct {
	Name string

	// Object is converted unless Samples is set.
	Object scene.Object

	// Samples and Times describe a motion-blurred object.
	Samples []scene.Object
	Times   []float32

	Attributes *attributes.Attributes

	// Transforms holds one transform, or one per TransformTimes entry.
	// No transforms leaves the object at the origin.
	Transforms     []mgl32.Mat4
	TransformTimes []float32
}

// Populate creates a handle for every entry using the session's worker
// count, and returns the handles in entry order.
//
// The first error cancels the remaining work; handles created so far are
// released and the error is returned.
func (s *Session) Populate(ctx context.Context, entries []Entry) ([]handle.ObjectHandle, error) {
	handles := make([]handle.ObjectHandle, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.workers)
	for i := range entries {
		e := &entries[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			h, err := s.create(e)
			if err != nil {
				return fmt.Errorf("session: populate %q: %w", e.Name, err)
			}
			handles[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, h := range handles {
			if h != nil {
				h.Release()
			}
		}
		return nil, err
	}
	return handles, nil
}

func (s *Session) create(e *Entry) (handle.ObjectHandle, error) {
	var (
		h   handle.ObjectHandle
		err error
	)
	if len(e.Samples) > 0 {
		h, err = s.ObjectSamples(e.Name, e.Samples, e.Times, e.Attributes)
	} else {
		h, err = s.Object(e.Name, e.Object, e.Attributes)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case len(e.Transforms) == 1:
		h.SetTransform(e.Transforms[0])
	case len(e.Transforms) > 1:
		h.SetTransformSamples(e.Transforms, e.TransformTimes)
	}
	return h, nil
}
