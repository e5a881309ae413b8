package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/scenecache/backend"
)

// sceneFile is the JSON layout written by WriteScene.
type sceneFile struct {
	Options map[string]any `json:"options"`
	Nodes   []sceneNode    `json:"nodes"`
}

type sceneNode struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Matrices    []mgl32.Mat4   `json:"matrices,omitempty"`
	MatrixTimes []float32      `json:"matrixTimes,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// WriteScene implements backend.Backend.
// Nodes are written in creation order; node-valued parameters are written
// as the referenced node's name.
func (b *Backend) WriteScene(w io.Writer) error {
	nodes := b.snapshot()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })

	b.optMu.RLock()
	out := sceneFile{
		Options: make(map[string]any, len(b.options)),
		Nodes:   make([]sceneNode, 0, len(nodes)),
	}
	for k, v := range b.options {
		out.Options[k] = v
	}
	b.optMu.RUnlock()

	for _, n := range nodes {
		matrices, times := n.MatrixSamples()
		sn := sceneNode{
			Name:        n.Name(),
			Type:        n.typ,
			Matrices:    matrices,
			MatrixTimes: times,
		}
		if params := n.Params(); len(params) > 0 {
			sn.Params = make(map[string]any, len(params))
			for _, p := range params {
				v, _ := n.Get(p)
				if ref, ok := v.(backend.Node); ok {
					v = ref.Name()
				}
				sn.Params[p] = v
			}
		}
		out.Nodes = append(out.Nodes, sn)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("memory: write scene: %w", err)
	}
	return nil
}
