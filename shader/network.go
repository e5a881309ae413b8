package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/scenecache/backend"
	"github.com/gogpu/scenecache/scene"
)

// ErrNilNetwork is returned when a nil shader network is requested.
var ErrNilNetwork = errors.New("shader: nil network")

// Network is a shader network converted into backend nodes.
// The last node is the root that shapes and lights bind to.
type Network struct {
	backend backend.Backend
	nodes   []backend.Node
}

// Build converts a shader network without caching it. Node names are
// prefixed with prefix. The caller owns the result and must Destroy it.
func Build(b backend.Backend, network *scene.ShaderNetwork, prefix string) (*Network, error) {
	if network == nil {
		return nil, ErrNilNetwork
	}
	nodes, err := b.ConvertShader(network, prefix)
	if err != nil {
		return nil, fmt.Errorf("shader: convert network: %w", err)
	}
	return &Network{backend: b, nodes: nodes}, nil
}

// Root returns the root node, or nil for an empty or nil network.
func (n *Network) Root() backend.Node {
	if n == nil || len(n.nodes) == 0 {
		return nil
	}
	return n.nodes[len(n.nodes)-1]
}

// Nodes returns every node of the network, root last.
func (n *Network) Nodes() []backend.Node {
	if n == nil {
		return nil
	}
	return n.nodes
}

// Destroy releases every node of the network. It is safe to call on nil
// and safe to call twice.
func (n *Network) Destroy() {
	if n == nil {
		return
	}
	for _, node := range n.nodes {
		n.backend.Destroy(node)
	}
	n.nodes = nil
}
