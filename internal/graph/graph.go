// Package graph holds the read-only reference graph of a session.
package graph

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/starford/float/internal/models"
)

// Graph is an immutable set of reference nodes and edges.
type Graph struct {
	meta  map[string]any
	nodes []models.Node
	byID  map[string]int
	edges []models.Edge
}

// Stats summarises a graph.
type Stats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// New builds a graph. Node ids must be non-empty and unique.
func New(meta map[string]any, nodes []models.Node, edges []models.Edge) (*Graph, error) {
	g := &Graph{
		meta:  maps.Clone(meta),
		nodes: make([]models.Node, 0, len(nodes)),
		byID:  make(map[string]int, len(nodes)),
		edges: append([]models.Edge(nil), edges...),
	}
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("graph: node with empty id")
		}
		if _, dup := g.byID[n.ID]; dup {
			return nil, fmt.Errorf("graph: duplicate node id %q", n.ID)
		}
		g.byID[n.ID] = len(g.nodes)
		g.nodes = append(g.nodes, n.Clone())
	}
	return g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (models.Node, bool) {
	i, ok := g.byID[id]
	if !ok {
		return models.Node{}, false
	}
	return g.nodes[i].Clone(), true
}

// Nodes returns copies of all nodes in seed order.
func (g *Graph) Nodes() []models.Node {
	out := make([]models.Node, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Clone()
	}
	return out
}

// Edges returns a copy of all edges. The result is never nil.
func (g *Graph) Edges() []models.Edge {
	return append([]models.Edge{}, g.edges...)
}

// Meta returns a copy of the dataset metadata.
func (g *Graph) Meta() map[string]any {
	return maps.Clone(g.meta)
}

// Stats returns node and edge counts.
func (g *Graph) Stats() Stats {
	return Stats{Nodes: len(g.nodes), Edges: len(g.edges)}
}

// Context serializes every node, extra attributes included, as a JSON array.
// This is the database snapshot handed to the generation collaborator.
func (g *Graph) Context() ([]byte, error) {
	data, err := json.Marshal(g.nodes)
	if err != nil {
		return nil, fmt.Errorf("graph: serialize context: %w", err)
	}
	return data, nil
}

// MarkerIndex returns the distinct markers carried by nodes and their
// annotations, in first-seen order.
func (g *Graph) MarkerIndex() []string {
	seen := map[string]struct{}{}
	out := []string{}
	add := func(m string) {
		if m == "" {
			return
		}
		if _, dup := seen[m]; dup {
			return
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	for _, n := range g.nodes {
		add(n.Marker)
		anns, _ := n.Extra["annotations"].([]any)
		for _, a := range anns {
			if m, ok := a.(map[string]any); ok {
				s, _ := m["marker"].(string)
				add(s)
			}
		}
	}
	return out
}
