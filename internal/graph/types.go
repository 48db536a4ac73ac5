// Package graph provides the model reference graph used by the schema
// registry. An edge From -> To means model From holds a field referencing
// model To; Parents is therefore the reverse-reference index.
package graph

import "sort"

// Node represents a model in the reference graph.
type Node struct {
	Name string // Primary model name
	Aka  string // Alternate model name
	Key  string // Identity field ("id" or joined composite key)
}

// Edge represents a reference from one model to another.
type Edge struct {
	From string // Referencing model
	To   string // Referenced model
}

// EdgeMeta describes one referencing field. A model may reference the same
// target through several fields, so an edge carries a list of them.
type EdgeMeta struct {
	Field    string // Field on From holding the foreign key
	Property string // Key on To that the foreign key matches
}

// Graph represents every reference between registered models.
type Graph struct {
	Nodes        map[string]*Node     // model name -> node
	Children     map[string][]string  // model -> models it references (outgoing edges)
	Parents      map[string][]string  // model -> models referencing it (incoming edges)
	edgeMetadata map[Edge][]*EdgeMeta // Edge -> referencing fields in declaration order
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		Nodes:        make(map[string]*Node),
		Children:     make(map[string][]string),
		Parents:      make(map[string][]string),
		edgeMetadata: make(map[Edge][]*EdgeMeta),
	}
}

// AddNode adds a model node to the graph.
// If node is nil, a new node with default values is created.
func (g *Graph) AddNode(name string, node *Node) {
	if node == nil {
		node = &Node{Name: name}
	}
	node.Name = name
	g.Nodes[name] = node
}

// AddEdge adds a from -> to reference. Repeated edges are stored once.
// It also maintains the reverse mapping for efficient parent lookups.
func (g *Graph) AddEdge(from, to string) {
	if contains(g.Children[from], to) {
		return
	}

	// Add to children map (forward edges)
	g.Children[from] = append(g.Children[from], to)

	// Add to parents map (reverse edges)
	g.Parents[to] = append(g.Parents[to], from)
}

// AddEdgeWithMeta adds an edge together with the referencing field.
func (g *Graph) AddEdgeWithMeta(from, to, field, property string) {
	g.AddEdge(from, to)

	edge := Edge{From: from, To: to}
	g.edgeMetadata[edge] = append(g.edgeMetadata[edge], &EdgeMeta{
		Field:    field,
		Property: property,
	})
}

// GetChildren returns the models referenced by a model.
func (g *Graph) GetChildren(from string) []string {
	return g.Children[from]
}

// GetParents returns the models referencing a model.
func (g *Graph) GetParents(to string) []string {
	return g.Parents[to]
}

// GetNode returns the node for a given model name, or nil if not found.
func (g *Graph) GetNode(name string) *Node {
	return g.Nodes[name]
}

// GetEdgeMeta returns the referencing fields of an edge, or nil if not found.
func (g *Graph) GetEdgeMeta(from, to string) []*EdgeMeta {
	return g.edgeMetadata[Edge{From: from, To: to}]
}

// HasNode returns true if the graph contains a node with the given name.
func (g *Graph) HasNode(name string) bool {
	_, exists := g.Nodes[name]
	return exists
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.Nodes)
}

// EdgeCount returns the number of referencing fields in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, metas := range g.edgeMetadata {
		count += len(metas)
	}
	return count
}

// AllNodes returns all model names in sorted order.
func (g *Graph) AllNodes() []string {
	nodes := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		nodes = append(nodes, name)
	}
	sort.Strings(nodes)
	return nodes
}

// AllEdges returns all edges ordered by From, then To.
func (g *Graph) AllEdges() []Edge {
	var edges []Edge
	for from, children := range g.Children {
		for _, to := range children {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// InDegree returns the number of models referencing a node.
func (g *Graph) InDegree(name string) int {
	return len(g.Parents[name])
}

// OutDegree returns the number of models a node references.
func (g *Graph) OutDegree(name string) int {
	return len(g.Children[name])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
