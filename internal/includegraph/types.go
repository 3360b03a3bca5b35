package includegraph

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// FileDigest is a fixed-size hash of a file's bytes.
type FileDigest [8]byte

// DigestBytes hashes content.
func DigestBytes(content []byte) FileDigest {
	var d FileDigest
	binary.BigEndian.PutUint64(d[:], xxhash.Sum64(content))
	return d
}

// ParseDigest parses the hex form produced by FileDigest.String.
func ParseDigest(s string) (FileDigest, error) {
	var d FileDigest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("invalid digest %q: want %d bytes, got %d", s, len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

func (d FileDigest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as lowercase hex.
func (d FileDigest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a hex digest.
func (d *FileDigest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// SourceFlag describes a node.
type SourceFlag uint8

const (
	// FlagIsTU marks the translation unit's main file.
	FlagIsTU SourceFlag = 1 << iota
)

// Node is one file in the include graph.
type Node struct {
	URI string `json:"uri"`
	// Digest is nil when the content could not be read or the file was never
	// entered; consumers must then assume the file changed.
	Digest *FileDigest `json:"digest,omitempty"`
	Flags  SourceFlag  `json:"flags"`
	// DirectIncludes lists included URIs in directive order. Duplicates and
	// self references are kept.
	DirectIncludes []string `json:"direct_includes"`
	// Populated is set once an enter event filled in Digest and Flags.
	Populated bool `json:"populated"`
}

// IsTU reports whether the node is the unit's main file.
func (n *Node) IsTU() bool {
	return n.Flags&FlagIsTU != 0
}

// Edge is a directed include edge.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is a directed multigraph of files keyed by URI. Cycles, self edges
// and parallel edges are valid.
type Graph struct {
	nodes map[string]*Node
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// FromNodes builds a graph from previously extracted nodes. Targets of
// DirectIncludes that have no node of their own get an unpopulated one.
func FromNodes(nodes []*Node) *Graph {
	g := New()
	for _, n := range nodes {
		if n == nil || n.URI == "" {
			continue
		}
		g.nodes[n.URI] = n
	}
	for _, n := range nodes {
		if n == nil {
			continue
		}
		for _, to := range n.DirectIncludes {
			g.ensure(to)
		}
	}
	return g
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Node returns the node for uri.
func (g *Graph) Node(uri string) (*Node, bool) {
	n, ok := g.nodes[uri]
	return n, ok
}

// ensure looks up or creates the node for uri.
func (g *Graph) ensure(uri string) *Node {
	if n, ok := g.nodes[uri]; ok {
		return n
	}
	n := &Node{URI: uri}
	g.nodes[uri] = n
	return n
}

// addEdge appends from -> to, creating either node as needed.
func (g *Graph) addEdge(from, to string) {
	g.ensure(to)
	n := g.ensure(from)
	n.DirectIncludes = append(n.DirectIncludes, to)
}

// URIs returns all node keys sorted.
func (g *Graph) URIs() []string {
	uris := make([]string, 0, len(g.nodes))
	for u := range g.nodes {
		uris = append(uris, u)
	}
	sort.Strings(uris)
	return uris
}

// Nodes returns all nodes sorted by URI.
func (g *Graph) Nodes() []*Node {
	uris := g.URIs()
	nodes := make([]*Node, len(uris))
	for i, u := range uris {
		nodes[i] = g.nodes[u]
	}
	return nodes
}

// Edges returns every edge, grouped by source in URI order and in directive
// order within a source.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, n := range g.Nodes() {
		for _, to := range n.DirectIncludes {
			edges = append(edges, Edge{From: n.URI, To: to})
		}
	}
	return edges
}

// EdgeCount returns the number of edges, counting duplicates.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, n := range g.nodes {
		count += len(n.DirectIncludes)
	}
	return count
}

// Root returns the translation-unit node, if any.
func (g *Graph) Root() (*Node, bool) {
	for _, n := range g.nodes {
		if n.IsTU() {
			return n, true
		}
	}
	return nil, false
}

type graphJSON struct {
	Nodes []*Node `json:"nodes"`
}

// MarshalJSON encodes nodes in URI order so output is deterministic.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphJSON{Nodes: g.Nodes()})
}

// UnmarshalJSON restores a graph written by MarshalJSON.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var raw graphJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.nodes = make(map[string]*Node, len(raw.Nodes))
	for _, n := range raw.Nodes {
		if n == nil || n.URI == "" {
			continue
		}
		g.nodes[n.URI] = n
	}
	return nil
}
