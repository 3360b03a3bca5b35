package includegraph

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// Project folds the multigraph into a simple directed graph. Parallel edges
// become one edge whose weight is their multiplicity; the receiver is not
// modified.
func (g *Graph) Project() (graph.Graph[string, string], error) {
	return g.project(false)
}

func (g *Graph) project(reverse bool) (graph.Graph[string, string], error) {
	p := graph.New(graph.StringHash, graph.Directed())

	for _, n := range g.Nodes() {
		attrs := []func(*graph.VertexProperties){
			graph.VertexAttribute("label", label(n.URI)),
		}
		if n.IsTU() {
			attrs = append(attrs, graph.VertexAttribute("shape", "box"))
		}
		if err := p.AddVertex(n.URI, attrs...); err != nil {
			return nil, fmt.Errorf("failed to add vertex %s: %w", n.URI, err)
		}
	}

	for _, e := range foldEdges(g) {
		from, to := e.From, e.To
		if reverse {
			from, to = to, from
		}
		opts := []func(*graph.EdgeProperties){graph.EdgeWeight(e.Count)}
		if e.Count > 1 {
			opts = append(opts, graph.EdgeAttribute("label", strconv.Itoa(e.Count)))
		}
		if err := p.AddEdge(from, to, opts...); err != nil {
			return nil, fmt.Errorf("failed to add edge %s -> %s: %w", from, to, err)
		}
	}
	return p, nil
}

type foldedEdge struct {
	Edge
	Count int
}

// foldEdges counts parallel edges, keeping first-seen order.
func foldEdges(g *Graph) []foldedEdge {
	index := make(map[Edge]int)
	var out []foldedEdge
	for _, e := range g.Edges() {
		if i, ok := index[e]; ok {
			out[i].Count++
			continue
		}
		index[e] = len(out)
		out = append(out, foldedEdge{Edge: e, Count: 1})
	}
	return out
}

// Cycles returns the include cycles: strongly connected components with more
// than one file, plus files that include themselves.
func (g *Graph) Cycles() ([][]string, error) {
	p, err := g.Project()
	if err != nil {
		return nil, err
	}
	components, err := graph.StronglyConnectedComponents(p)
	if err != nil {
		return nil, fmt.Errorf("failed to compute components: %w", err)
	}

	var cycles [][]string
	for _, c := range components {
		if len(c) == 1 && !g.includesSelf(c[0]) {
			continue
		}
		sorted := append([]string(nil), c...)
		sort.Strings(sorted)
		cycles = append(cycles, sorted)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, nil
}

func (g *Graph) includesSelf(u string) bool {
	n, ok := g.nodes[u]
	if !ok {
		return false
	}
	for _, to := range n.DirectIncludes {
		if to == u {
			return true
		}
	}
	return false
}

// TransitiveIncludes returns every file reachable from u, excluding u
// unless it sits on a cycle back to itself.
func (g *Graph) TransitiveIncludes(u string) ([]string, error) {
	p, err := g.Project()
	if err != nil {
		return nil, err
	}
	return reachable(p, u)
}

// Includers returns every file that directly or transitively includes u.
func (g *Graph) Includers(u string) ([]string, error) {
	p, err := g.project(true)
	if err != nil {
		return nil, err
	}
	return reachable(p, u)
}

func reachable(p graph.Graph[string, string], start string) ([]string, error) {
	if _, err := p.Vertex(start); err != nil {
		return nil, nil
	}
	adjacency, err := p.AdjacencyMap()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	err = graph.DFS(p, start, func(v string) bool {
		if v != start {
			seen[v] = true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	// DFS never revisits start, so a cycle through it is detected separately.
	for v := range adjacency {
		if _, ok := adjacency[v][start]; ok && (v == start || seen[v]) {
			seen[start] = true
		}
	}

	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}

// WriteDOT renders the folded graph in Graphviz DOT format.
func (g *Graph) WriteDOT(w io.Writer) error {
	p, err := g.Project()
	if err != nil {
		return err
	}
	return draw.DOT(p, w)
}

func label(u string) string {
	return path.Base(u)
}
