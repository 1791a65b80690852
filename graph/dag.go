// Package graph implements GraphCore: a DAG over observed nodes, set
// (intervened) nodes, S-nodes (selection indicators) and latent
// (bidirected) confounder points, together with the causal queries the
// rest of the simulator needs: ancestry, d-separation, adjustment-set
// enumeration and transport-formula derivation.
package graph

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Kind classifies a node within the DAG. Latent points are never
// returned from any public traversal (Parents, Ancestors, ...); they
// exist purely to encode a bidirected confounding edge as two directed
// edges, per spec.md's "DAG (GraphCore)" data model.
type Kind int

const (
	ObservedKind Kind = iota
	SetKind
	SNodeKind
	LatentKind
)

func (k Kind) String() string {
	switch k {
	case ObservedKind:
		return "observed"
	case SetKind:
		return "set"
	case SNodeKind:
		return "s-node"
	case LatentKind:
		return "latent"
	default:
		return "unknown"
	}
}

// DAG is an owned graph value: nodes are addressed by string name, and
// the underlying gonum graph is keyed by an internal integer id so that
// DAG can be passed and copied by value semantics without the
// graph<->node back-reference cycle a naive port of the Python
// implementation would otherwise create (design note, spec.md §9).
type DAG struct {
	g      *simple.DirectedGraph
	id     map[string]int64
	name   map[int64]string
	kind   map[string]Kind
	nextID int64
}

// New returns an empty DAG.
func New() *DAG {
	return &DAG{
		g:    simple.NewDirectedGraph(),
		id:   make(map[string]int64),
		name: make(map[int64]string),
		kind: make(map[string]Kind),
	}
}

// AddNode adds a node of the given kind. Adding a node twice is a
// configuration error.
func (d *DAG) AddNode(n string, k Kind) error {
	if _, ok := d.id[n]; ok {
		return fmt.Errorf("addnode: node %q already exists", n)
	}
	id := d.nextID
	d.nextID++
	d.id[n] = id
	d.name[id] = n
	d.kind[n] = k
	d.g.AddNode(simple.Node(id))
	return nil
}

// Has returns whether a node by that name exists in the DAG.
func (d *DAG) Has(n string) bool {
	_, ok := d.id[n]
	return ok
}

// Kind returns the Kind of a node.
func (d *DAG) Kind(n string) (Kind, error) {
	k, ok := d.kind[n]
	if !ok {
		return 0, fmt.Errorf("kind: unknown node %q", n)
	}
	return k, nil
}

// AddEdge adds a directed observed edge from -> to. Rejected if either
// endpoint is unknown, if to is a set-node (set-nodes have no incoming
// observed edges, per the DAG invariant), or if the edge would close a
// cycle.
func (d *DAG) AddEdge(from, to string) error {
	fid, ok := d.id[from]
	if !ok {
		return fmt.Errorf("addedge: unknown node %q", from)
	}
	tid, ok := d.id[to]
	if !ok {
		return fmt.Errorf("addedge: unknown node %q", to)
	}
	if d.kind[to] == SetKind {
		return fmt.Errorf("addedge: set-node %q may not have incoming observed edges", to)
	}
	d.g.SetEdge(simple.Edge{F: simple.Node(fid), T: simple.Node(tid)})
	if _, err := topo.Sort(d.g); err != nil {
		d.g.RemoveEdge(fid, tid)
		return fmt.Errorf("addedge: %s->%s would create a cycle", from, to)
	}
	return nil
}

// AddLatentEdge introduces a fresh latent confounder point with two
// outgoing edges to a and b, representing the bidirected edge a<->b.
// The point itself is never surfaced by Parents/Children/Ancestors/
// Descendants.
func (d *DAG) AddLatentEdge(a, b string) error {
	if !d.Has(a) {
		return fmt.Errorf("addlatentedge: unknown node %q", a)
	}
	if !d.Has(b) {
		return fmt.Errorf("addlatentedge: unknown node %q", b)
	}
	point := fmt.Sprintf("U_%s_%s_%d", a, b, d.nextID)
	if err := d.AddNode(point, LatentKind); err != nil {
		return err
	}
	pid := d.id[point]
	d.g.SetEdge(simple.Edge{F: simple.Node(pid), T: simple.Node(d.id[a])})
	d.g.SetEdge(simple.Edge{F: simple.Node(pid), T: simple.Node(d.id[b])})
	return nil
}

// AddSNode introduces a fresh S-node with a single outgoing edge to
// child, representing a selection-diagram marker (spec.md §4.1
// selection_diagram).
func (d *DAG) AddSNode(child string) (string, error) {
	if !d.Has(child) {
		return "", fmt.Errorf("addsnode: unknown node %q", child)
	}
	name := fmt.Sprintf("Snode_%s", child)
	if !d.Has(name) {
		if err := d.AddNode(name, SNodeKind); err != nil {
			return "", err
		}
	}
	d.g.SetEdge(simple.Edge{F: simple.Node(d.id[name]), T: simple.Node(d.id[child])})
	return name, nil
}

// observed reports whether a node participates in ancestry/d-separation
// results: everything except latent confounder points (matches the
// Python cgm.CausalGraph.observed_vars = nodes + s_nodes).
func (d *DAG) observed(name string) bool {
	return d.kind[name] != LatentKind
}

// Observed returns every non-latent node name, sorted.
func (d *DAG) Observed() []string {
	var out []string
	for n := range d.id {
		if d.observed(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// SNodes returns the names of all S-nodes, sorted.
func (d *DAG) SNodes() []string {
	var out []string
	for n, k := range d.kind {
		if k == SNodeKind {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// SetNodes returns the names of all set (intervened) nodes, sorted.
func (d *DAG) SetNodes() []string {
	var out []string
	for n, k := range d.kind {
		if k == SetKind {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Parents returns the immediate observed/set/S-node predecessors of n,
// excluding latent confounder points.
func (d *DAG) Parents(n string) ([]string, error) {
	id, ok := d.id[n]
	if !ok {
		return nil, fmt.Errorf("parents: unknown node %q", n)
	}
	var out []string
	it := d.g.To(id)
	for it.Next() {
		name := d.name[it.Node().ID()]
		if d.observed(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Children returns the immediate observed/set/S-node successors of n,
// excluding latent confounder points.
func (d *DAG) Children(n string) ([]string, error) {
	id, ok := d.id[n]
	if !ok {
		return nil, fmt.Errorf("children: unknown node %q", n)
	}
	var out []string
	it := d.g.From(id)
	for it.Next() {
		name := d.name[it.Node().ID()]
		if d.observed(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Ancestors returns every strict ancestor of n (excluding n, excluding
// latent points), sorted.
func (d *DAG) Ancestors(n string) ([]string, error) {
	id, ok := d.id[n]
	if !ok {
		return nil, fmt.Errorf("ancestors: unknown node %q", n)
	}
	seen := make(map[int64]bool)
	var visit func(int64)
	visit = func(cur int64) {
		it := d.g.To(cur)
		for it.Next() {
			pid := it.Node().ID()
			if seen[pid] {
				continue
			}
			seen[pid] = true
			visit(pid)
		}
	}
	visit(id)
	return d.filterNames(seen), nil
}

// Descendants returns every strict descendant of n (excluding n,
// excluding latent points), sorted.
func (d *DAG) Descendants(n string) ([]string, error) {
	id, ok := d.id[n]
	if !ok {
		return nil, fmt.Errorf("descendants: unknown node %q", n)
	}
	seen := make(map[int64]bool)
	var visit func(int64)
	visit = func(cur int64) {
		it := d.g.From(cur)
		for it.Next() {
			cid := it.Node().ID()
			if seen[cid] {
				continue
			}
			seen[cid] = true
			visit(cid)
		}
	}
	visit(id)
	return d.filterNames(seen), nil
}

func (d *DAG) filterNames(ids map[int64]bool) []string {
	var out []string
	for id := range ids {
		name := d.name[id]
		if d.observed(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// CausalPath returns descendants(a) ∩ ancestors(b) ∪ {b}, the set of
// nodes lying on some directed path from a to b (spec.md §4.1).
func (d *DAG) CausalPath(a, b string) ([]string, error) {
	desc, err := d.Descendants(a)
	if err != nil {
		return nil, fmt.Errorf("causalpath: %v", err)
	}
	anc, err := d.Ancestors(b)
	if err != nil {
		return nil, fmt.Errorf("causalpath: %v", err)
	}
	ancSet := make(map[string]bool, len(anc))
	for _, n := range anc {
		ancSet[n] = true
	}
	out := map[string]bool{b: true}
	for _, n := range desc {
		if ancSet[n] {
			out[n] = true
		}
	}
	result := make([]string, 0, len(out))
	for n := range out {
		result = append(result, n)
	}
	sort.Strings(result)
	return result, nil
}

// clone returns a deep copy of the DAG (used by Do and SelectionDiagram,
// which each return a new, independent graph rather than mutate the
// receiver).
func (d *DAG) clone() *DAG {
	out := New()
	names := make([]string, 0, len(d.id))
	for n := range d.id {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		out.AddNode(n, d.kind[n])
	}
	edges := d.g.Edges()
	for edges.Next() {
		e := edges.Edge()
		from := d.name[e.From().ID()]
		to := d.name[e.To().ID()]
		out.g.SetEdge(simple.Edge{F: simple.Node(out.id[from]), T: simple.Node(out.id[to])})
	}
	out.nextID = d.nextID
	return out
}
