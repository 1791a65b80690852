package graph

// structure classifies the directed relationship among three
// consecutive nodes a-b-c on an undirected path, needed to decide
// whether b blocks the path (cgm.py's _classify_three_structure).
type structure int

const (
	chain structure = iota
	fork
	collider
)

func (d *DAG) edge(from, to string) bool {
	fid, ok1 := d.id[from]
	tid, ok2 := d.id[to]
	if !ok1 || !ok2 {
		return false
	}
	return d.g.HasEdgeFromTo(fid, tid)
}

func (d *DAG) classify(a, b, c string) structure {
	switch {
	case d.edge(a, b) && d.edge(b, c):
		return chain
	case d.edge(c, b) && d.edge(b, a):
		return chain
	case d.edge(b, a) && d.edge(b, c):
		return fork
	default:
		return collider
	}
}

// undirectedNeighbors returns the names of every node adjacent to n in
// either direction, across all kinds (latent points included — they
// carry the bidirected confounding edges that d-separation must walk
// through).
func (d *DAG) undirectedNeighbors(n string) []string {
	id, ok := d.id[n]
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	it := d.g.To(id)
	for it.Next() {
		seen[d.name[it.Node().ID()]] = true
	}
	it = d.g.From(id)
	for it.Next() {
		seen[d.name[it.Node().ID()]] = true
	}
	out := make([]string, 0, len(seen))
	for nm := range seen {
		out = append(out, nm)
	}
	return out
}

// allSimplePaths enumerates every simple (no repeated node) path from x
// to y over the undirected skeleton of the whole graph, including
// latent points. gonum's graph/topo and graph/traverse packages expose
// shortest-path and ordering utilities but no all-simple-paths
// enumerator, so this walk is hand-rolled (documented in DESIGN.md).
func (d *DAG) allSimplePaths(x, y string) [][]string {
	var paths [][]string
	visited := map[string]bool{x: true}
	var walk func(cur string, path []string)
	walk = func(cur string, path []string) {
		if cur == y {
			cp := make([]string, len(path))
			copy(cp, path)
			paths = append(paths, cp)
			return
		}
		for _, nb := range d.undirectedNeighbors(cur) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			walk(nb, append(path, nb))
			visited[nb] = false
		}
	}
	walk(x, []string{x})
	return paths
}

// blocked reports whether path (a slice of node names from x to y) is
// blocked given conditioning set z, per the standard d-separation rule:
// a chain or fork node blocks iff it's in z; a collider node blocks iff
// neither it nor any of its descendants is in z.
func (d *DAG) blocked(path []string, z map[string]bool) bool {
	for i := 1; i < len(path)-1; i++ {
		a, b, c := path[i-1], path[i], path[i+1]
		switch d.classify(a, b, c) {
		case chain, fork:
			if z[b] {
				return true
			}
		case collider:
			if z[b] {
				continue
			}
			desc, _ := d.Descendants(b)
			hit := false
			for _, dn := range desc {
				if z[dn] {
					hit = true
					break
				}
			}
			if !hit {
				return true
			}
		}
	}
	return false
}

// IsDSeparated reports whether x and y are d-separated given z: every
// undirected path between them must be blocked.
func (d *DAG) IsDSeparated(x, y string, z []string) (bool, error) {
	if !d.Has(x) {
		return false, errUnknown("isdseparated", x)
	}
	if !d.Has(y) {
		return false, errUnknown("isdseparated", y)
	}
	zset := make(map[string]bool, len(z))
	for _, n := range z {
		if !d.Has(n) {
			return false, errUnknown("isdseparated", n)
		}
		zset[n] = true
	}
	paths := d.allSimplePaths(x, y)
	if len(paths) == 0 {
		return true, nil
	}
	for _, p := range paths {
		if len(p) < 3 {
			// a direct edge x-y is never blockable by conditioning.
			return false, nil
		}
		if !d.blocked(p, zset) {
			return false, nil
		}
	}
	return true, nil
}

func errUnknown(fn, n string) error {
	return &unknownNodeError{fn: fn, node: n}
}

type unknownNodeError struct {
	fn   string
	node string
}

func (e *unknownNodeError) Error() string {
	return e.fn + ": unknown node \"" + e.node + "\""
}
