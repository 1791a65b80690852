// Package databank implements DataBank: the shared per-trial store of
// every agent's knowledge (one cpt.Store each) plus the pairwise,
// per-node Hellinger divergence matrix used to decide which peers'
// observations are safe to pool (Naive/Sensitive OTP) or transport
// through (Adjust OTP). Grounded on original_source/src/data.py,
// generalized from the original's KL-divergence stub to the Hellinger
// distance spec.md actually specifies.
package databank

import (
	"fmt"
	"sort"

	"github.com/causalbandits/otpsim/cpt"
)

// DataBank owns one cpt.Store per agent and the divergence matrix
// between every pair, keyed [agent][peer][node].
type DataBank struct {
	Stores      map[string]*cpt.Store
	Divergence  map[string]map[string]map[string]float64
	Domains     map[string][]int
	ActVar      string
	RewVar      string
	DivNodeConf float64
}

// New builds an empty DataBank.
func New(domains map[string][]int, actVar, rewVar string, divNodeConf float64) *DataBank {
	return &DataBank{
		Stores:      make(map[string]*cpt.Store),
		Divergence:  make(map[string]map[string]map[string]float64),
		Domains:     domains,
		ActVar:      actVar,
		RewVar:      rewVar,
		DivNodeConf: divNodeConf,
	}
}

// nonActNodes returns every domain var except the action variable.
func (d *DataBank) nonActNodes() []string {
	var out []string
	for n := range d.Domains {
		if n != d.ActVar {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// AddAgent registers a new agent's Store, initializing its divergence
// against every existing agent to 1 (maximally divergent) on every
// node until UpdateDivergence recomputes it. Grounded on data.py's
// DataBank.add_agent.
func (d *DataBank) AddAgent(name string, store *cpt.Store) {
	if _, ok := d.Stores[name]; ok {
		return
	}
	d.Stores[name] = store
	d.Divergence[name] = make(map[string]map[string]float64)
	for existing := range d.Stores {
		if existing == name {
			continue
		}
		d.Divergence[name][existing] = maxDivergence(d.nonActNodes())
		d.Divergence[existing][name] = maxDivergence(d.nonActNodes())
	}
}

func maxDivergence(nodes []string) map[string]float64 {
	m := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		m[n] = 1
	}
	return m
}

// UpdateDivergence recomputes every pairwise, per-node Hellinger
// distance between agents' empirical CPTs. A node with no observations
// from either agent keeps the maximally-divergent default of 1.
func (d *DataBank) UpdateDivergence() error {
	names := make([]string, 0, len(d.Stores))
	for n := range d.Stores {
		names = append(names, n)
	}
	sort.Strings(names)
	nodes := d.nonActNodes()
	for _, p := range names {
		if d.Divergence[p] == nil {
			d.Divergence[p] = make(map[string]map[string]float64)
		}
		for _, q := range names {
			if d.Divergence[p][q] == nil {
				d.Divergence[p][q] = make(map[string]float64)
			}
			if p == q {
				for _, n := range nodes {
					d.Divergence[p][q][n] = 0
				}
				continue
			}
			for _, n := range nodes {
				div, err := d.nodeDivergence(p, q, n)
				if err != nil {
					return fmt.Errorf("updatedivergence: %v", err)
				}
				d.Divergence[p][q][n] = div
			}
		}
	}
	return nil
}

func (d *DataBank) nodeDivergence(p, q, node string) (float64, error) {
	pTable, ok := d.Stores[p].Tables[node]
	if !ok {
		return 0, fmt.Errorf("agent %q has no table for %q", p, node)
	}
	qTable, ok := d.Stores[q].Tables[node]
	if !ok {
		return 0, fmt.Errorf("agent %q has no table for %q", q, node)
	}
	domain := d.Domains[node]
	combos := unionParentCombos(pTable, qTable)
	if len(combos) == 0 {
		return 1, nil
	}
	var weighted, totalWeight float64
	for _, combo := range combos {
		pv := pTable.ProbVector(domain, combo)
		qv := qTable.ProbVector(domain, combo)
		if pv == nil || qv == nil {
			weighted += 1 * (pTable.Count(combo) + qTable.Count(combo) + 1)
			totalWeight += pTable.Count(combo) + qTable.Count(combo) + 1
			continue
		}
		w := pTable.Count(combo) + qTable.Count(combo)
		weighted += hellingerDistance(pv, qv) * w
		totalWeight += w
	}
	if totalWeight == 0 {
		return 1, nil
	}
	return weighted / totalWeight, nil
}

func unionParentCombos(a, b *cpt.Table) []map[string]int {
	seen := make(map[string]map[string]int)
	for _, c := range a.ParentAssignments() {
		seen[comboKey(c)] = c
	}
	for _, c := range b.ParentAssignments() {
		seen[comboKey(c)] = c
	}
	out := make([]map[string]int, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out
}

func comboKey(c map[string]int) string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for _, k := range keys {
		s += fmt.Sprintf("%s=%d,", k, c[k])
	}
	return s
}

// DivNodes returns every node where p and q's empirical distributions
// diverge beyond DivNodeConf. Grounded on data.py's div_nodes.
func (d *DataBank) DivNodes(p, q string) []string {
	if p == q {
		return nil
	}
	var out []string
	for node, div := range d.Divergence[p][q] {
		if div > d.DivNodeConf {
			out = append(out, node)
		}
	}
	sort.Strings(out)
	return out
}

// SensitiveData returns the pooled Store of every peer (including p)
// whose divergent nodes are a subset of featureVars -- the broader
// "feature-only divergence is acceptable" pooling rule (see DESIGN.md's
// Open Question resolution), generalizing data.py's stricter
// zero-divergent-nodes rule.
func (d *DataBank) SensitiveData(p string, featureVars []string) (*cpt.Store, error) {
	feat := make(map[string]bool, len(featureVars))
	for _, f := range featureVars {
		feat[f] = true
	}
	pool, ok := d.Stores[p]
	if !ok {
		return nil, fmt.Errorf("sensitivedata: unknown agent %q", p)
	}
	for q, store := range d.Stores {
		if q == p {
			continue
		}
		divergent := d.DivNodes(p, q)
		onlyFeatures := true
		for _, n := range divergent {
			if !feat[n] {
				onlyFeatures = false
				break
			}
		}
		if !onlyFeatures {
			continue
		}
		merged, err := pool.Merge(store)
		if err != nil {
			return nil, fmt.Errorf("sensitivedata: %v", err)
		}
		pool = merged
	}
	return pool, nil
}

// NaivePool returns the Store merging every registered agent's
// observations unconditionally, ignoring divergence.
func (d *DataBank) NaivePool(p string) (*cpt.Store, error) {
	pool, ok := d.Stores[p]
	if !ok {
		return nil, fmt.Errorf("naivepool: unknown agent %q", p)
	}
	for q, store := range d.Stores {
		if q == p {
			continue
		}
		merged, err := pool.Merge(store)
		if err != nil {
			return nil, fmt.Errorf("naivepool: %v", err)
		}
		pool = merged
	}
	return pool, nil
}
