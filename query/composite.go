package query

import (
	"sort"
	"strings"
)

// Product is the algebraic product of its factors. Product(nil) == 1,
// per spec.md's base case.
type Product struct {
	Factors []Expr
}

// NewProduct builds a Product over the given factors.
func NewProduct(factors ...Expr) *Product {
	return &Product{Factors: factors}
}

func (p *Product) Vars() []string { return varsOf(p.Factors) }

func (p *Product) UnassignedVars() []string { return unassignedVarsOf(p.Factors) }

func (p *Product) AllAssigned() bool { return len(p.UnassignedVars()) == 0 }

func (p *Product) Assign(variable string, val int) Expr {
	for _, f := range p.Factors {
		f.Assign(variable, val)
	}
	return p
}

func (p *Product) Over(domains map[string][]int) Expr { return expand(p, domains) }

func (p *Product) Copy() Expr {
	cp := make([]Expr, len(p.Factors))
	for i, f := range p.Factors {
		cp[i] = f.Copy()
	}
	return &Product{Factors: cp}
}

func (p *Product) String() string {
	parts := make([]string, len(p.Factors))
	for i, f := range p.Factors {
		parts[i] = f.String()
	}
	return strings.Join(parts, "*")
}

func (p *Product) evalAssigned(cpts CPTMap) (float64, bool) {
	result := 1.0
	for _, f := range p.Factors {
		v, ok := evalExpr(f, cpts)
		if !ok {
			return 0, false
		}
		result *= v
	}
	return result, true
}

// Summation is the algebraic sum of its terms. Summation(nil) == 0.
type Summation struct {
	Terms []Expr
}

// NewSummation builds a Summation over the given terms.
func NewSummation(terms ...Expr) *Summation {
	return &Summation{Terms: terms}
}

func (s *Summation) Vars() []string { return varsOf(s.Terms) }

func (s *Summation) UnassignedVars() []string { return unassignedVarsOf(s.Terms) }

func (s *Summation) AllAssigned() bool { return len(s.UnassignedVars()) == 0 }

func (s *Summation) Assign(variable string, val int) Expr {
	for _, t := range s.Terms {
		t.Assign(variable, val)
	}
	return s
}

func (s *Summation) Over(domains map[string][]int) Expr { return expand(s, domains) }

func (s *Summation) Copy() Expr {
	cp := make([]Expr, len(s.Terms))
	for i, t := range s.Terms {
		cp[i] = t.Copy()
	}
	return &Summation{Terms: cp}
}

func (s *Summation) String() string {
	parts := make([]string, len(s.Terms))
	for i, t := range s.Terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, "+") + ")"
}

func (s *Summation) evalAssigned(cpts CPTMap) (float64, bool) {
	result := 0.0
	for _, t := range s.Terms {
		v, ok := evalExpr(t, cpts)
		if !ok {
			return 0, false
		}
		result += v
	}
	return result, true
}

// Quotient is Nume / Denom.
type Quotient struct {
	Nume  Expr
	Denom Expr
}

func NewQuotient(nume, denom Expr) *Quotient {
	return &Quotient{Nume: nume, Denom: denom}
}

func (q *Quotient) Vars() []string { return varsOf([]Expr{q.Nume, q.Denom}) }

func (q *Quotient) UnassignedVars() []string { return unassignedVarsOf([]Expr{q.Nume, q.Denom}) }

func (q *Quotient) AllAssigned() bool { return len(q.UnassignedVars()) == 0 }

func (q *Quotient) Assign(variable string, val int) Expr {
	q.Nume.Assign(variable, val)
	q.Denom.Assign(variable, val)
	return q
}

func (q *Quotient) Over(domains map[string][]int) Expr { return expand(q, domains) }

func (q *Quotient) Copy() Expr {
	return &Quotient{Nume: q.Nume.Copy(), Denom: q.Denom.Copy()}
}

func (q *Quotient) String() string {
	return "(" + q.Nume.String() + ")/(" + q.Denom.String() + ")"
}

func (q *Quotient) evalAssigned(cpts CPTMap) (float64, bool) {
	n, ok := evalExpr(q.Nume, cpts)
	if !ok {
		return 0, false
	}
	d, ok := evalExpr(q.Denom, cpts)
	if !ok || d == 0 {
		return 0, false
	}
	return n / d, true
}

func varsOf(exprs []Expr) []string {
	seen := make(map[string]bool)
	for _, e := range exprs {
		for _, v := range e.Vars() {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func unassignedVarsOf(exprs []Expr) []string {
	seen := make(map[string]bool)
	for _, e := range exprs {
		for _, v := range e.UnassignedVars() {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
