// Package process implements the Monte-Carlo simulation driver: config
// permutation over independent-variable levels, environment
// randomization, and parallel trial execution with per-level
// trajectory aggregation. Grounded on original_source/src/process.py's
// Process, and on the teacher's reflection-based config-permutation
// mechanism (agent/Config.go's ConfigAt/configAt, read from the
// read-only teacher copy since relocated here -- see DESIGN.md).
package process

import (
	"fmt"
	"reflect"

	"github.com/causalbandits/otpsim/agent"
)

// Assignment is one fully-resolved set of independent-variable knobs
// for a single agent. Grounded on agent.py's get_ind_var_value fields.
type Assignment struct {
	OTP         string
	Tau         float64
	ASR         agent.ASR
	Epsilon     float64
	RandTrials  int
	CoolingRate float64
}

// AssignmentSpace is the same fields as Assignment, but every field is
// a slice. spec.md §4.7 requires that at most one field have length >
// 1 (the "independent variable" being swept); every other field must
// have length exactly 1 (its fixed value). AssignmentAt below does not
// itself enforce this -- Validate does.
type AssignmentSpace struct {
	OTP         []string
	Tau         []float64
	ASR         []agent.ASR
	Epsilon     []float64
	RandTrials  []int
	CoolingRate []float64
}

// Validate checks that at most one field is a genuine sweep (length >
// 1) and that no field is empty.
func (s AssignmentSpace) Validate() error {
	rv := reflect.ValueOf(s)
	rt := rv.Type()
	swept := ""
	for f := 0; f < rv.NumField(); f++ {
		n := rv.Field(f).Len()
		if n == 0 {
			return fmt.Errorf("assignmentspace: field %q has no values", rt.Field(f).Name)
		}
		if n > 1 {
			if swept != "" {
				return fmt.Errorf("assignmentspace: both %q and %q have more than one value; only one independent variable is allowed", swept, rt.Field(f).Name)
			}
			swept = rt.Field(f).Name
		}
	}
	return nil
}

// IndependentVariable returns the name of the swept field, or "" if
// every field is fixed (no sweep; a single-level space).
func (s AssignmentSpace) IndependentVariable() string {
	rv := reflect.ValueOf(s)
	rt := rv.Type()
	for f := 0; f < rv.NumField(); f++ {
		if rv.Field(f).Len() > 1 {
			return rt.Field(f).Name
		}
	}
	return ""
}

// Len returns the number of distinct Assignments the space expands to
// -- the product of every field's length, which per Validate is just
// the swept field's length (or 1, with no sweep).
func (s AssignmentSpace) Len() int {
	total := 1
	rv := reflect.ValueOf(s)
	for f := 0; f < rv.NumField(); f++ {
		if n := rv.Field(f).Len(); n > 0 {
			total *= n
		}
	}
	return total
}

// AssignmentAt returns the i%Len()-th Assignment in the space, cycling
// each field independently (mixed-radix indexing) the way the
// teacher's configAt does, generalized here to an unrelated domain's
// fields instead of agent hyperparameters.
func AssignmentAt(i int, space AssignmentSpace) Assignment {
	var out Assignment
	rv := reflect.ValueOf(space)
	ov := reflect.ValueOf(&out).Elem()
	accum := 1
	for f := 0; f < rv.NumField(); f++ {
		field := rv.Field(f)
		n := field.Len()
		if n == 0 {
			continue
		}
		idx := (i / accum) % n
		ov.Field(f).Set(field.Index(idx))
		accum *= n
	}
	return out
}

// Levels expands an AssignmentSpace into every Assignment it names, in
// order.
func Levels(space AssignmentSpace) []Assignment {
	out := make([]Assignment, space.Len())
	for i := range out {
		out[i] = AssignmentAt(i, space)
	}
	return out
}

// LevelValue returns the value of the space's independent variable for
// a resolved Assignment, as the map key used to bucket trajectories by
// level. Returns the field's value unmodified (e.g. "Adjust" for OTP,
// the raw number for numeric knobs), or nil for an unknown name or ""
// (no sweep).
func LevelValue(indVar string, a Assignment) interface{} {
	switch indVar {
	case "OTP":
		return a.OTP
	case "Tau":
		return a.Tau
	case "ASR":
		return a.ASR
	case "Epsilon":
		return a.Epsilon
	case "RandTrials":
		return a.RandTrials
	case "CoolingRate":
		return a.CoolingRate
	default:
		return nil
	}
}
