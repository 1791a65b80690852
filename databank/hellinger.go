package databank

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// hellingerDistance computes the Hellinger distance between two
// discrete probability vectors of equal length, in [0, 1]. Uses
// gonum's floats.Distance for the underlying Euclidean norm, the same
// vector-helpers package the teacher already depends on via gonum.
func hellingerDistance(p, q []float64) float64 {
	sp := make([]float64, len(p))
	sq := make([]float64, len(q))
	for i := range p {
		sp[i] = math.Sqrt(p[i])
	}
	for i := range q {
		sq[i] = math.Sqrt(q[i])
	}
	return floats.Distance(sp, sq, 2) / math.Sqrt2
}
