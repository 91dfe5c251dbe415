package retrieval

import "math"

// CosineDistance returns 1 minus the cosine similarity of a and b, so
// the result lies in [0, 2] and smaller means more similar. Mismatched
// or zero-magnitude vectors are maximally distant at 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
