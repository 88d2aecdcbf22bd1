package tensor

import "math"

// ScaleInPlace multiplies the tensor by a scalar without allocating.
func ScaleInPlace(a *Tensor, s float32) {
	for i := range a.Data {
		a.Data[i] *= s
	}
}

// IsFinite reports whether every element is finite (no NaN or Inf).
func IsFinite(a *Tensor) bool {
	for _, v := range a.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
