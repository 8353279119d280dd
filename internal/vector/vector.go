// Affinity - User Interest Vector Engine
// Copyright 2026 M. Bellwood (mbellwood)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mbellwood/affinity

// Package vector provides embedding math for the interest engine.
//
// All embeddings in one deployment share a single dimensionality and a
// single normalization convention: every vector handed to storage or
// similarity search is unit length (L2 norm = 1). The functions here are
// pure and allocation-predictable; none of them mutate their inputs.
//
// # Similarity Convention
//
// Affinity uses cosine SIMILARITY everywhere: higher is better, results
// sort descending. Cosine distance (1 - similarity) is never exposed.
// Mixing the two conventions is a classic source of inverted rankings,
// so the convention is fixed here and held invariant across packages.
package vector

import (
	"errors"
	"fmt"
	"math"
)

// Embedding is a point in the shared similarity space.
type Embedding []float64

// degenerateNormThreshold is the squared-norm floor below which a vector
// cannot be normalized without amplifying floating-point noise into the
// result. Aggressive dislike subtraction can produce such vectors.
const degenerateNormThreshold = 1e-12

var (
	// ErrDegenerateVector indicates a (near-)zero vector that cannot be
	// normalized. Callers must keep the previous vector rather than store
	// NaN/Inf components.
	ErrDegenerateVector = errors.New("degenerate vector: near-zero magnitude")

	// ErrDimensionMismatch indicates two embeddings of different
	// dimensionality. The engine fails fast rather than truncating or
	// padding, which would silently corrupt similarity rankings.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Clone returns an independent copy of e.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// Dim returns the dimensionality of e.
func (e Embedding) Dim() int { return len(e) }

// Norm returns the L2 norm of e.
func (e Embedding) Norm() float64 {
	return math.Sqrt(Dot(e, e))
}

// CheckDims verifies that a and b share the same dimensionality.
func CheckDims(a, b Embedding) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return nil
}

// Dot returns the dot product of a and b.
// Assumes equal length (caller's responsibility via CheckDims).
func Dot(a, b Embedding) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize returns a unit-length copy of e.
// Returns ErrDegenerateVector when e is (near-)zero.
func Normalize(e Embedding) (Embedding, error) {
	norm2 := Dot(e, e)
	if len(e) == 0 || norm2 < degenerateNormThreshold {
		return nil, ErrDegenerateVector
	}
	inv := 1 / math.Sqrt(norm2)
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = v * inv
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b in [-1, 1].
// Returns ErrDimensionMismatch on length disagreement and
// ErrDegenerateVector when either vector is (near-)zero.
func Cosine(a, b Embedding) (float64, error) {
	if err := CheckDims(a, b); err != nil {
		return 0, err
	}
	na := Dot(a, a)
	nb := Dot(b, b)
	if na < degenerateNormThreshold || nb < degenerateNormThreshold {
		return 0, ErrDegenerateVector
	}
	sim := Dot(a, b) / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp floating-point drift so callers can rely on [-1, 1].
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// Add returns a + b component-wise.
func Add(a, b Embedding) (Embedding, error) {
	if err := CheckDims(a, b); err != nil {
		return nil, err
	}
	out := make(Embedding, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

// Sub returns a - b component-wise.
func Sub(a, b Embedding) (Embedding, error) {
	if err := CheckDims(a, b); err != nil {
		return nil, err
	}
	out := make(Embedding, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out, nil
}

// Scale returns s * e.
func Scale(e Embedding, s float64) Embedding {
	out := make(Embedding, len(e))
	for i, v := range e {
		out[i] = v * s
	}
	return out
}

// Blend returns alpha*a + (1-alpha)*b without normalizing.
func Blend(a, b Embedding, alpha float64) (Embedding, error) {
	if err := CheckDims(a, b); err != nil {
		return nil, err
	}
	out := make(Embedding, len(a))
	for i := range a {
		out[i] = alpha*a[i] + (1-alpha)*b[i]
	}
	return out, nil
}

// Mean returns the component-wise mean of vs.
// All vectors must share one dimensionality; vs must be non-empty.
func Mean(vs []Embedding) (Embedding, error) {
	if len(vs) == 0 {
		return nil, errors.New("mean of empty vector set")
	}
	dim := len(vs[0])
	out := make(Embedding, dim)
	for _, v := range vs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, dim, len(v))
		}
		for i, x := range v {
			out[i] += x
		}
	}
	inv := 1 / float64(len(vs))
	for i := range out {
		out[i] *= inv
	}
	return out, nil
}

// IsFinite reports whether every component of e is a finite number.
func (e Embedding) IsFinite() bool {
	for _, v := range e {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
