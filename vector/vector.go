// Package vector generates, prints and checks the host-side integer vectors.
package vector

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const (
	// MaxValue is the exclusive upper bound of generated elements.
	MaxValue = 100

	// Vectors longer than SnapshotThreshold print only their head and tail.
	SnapshotThreshold = 15
	snapshotEdge      = 5

	separator = "\n----------------------------\n"

	verifyBlock = 4096
)

// Vector is a host vector of 32-bit integers, matching the device int type.
type Vector []int32

// NewRand returns a generator seeded with seed, or with a fresh random seed
// when seed is zero.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

// Generate allocates n elements drawn uniformly from [0, MaxValue).
func Generate(n int, rng *rand.Rand) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = int32(rng.IntN(MaxValue))
	}
	return v
}

// Format renders the snapshot printed for a vector.
func Format(v Vector) string {
	var sb strings.Builder
	write := func(x int32) {
		sb.WriteString(strconv.FormatInt(int64(x), 10))
		sb.WriteByte(' ')
	}
	if len(v) > SnapshotThreshold {
		for _, x := range v[:snapshotEdge] {
			write(x)
		}
		sb.WriteString(" ..... ")
		for _, x := range v[len(v)-snapshotEdge:] {
			write(x)
		}
	} else {
		for _, x := range v {
			write(x)
		}
	}
	sb.WriteString(separator)
	return sb.String()
}

// Add returns a + b computed on the host.
func Add(a, b Vector) (Vector, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("length mismatch: %d != %d", len(a), len(b))
	}
	out := make(Vector, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out, nil
}

// MismatchError reports the first element where out != a + b.
type MismatchError struct {
	Index    int
	Expected int64
	Got      int64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("element %d: expected %d, got %d", e.Index, e.Expected, e.Got)
}

// Verify checks out[i] == a[i] + b[i] for every i. The comparison runs in
// fixed-size blocks so large vectors do not need a full float64 copy.
func Verify(a, b, out Vector) error {
	if len(a) != len(b) || len(a) != len(out) {
		return fmt.Errorf("length mismatch: a=%d b=%d out=%d", len(a), len(b), len(out))
	}

	fa := make([]float64, verifyBlock)
	fb := make([]float64, verifyBlock)
	fo := make([]float64, verifyBlock)
	for start := 0; start < len(a); start += verifyBlock {
		end := min(start+verifyBlock, len(a))
		n := end - start
		toFloat(fa[:n], a[start:end])
		toFloat(fb[:n], b[start:end])
		toFloat(fo[:n], out[start:end])

		floats.Add(fa[:n], fb[:n])
		if floats.Equal(fa[:n], fo[:n]) {
			continue
		}
		for i := 0; i < n; i++ {
			if fa[i] != fo[i] {
				return &MismatchError{
					Index:    start + i,
					Expected: int64(fa[i]),
					Got:      int64(fo[i]),
				}
			}
		}
	}
	return nil
}

func toFloat(dst []float64, src Vector) {
	for i, x := range src {
		dst[i] = float64(x)
	}
}
