package recordstore

import (
	"github.com/ebasdb/ebasdb/pkg/types"
)

// QualitySet is a set of QC flag values that mark an observation invalid.
type QualitySet map[int]struct{}

// badQC lists the EBAS flags that invalidate an observation.
var badQC = []int{
	459, 460, 471, 530, 533, 540, 549, 565, 566, 567, 568, 591, 599, 635, 658, 659,
	663, 664, 666, 669, 677, 682, 683, 684, 685, 686, 687, 699, 783, 890, 980, 999,
}

// NewQualitySet builds a set from flag values.
func NewQualitySet(flags ...int) QualitySet {
	s := make(QualitySet, len(flags))
	for _, f := range flags {
		s[f] = struct{}{}
	}
	return s
}

// DefaultBadQC returns the fixed set of invalidating EBAS flags.
func DefaultBadQC() QualitySet {
	return NewQualitySet(badQC...)
}

// Contains reports whether flag is in the set.
func (q QualitySet) Contains(flag int) bool {
	_, ok := q[flag]
	return ok
}

// FilterQuality returns a copy of val in which every value whose flag is in
// bad is replaced by the missing marker. The length is preserved. qc must be
// as long as val; a nil qc means every value is valid.
func FilterQuality(val []float64, qc []int, bad QualitySet) []float64 {
	out := make([]float64, len(val))
	copy(out, val)
	for i := range out {
		if i < len(qc) && bad.Contains(qc[i]) {
			out[i] = types.Missing()
		}
	}
	return out
}

// LastRevision returns the most recent revision of a revision-major array.
// Later revisions supersede earlier ones.
func LastRevision[T any](revisions [][]T) []T {
	if len(revisions) == 0 {
		return nil
	}
	return revisions[len(revisions)-1]
}
