package lifecycle

import "sort"

// JobSet is a set of job identifiers.
type JobSet map[uint]struct{}

// NewJobSet builds a set from ids; duplicates collapse.
func NewJobSet(ids ...uint) JobSet {
	s := make(JobSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s JobSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}

func (s JobSet) Len() int { return len(s) }

// Minus returns the ids of s that are not in other.
func (s JobSet) Minus(other JobSet) JobSet {
	out := make(JobSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns the ids present in both sets.
func (s JobSet) Intersect(other JobSet) JobSet {
	out := make(JobSet)
	for id := range s {
		if other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Sorted returns the ids in ascending order.
func (s JobSet) Sorted() []uint {
	out := make([]uint, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
