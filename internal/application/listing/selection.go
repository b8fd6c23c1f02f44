package listing

import "slices"

// SelectionSet is an ordered set of row ids
type SelectionSet struct {
	ids []int64
}

// NewSelectionSet creates a set from ids, dropping duplicates
func NewSelectionSet(ids ...int64) SelectionSet {
	var s SelectionSet
	s.Replace(ids)
	return s
}

// Replace swaps the content of the set
func (s *SelectionSet) Replace(ids []int64) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	s.ids = out
}

// Remove drops ids from the set
func (s *SelectionSet) Remove(ids ...int64) {
	s.ids = slices.DeleteFunc(s.ids, func(id int64) bool {
		return slices.Contains(ids, id)
	})
}

// Retain keeps only the ids for which keep returns true
func (s *SelectionSet) Retain(keep func(int64) bool) {
	s.ids = slices.DeleteFunc(s.ids, func(id int64) bool { return !keep(id) })
}

// Clear empties the set
func (s *SelectionSet) Clear() {
	s.ids = nil
}

// Contains reports whether id is selected
func (s SelectionSet) Contains(id int64) bool {
	return slices.Contains(s.ids, id)
}

// Len returns the number of selected ids
func (s SelectionSet) Len() int {
	return len(s.ids)
}

// IDs returns a copy of the ids in selection order
func (s SelectionSet) IDs() []int64 {
	return slices.Clone(s.ids)
}
