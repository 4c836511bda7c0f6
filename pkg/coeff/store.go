package coeff

import (
	"fmt"
	"slices"
)

// Store answers coefficient lookups against a loaded Document. It is
// read-only after construction and safe for concurrent readers.
type Store struct {
	doc *Document
}

// New wraps an already-built document. It is mostly useful in tests; files
// go through Load or Parse so that they are validated.
func New(doc *Document) *Store {
	return &Store{doc: doc}
}

// Name returns the document's declared name.
func (s *Store) Name() string { return s.doc.Name }

// Scalar returns the dynamic coefficient name of category cat.
func (s *Store) Scalar(cat Category, name string) (float64, error) {
	values, ok := s.doc.Dynamic[cat]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrCategoryNotFound, cat)
	}
	v, ok := values[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrCoefficientNotFound, cat, name)
	}
	return v, nil
}

// Polynomials returns the static rail specs of category cat for scenario sc.
// The returned slice is a copy.
func (s *Store) Polynomials(cat Category, sc Scenario) ([]RailSpec, error) {
	scenarios, ok := s.doc.Static[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCategoryNotFound, cat)
	}
	rails, ok := scenarios[sc]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrScenarioNotFound, cat, sc)
	}
	out := make([]RailSpec, len(rails))
	for i, r := range rails {
		out[i] = RailSpec{Rail: r.Rail, Polynomials: make([]Polynomial, len(r.Polynomials))}
		for j, p := range r.Polynomials {
			out[i].Polynomials[j] = Polynomial{Coefficients: slices.Clone(p.Coefficients), Factor: p.Factor}
		}
	}
	return out, nil
}

// HasCategory reports whether cat is declared in either section.
func (s *Store) HasCategory(cat Category) bool {
	_, dyn := s.doc.Dynamic[cat]
	_, st := s.doc.Static[cat]
	return dyn || st
}

// StaticCategories returns the declared static categories, sorted.
func (s *Store) StaticCategories() []Category {
	out := make([]Category, 0, len(s.doc.Static))
	for c := range s.doc.Static {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Reader looks up several scalars of one category and keeps the first
// failure, so compute code can read a block of coefficients and check once.
type Reader struct {
	s   *Store
	cat Category
	err error
}

// Reader returns a Reader bound to cat.
func (s *Store) Reader(cat Category) *Reader {
	return &Reader{s: s, cat: cat}
}

// Get returns the named coefficient, or 0 once any lookup has failed.
func (r *Reader) Get(name string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := r.s.Scalar(r.cat, name)
	if err != nil {
		r.err = err
		return 0
	}
	return v
}

// Err returns the first lookup failure.
func (r *Reader) Err() error { return r.err }
