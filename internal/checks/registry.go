package checks

import (
	"iter"
	"sync"
)

// CheckRegistry holds checks in registration order. It is sealed by the
// runner on first use; registering afterwards fails.
type CheckRegistry struct {
	mu         sync.RWMutex
	checks     []ComplianceCheck
	meta       []Metadata
	byID       map[string]int
	categories map[string][]int
	frameworks map[string][]int
	sealed     bool
}

// NewCheckRegistry creates an empty registry
func NewCheckRegistry() *CheckRegistry {
	return &CheckRegistry{
		byID:       make(map[string]int),
		categories: make(map[string][]int),
		frameworks: make(map[string][]int),
	}
}

// Register appends a check. Nothing is recorded when an error is returned.
func (r *CheckRegistry) Register(check ComplianceCheck) error {
	if check == nil {
		return &RegistrationError{Err: ErrInvalidMetadata}
	}
	meta := cloneMetadata(check.Describe())
	if err := meta.Validate(); err != nil {
		return &RegistrationError{ID: meta.ID, Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return &RegistrationError{ID: meta.ID, Err: ErrRegistrySealed}
	}
	if _, exists := r.byID[meta.ID]; exists {
		return &RegistrationError{ID: meta.ID, Err: ErrDuplicateID}
	}

	idx := len(r.checks)
	r.checks = append(r.checks, check)
	r.meta = append(r.meta, meta)
	r.byID[meta.ID] = idx
	r.categories[meta.Category] = append(r.categories[meta.Category], idx)
	for _, fw := range meta.Frameworks {
		r.frameworks[fw] = append(r.frameworks[fw], idx)
	}
	return nil
}

// Count returns the number of registered checks
func (r *CheckRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.checks)
}

// Get looks up a check by id
func (r *CheckRegistry) Get(id string) (ComplianceCheck, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return r.checks[idx], true
}

// All yields every check in registration order. The sequence can be ranged
// over any number of times.
func (r *CheckRegistry) All() iter.Seq[ComplianceCheck] {
	return r.indexed(nil)
}

// ByCategory yields the checks whose category equals tag, in registration order
func (r *CheckRegistry) ByCategory(tag string) iter.Seq[ComplianceCheck] {
	return r.indexed(func() []int { return r.categories[tag] })
}

// ByFramework yields the checks mapped to the framework control tag
func (r *CheckRegistry) ByFramework(tag string) iter.Seq[ComplianceCheck] {
	return r.indexed(func() []int { return r.frameworks[tag] })
}

// Categories returns the distinct categories in first-registration order
func (r *CheckRegistry) Categories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool, len(r.categories))
	var out []string
	for _, m := range r.meta {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	return out
}

// Metadata returns a copy of every check's metadata in registration order
func (r *CheckRegistry) Metadata() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, len(r.meta))
	for i, m := range r.meta {
		out[i] = cloneMetadata(m)
	}
	return out
}

// Seal freezes the registry
func (r *CheckRegistry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Register is still allowed
func (r *CheckRegistry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// indexed yields the checks picked by lookup, or every check when lookup is
// nil. The selection is copied up front so iteration never holds the lock.
func (r *CheckRegistry) indexed(lookup func() []int) iter.Seq[ComplianceCheck] {
	return func(yield func(ComplianceCheck) bool) {
		for _, e := range r.entries(lookup) {
			if !yield(e.check) {
				return
			}
		}
	}
}

type entry struct {
	check ComplianceCheck
	meta  Metadata
}

func (r *CheckRegistry) entries(lookup func() []int) []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if lookup == nil {
		out := make([]entry, len(r.checks))
		for i := range r.checks {
			out[i] = entry{check: r.checks[i], meta: r.meta[i]}
		}
		return out
	}
	idx := lookup()
	out := make([]entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, entry{check: r.checks[i], meta: r.meta[i]})
	}
	return out
}

func cloneMetadata(m Metadata) Metadata {
	if m.Frameworks != nil {
		m.Frameworks = append([]string(nil), m.Frameworks...)
	}
	return m
}
