package privacy

import "strconv"

// Registry assigns stable aliases to person names for a single
// anonymization run. Aliases are numbered in first-registration order and
// are never reused. A Registry is not safe for concurrent use; every run
// owns its own.
type Registry struct {
	entries []Alias
	byName  map[string]int
	byAlias map[string]int

	redactions []Finding
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]int),
		byAlias: make(map[string]int),
	}
}

// Register returns the alias for name, allocating the next USER_<n> on
// first sight. Names are compared by exact string equality.
func (r *Registry) Register(name string) string {
	if i, ok := r.byName[name]; ok {
		return r.entries[i].Alias
	}

	alias := AliasPrefix + strconv.Itoa(len(r.entries)+1)
	r.byName[name] = len(r.entries)
	r.byAlias[alias] = len(r.entries)
	r.entries = append(r.entries, Alias{Original: name, Alias: alias})
	return alias
}

// Lookup returns the alias already assigned to name.
func (r *Registry) Lookup(name string) (string, bool) {
	i, ok := r.byName[name]
	if !ok {
		return "", false
	}
	return r.entries[i].Alias, true
}

// Original maps an alias back to the name it replaced.
func (r *Registry) Original(alias string) (string, bool) {
	i, ok := r.byAlias[alias]
	if !ok {
		return "", false
	}
	return r.entries[i].Original, true
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Entries returns a copy of the registry in insertion order.
func (r *Registry) Entries() []Alias {
	out := make([]Alias, len(r.entries))
	copy(out, r.entries)
	return out
}

// Mapping returns original name -> alias. Never nil.
func (r *Registry) Mapping() map[string]string {
	m := make(map[string]string, len(r.entries))
	for _, e := range r.entries {
		m[e.Original] = e.Alias
	}
	return m
}

// AddRedactions records n replacements made by a redaction pass.
func (r *Registry) AddRedactions(entity, masked string, n int) {
	if n <= 0 {
		return
	}
	for i := range r.redactions {
		if r.redactions[i].EntityType == entity {
			r.redactions[i].Count += n
			return
		}
	}
	r.redactions = append(r.redactions, Finding{EntityType: entity, Masked: masked, Count: n})
}

// Findings summarizes the run: registered persons first, then redactions
// in the order they were first recorded.
func (r *Registry) Findings() []Finding {
	findings := make([]Finding, 0, len(r.redactions)+1)
	if len(r.entries) > 0 {
		findings = append(findings, Finding{
			EntityType: EntityPerson,
			Masked:     AliasPrefix + "<n>",
			Count:      len(r.entries),
		})
	}
	return append(findings, r.redactions...)
}

// Redactions returns the replacement count for one entity type.
func (r *Registry) Redactions(entity string) int {
	for _, f := range r.redactions {
		if f.EntityType == entity {
			return f.Count
		}
	}
	return 0
}
