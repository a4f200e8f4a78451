package provider

import (
	"strings"
	"sync"
)

// Provider names
const (
	NameFlightradar24 = "flightradar24"
	NameAviationstack = "aviationstack"
	NameAirLabs       = "airlabs"
	NameMock          = "mock"

	// PositionSameAsStatus disables the separate position lookup
	PositionSameAsStatus = "same_as_status"
	// PositionNone disables position lookups entirely
	PositionNone = "none"
)

// Fallback order used when the configured provider has no credentials
var fallbackOrder = []string{NameFlightradar24, NameAviationstack, NameAirLabs}

var aliases = map[string]string{
	"fr24":           NameFlightradar24,
	"flightradar":    NameFlightradar24,
	"aviation_stack": NameAviationstack,
	"air_labs":       NameAirLabs,
}

// CanonicalName lowercases name and resolves known aliases
func CanonicalName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if a, ok := aliases[n]; ok {
		return a
	}
	return n
}

// Registry holds the configured providers. Only providers with credentials
// should be registered.
type Registry struct {
	mu     sync.RWMutex
	status map[string]StatusProvider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{status: make(map[string]StatusProvider)}
}

// Register adds a provider under its own name
func (r *Registry) Register(p StatusProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[CanonicalName(p.Name())] = p
}

// Names returns the registered provider names in fallback order, extras last
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.status))
	seen := make(map[string]bool)
	for _, n := range fallbackOrder {
		if _, ok := r.status[n]; ok {
			names = append(names, n)
			seen[n] = true
		}
	}
	for n := range r.status {
		if !seen[n] {
			names = append(names, n)
		}
	}
	return names
}

// Resolve returns the named provider, or the first configured provider in
// fallback order when the named one is not available
func (r *Registry) Resolve(name string) (StatusProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.status[CanonicalName(name)]; ok {
		return p, nil
	}
	for _, n := range fallbackOrder {
		if p, ok := r.status[n]; ok {
			return p, nil
		}
	}
	return nil, NewError(CanonicalName(name), KindNoProvider, "no status provider configured")
}

// ResolvePosition returns the dedicated position provider for name, if any.
// It returns false when positions come from the status payload itself.
func (r *Registry) ResolvePosition(name string, status StatusProvider) (PositionProvider, bool) {
	n := CanonicalName(name)
	if n == "" || n == PositionSameAsStatus || n == PositionNone {
		return nil, false
	}
	if status != nil && CanonicalName(status.Name()) == n {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.status[n]
	if !ok {
		return nil, false
	}
	pp, ok := p.(PositionProvider)
	return pp, ok
}
