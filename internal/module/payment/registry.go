package payment

import (
	"sync"

	"github.com/bookwise/payments/internal/module/payment/provider"
	errs "github.com/bookwise/payments/internal/shared/errors"
)

// Registry holds the registered provider strategies and selects among
// them. Selection is deterministic: registration order breaks ties.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]provider.Strategy
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]provider.Strategy)}
}

// Register adds a strategy under its own name, replacing any previous
// registration.
func (r *Registry) Register(s provider.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := s.Name()
	if _, exists := r.strategies[name]; !exists {
		r.order = append(r.order, name)
	}
	r.strategies[name] = s
}

// Get returns the strategy registered under name.
func (r *Registry) Get(name string) (provider.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	if !ok {
		return nil, errs.UnknownProvider(name)
	}
	return s, nil
}

// Best picks the most suitable strategy for a currency and country.
// Currency support is a hard filter; among supporting strategies a country
// match wins, then the lower fee. The second return is false when no
// registered strategy supports the currency, so the caller can fall back
// to an explicit default instead of silently mismatching.
func (r *Registry) Best(currency, country string) (provider.Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best provider.Strategy
	var bestCaps provider.Capabilities
	bestCountry := false

	for _, name := range r.order {
		s := r.strategies[name]
		caps := s.Capabilities()
		if !caps.SupportsCurrency(currency) {
			continue
		}
		countryMatch := country != "" && caps.SupportsCountry(country)

		if best == nil {
			best, bestCaps, bestCountry = s, caps, countryMatch
			continue
		}
		if countryMatch != bestCountry {
			if countryMatch {
				best, bestCaps, bestCountry = s, caps, countryMatch
			}
			continue
		}
		if caps.FeeBps < bestCaps.FeeBps {
			best, bestCaps = s, caps
		}
	}

	return best, best != nil
}

// List returns the registered strategy names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
