// Package plan holds the routing decision for a single query.
package plan

import "github.com/finbrief/finbrief/internal/domain"

// Retrieval holds the parameters of the retrieval call, when planned.
type Retrieval struct {
	TopK     int
	MinScore float64
}

// Plan is the set of collaborators and the optional retrieval call selected
// for a query. Constructing a Plan never fails; unrecognized queries get the
// default retrieval-only plan.
type Plan struct {
	services       []domain.Service
	retrieval      *Retrieval
	symbols        []string
	defaultApplied bool
}

// New creates a routing plan.
func New(services []domain.Service, retrieval *Retrieval) Plan {
	return Plan{services: services, retrieval: retrieval}
}

// WithSymbols attaches ticker symbols recognized in the query.
func (p Plan) WithSymbols(symbols []string) Plan {
	p.symbols = symbols
	return p
}

// Symbols returns the ticker symbols recognized in the query, if any.
func (p Plan) Symbols() []string { return p.symbols }

// Default creates the safe fallback plan: retrieval only.
func Default(retrieval Retrieval) Plan {
	return Plan{retrieval: &retrieval, defaultApplied: true}
}

// Services returns the selected collaborators, excluding retrieval.
func (p Plan) Services() []domain.Service { return p.services }

// Retrieval returns the retrieval parameters and whether retrieval is planned.
func (p Plan) Retrieval() (Retrieval, bool) {
	if p.retrieval == nil {
		return Retrieval{}, false
	}
	return *p.retrieval, true
}

// DefaultApplied reports whether no keyword rule matched and the fallback
// plan was used. Informational, not an error.
func (p Plan) DefaultApplied() bool { return p.defaultApplied }

// Includes reports whether the plan selects the given collaborator.
func (p Plan) Includes(s domain.Service) bool {
	for _, svc := range p.services {
		if svc == s {
			return true
		}
	}
	return false
}

// PlannedUnits returns the number of independent units of work the plan
// dispatches: one per collaborator plus one for retrieval when planned.
func (p Plan) PlannedUnits() int {
	n := len(p.services)
	if p.retrieval != nil {
		n++
	}
	return n
}
