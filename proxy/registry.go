package proxy

import (
	"sort"
	"sync"

	uuid "github.com/satori/go.uuid"
)

// ruleEntry is a registered Rule plus its mutable match state: how many
// times it has fired, and the requests it fired against.
type ruleEntry struct {
	rule         *Rule
	seen         int
	seenRequests []*Request
}

// registry holds the proxy's ordered rule set. Rules are dispatched in
// descending Priority, then insertion order within the same priority. A
// Reset clears every rule's seen count without discarding the rules
// themselves, so a test suite can replay the same expectations across
// cases.
//
// Snapshot returns a defensive copy so the pipeline can walk a stable view
// of the rule set without holding the registry lock for the duration of a
// dispatch; a concurrent Add only affects requests that take their
// snapshot after it completes. Seen counts are not part of the snapshot: a
// concurrent Reset is visible to a dispatch in flight for every rule whose
// Checker it consults after the Reset.
type registry struct {
	mu      sync.RWMutex
	entries []*ruleEntry
	byID    map[uuid.UUID]*ruleEntry
}

func newRegistry() *registry {
	return &registry{byID: make(map[uuid.UUID]*ruleEntry)}
}

// Add appends rule to the registry.
func (r *registry) Add(rule *Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &ruleEntry{rule: rule}
	r.entries = append(r.entries, e)
	r.byID[rule.ID] = e
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].rule.Priority > r.entries[j].rule.Priority
	})
}

// Snapshot returns the current rule order as a plain slice of Rules, safe
// for the caller to range over without further locking.
func (r *registry) Snapshot() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rules := make([]*Rule, len(r.entries))
	for i, e := range r.entries {
		rules[i] = e.rule
	}
	return rules
}

// Seen returns how many times the rule with the given ID has matched.
func (r *registry) Seen(id uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.byID[id]; ok {
		return e.seen
	}
	return 0
}

// RecordMatch increments the seen count for the rule with the given ID and
// appends req to its seen-request list. Concurrent dispatches racing
// against the same rule's completion threshold are resolved by whichever
// increment lands second seeing the incremented count: the Checker is
// consulted once per dispatch, before RecordMatch runs, so an in-flight
// dispatch always completes against the count it observed, never one
// mutated out from under it mid-dispatch.
func (r *registry) RecordMatch(id uuid.UUID, req *Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		e.seen++
		e.seenRequests = append(e.seenRequests, req)
	}
}

// Reset zeroes every rule's seen count and clears its seen-request list.
// The change is visible at once, including to dispatches already in
// flight.
func (r *registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.seen = 0
		e.seenRequests = nil
	}
}

// Endpoints returns a MockedEndpoint snapshot for every registered rule, in
// dispatch order.
func (r *registry) Endpoints() []MockedEndpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]MockedEndpoint, len(r.entries))
	for i, e := range r.entries {
		out[i] = endpointFromEntry(e)
	}
	return out
}

// Endpoint returns the MockedEndpoint for a single rule ID.
func (r *registry) Endpoint(id uuid.UUID) (MockedEndpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return MockedEndpoint{}, false
	}
	return endpointFromEntry(e), true
}

// endpointFromEntry builds a MockedEndpoint from e, copying its
// seen-request slice so callers can't mutate the registry's own backing
// array through the returned snapshot. Caller must hold r.mu.
func endpointFromEntry(e *ruleEntry) MockedEndpoint {
	seenRequests := make([]*Request, len(e.seenRequests))
	copy(seenRequests, e.seenRequests)
	return MockedEndpoint{
		ID:           e.rule.ID,
		Priority:     e.rule.Priority,
		Seen:         e.seen,
		Pending:      e.rule.Checker.ShouldApply(e.seen),
		SeenRequests: seenRequests,
	}
}
