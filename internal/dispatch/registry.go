package dispatch

import (
	"strings"
	"sync"
)

// signal id prefixes recognized by the dispatcher (§4.6).
const (
	PrefixSync  = "SYNC_"
	PrefixBasic = "BASIC_"
)

// Registry holds the bookkeeping tables attached to every dispatched
// child order: the signal-to-children map (also the follow registry),
// the reverse order-to-signal map, and the tracker sets consulted by
// the active-order tracker and chase resender.
type Registry struct {
	mu sync.Mutex

	children      map[string][]string
	orderSignal   map[string]string
	firstOrders   map[string]bool
	openOrders    map[string]bool
	chaseOrders   map[string]bool
	chaseAncestor map[string]string
	resendCount   map[string]int
	intraday      map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		children:      map[string][]string{},
		orderSignal:   map[string]string{},
		firstOrders:   map[string]bool{},
		openOrders:    map[string]bool{},
		chaseOrders:   map[string]bool{},
		chaseAncestor: map[string]string{},
		resendCount:   map[string]int{},
		intraday:      map[string]bool{},
	}
}

// RegisterOptions controls which tracker sets a freshly dispatched
// child order id is added to, per the bullet list in §4.6.
type RegisterOptions struct {
	IsFirst      bool
	MustDone     bool
	ChaseEnabled bool
	Intraday     bool
}

// Register records a newly dispatched child order id against signalID.
func (r *Registry) Register(signalID, orderID string, opts RegisterOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.children[signalID] = append(r.children[signalID], orderID)
	r.orderSignal[orderID] = signalID

	if opts.IsFirst {
		r.firstOrders[orderID] = true
	}
	if !opts.MustDone {
		r.openOrders[orderID] = true
	}
	if opts.MustDone && opts.ChaseEnabled {
		r.chaseOrders[orderID] = true
		r.chaseAncestor[orderID] = orderID
		r.resendCount[orderID] = 0
	}
	if opts.Intraday || IsSyntheticSignal(signalID) {
		r.intraday[orderID] = true
	}
}

// RegisterResend records a chase resend: orderID inherits ancestor's
// chase lineage and increments the ancestor's resend count.
func (r *Registry) RegisterResend(signalID, orderID, ancestor string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.children[signalID] = append(r.children[signalID], orderID)
	r.orderSignal[orderID] = signalID
	r.chaseOrders[orderID] = true
	r.chaseAncestor[orderID] = ancestor
	r.resendCount[ancestor]++
	r.intraday[orderID] = true
	return r.resendCount[ancestor]
}

func (r *Registry) IsFollowed(signalID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.children[signalID]
	return ok
}

func (r *Registry) Children(signalID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.children[signalID]))
	copy(out, r.children[signalID])
	return out
}

func (r *Registry) SignalOf(orderID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.orderSignal[orderID]
	return s, ok
}

func (r *Registry) IsFirst(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstOrders[orderID]
}

func (r *Registry) IsOpenOrder(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openOrders[orderID]
}

func (r *Registry) IsChaseOrder(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chaseOrders[orderID]
}

func (r *Registry) RemoveChaseEligibility(orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chaseOrders, orderID)
}

func (r *Registry) Ancestor(orderID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.chaseAncestor[orderID]
	return a, ok
}

func (r *Registry) ResendCount(ancestor string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resendCount[ancestor]
}

func (r *Registry) IsIntraday(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intraday[orderID]
}

// ClearFollowMap empties the signal-to-children map and its reverse
// index at end-of-session, leaving tracker sets untouched (those are
// keyed by order id and expire as orders stop being active).
func (r *Registry) ClearFollowMap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children = map[string][]string{}
	r.orderSignal = map[string]string{}
}

// Snapshot returns a copy of the signal-to-children map, for
// persistence into run-data.
func (r *Registry) Snapshot() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string, len(r.children))
	for k, v := range r.children {
		cp := make([]string, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// LoadFollowMap seeds the signal-to-children map (and its reverse
// index) from persisted run-data, restoring "already followed"
// recognition across a restart.
func (r *Registry) LoadFollowMap(children map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if children == nil {
		children = map[string][]string{}
	}
	r.children = children
	r.orderSignal = map[string]string{}
	for signalID, orderIDs := range children {
		for _, orderID := range orderIDs {
			r.orderSignal[orderID] = signalID
		}
	}
}

// IsSyntheticSignal reports whether signalID was minted by the manual
// sync planner (SYNC_ or BASIC_ prefix).
func IsSyntheticSignal(signalID string) bool {
	return strings.HasPrefix(signalID, PrefixSync) || strings.HasPrefix(signalID, PrefixBasic)
}
