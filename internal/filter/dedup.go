package filter

import "sync"

// Dedup is the order-mode gate that precedes the predicate pipeline
// (§4.4): each source order id is recorded on first acceptance, and
// repeated status pushes for the same order short-circuit unless the
// repeat signals a fully-filled order whose signal is currently held in
// keep_hang, in which case the hang is released and elapsed-ticks timing
// begins for its children.
type Dedup struct {
	mu       sync.Mutex
	seen     map[string]bool
	keepHang map[string]bool
}

func NewDedup() *Dedup {
	return &Dedup{seen: map[string]bool{}, keepHang: map[string]bool{}}
}

// Hold marks signalID as held: its follow children do not start their
// cancel-timeout clock until the hold is released.
func (d *Dedup) Hold(signalID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keepHang[signalID] = true
}

// IsHeld reports whether signalID is currently held.
func (d *Dedup) IsHeld(signalID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keepHang[signalID]
}

// Evaluate reports whether orderID should be processed as a fresh
// signal. fullyFilled and hasChildren describe the incoming push;
// release is true when the caller should release the hold and prime
// elapsed-ticks timing for the signal's children.
func (d *Dedup) Evaluate(orderID string, fullyFilled, hasChildren bool) (accept bool, release bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.seen[orderID] {
		d.seen[orderID] = true
		return true, false
	}

	if fullyFilled && hasChildren && d.keepHang[orderID] {
		delete(d.keepHang, orderID)
		return false, true
	}
	return false, false
}
