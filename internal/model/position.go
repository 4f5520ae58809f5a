package model

// PositionEntry holds the six position counters and derived deltas for
// one contract (§3 of the spec). Of the six, the four *_long/*_short
// counters are stored independently; *_net and NetDelta are always
// recomputed. BasicDelta, SourceTradedNet and LostFollowNet are stored.
type PositionEntry struct {
	SourceLong  int
	SourceShort int
	SourceNet   int

	TargetLong  int
	TargetShort int
	TargetNet   int

	// NetDelta = SourceNet*multiplier - TargetNet (sign inverted under
	// inverse-follow); recomputed by RecalculateNet.
	NetDelta int

	// BasicDelta is an operator-set baseline offset subtracted during
	// net sync; zeroed when a basic-position sync order is issued.
	BasicDelta int

	// SourceTradedNet is the running net of today's source trades,
	// session-local (reset at end-of-session alongside the signal map).
	SourceTradedNet int

	// LostFollowNet is the net quantity of open-side follow orders that
	// were never filled; may be negative (short side).
	LostFollowNet int
}

// RecalculateNet recomputes SourceNet, TargetNet, and NetDelta from the
// raw counters. multiplier and inverse must match the engine's current
// parameters at the time of the call.
func (p *PositionEntry) RecalculateNet(multiplier int, inverseFollow bool) {
	p.SourceNet = p.SourceLong - p.SourceShort
	p.TargetNet = p.TargetLong - p.TargetShort
	delta := p.SourceNet*multiplier - p.TargetNet
	if inverseFollow {
		delta = -delta
	}
	p.NetDelta = delta
}

// IsEmpty reports whether all four raw counters are zero, the condition
// under which a contract's position entry may be cleared at stop.
func (p PositionEntry) IsEmpty() bool {
	return p.SourceLong == 0 && p.SourceShort == 0 && p.TargetLong == 0 && p.TargetShort == 0
}

// LegDelta returns (longDelta, shortDelta) = source leg*multiplier -
// target leg, or the inverse-follow crossed version when inverse is set
// (source long feeds target short and vice versa).
func (p PositionEntry) LegDelta(multiplier int, inverseFollow bool) (longDelta, shortDelta int) {
	if !inverseFollow {
		return p.SourceLong*multiplier - p.TargetLong, p.SourceShort*multiplier - p.TargetShort
	}
	return p.SourceShort*multiplier - p.TargetLong, p.SourceLong*multiplier - p.TargetShort
}

// PosDelta is the outbound position-delta notification payload (§6),
// snapshotting an entry plus the symbol it belongs to.
type PosDelta struct {
	ContractKey string
	PositionEntry
	LongDelta  int
	ShortDelta int
}
