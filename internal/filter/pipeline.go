// Package filter implements the ordered predicate pipeline applied to
// source-account signals before they become follow intents (§4.4), plus
// the order-mode dedup/keep_hang gate that precedes it.
package filter

import (
	"fmt"
	"time"

	"github.com/abdoElHodaky/followtrader/internal/config"
)

// Context is the subset of a source signal the pipeline predicates need.
// EventTime is HH:MM:SS as pushed by the gateway; it is interpreted as
// today's date against Now.
type Context struct {
	SignalID  string
	Symbol    string
	Volume    int
	EventTime string
}

// Predicate inspects ctx against the current settings and reports
// whether the signal passes. A false result carries a human-readable
// reason for the drop log line (§9: "failure short-circuits with the
// predicate's identity as the drop reason").
type Predicate func(ctx Context, s config.Settings) (pass bool, reason string)

// IsFollowed reports whether signalID already has a recorded child
// list, used by the already-followed predicate. The real implementation
// is backed by the run-data signal map owned by the dispatcher.
type IsFollowed func(signalID string) bool

// Pipeline runs the ordered predicates in §4.4: volume whitelist,
// blacklist, already-followed, timeout.
type Pipeline struct {
	Settings   func() config.Settings
	Followed   IsFollowed
	Now        func() time.Time
	predicates []Predicate
}

// New builds the standard pipeline. followed and now may be nil in
// tests that only exercise the stateless predicates; settings must not
// be nil.
func New(settings func() config.Settings, followed IsFollowed, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	p := &Pipeline{Settings: settings, Followed: followed, Now: now}
	p.predicates = []Predicate{
		volumeWhitelist,
		blacklistContract,
		p.alreadyFollowed,
		p.timedOut,
	}
	return p
}

// Evaluate folds ctx through every predicate in order, stopping at the
// first drop.
func (p *Pipeline) Evaluate(ctx Context) (pass bool, reason string) {
	s := p.Settings()
	for _, pred := range p.predicates {
		ok, why := pred(ctx, s)
		if !ok {
			return false, why
		}
	}
	return true, ""
}

func volumeWhitelist(ctx Context, s config.Settings) (bool, string) {
	if !s.IsFilterOrderVolume {
		return true, ""
	}
	for _, v := range s.OrderVolumesToFollow {
		if v == ctx.Volume {
			return true, ""
		}
	}
	return false, "volume not in follow whitelist"
}

func blacklistContract(ctx Context, s config.Settings) (bool, string) {
	for _, sym := range s.SkipContracts {
		if sym == ctx.Symbol {
			return false, "contract is blacklisted"
		}
	}
	return true, ""
}

func (p *Pipeline) alreadyFollowed(ctx Context, _ config.Settings) (bool, string) {
	if p.Followed != nil && p.Followed(ctx.SignalID) {
		return false, "signal already followed"
	}
	return true, ""
}

func (p *Pipeline) timedOut(ctx Context, s config.Settings) (bool, string) {
	if ctx.EventTime == "" {
		return true, ""
	}
	now := p.Now()
	eventTime, err := parseTodayClock(now, ctx.EventTime)
	if err != nil {
		return true, ""
	}
	if now.Sub(eventTime) > time.Duration(s.FollowTimeoutSeconds)*time.Second {
		return false, "signal exceeded follow timeout"
	}
	return true, ""
}

// parseTodayClock combines now's date with an HH:MM:SS clock reading.
func parseTodayClock(now time.Time, clock string) (time.Time, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(clock, "%d:%d:%d", &h, &m, &sec); err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, sec, 0, now.Location()), nil
}
