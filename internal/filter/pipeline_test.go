package filter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/followtrader/internal/config"
)

func settingsFor(mutate func(*config.Settings)) func() config.Settings {
	s := config.DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	return func() config.Settings { return s }
}

func TestPipeline_VolumeWhitelist_Rejects(t *testing.T) {
	p := New(settingsFor(func(s *config.Settings) {
		s.IsFilterOrderVolume = true
		s.OrderVolumesToFollow = []int{1, 2}
	}), nil, nil)

	pass, reason := p.Evaluate(Context{SignalID: "t1", Symbol: "rb2410", Volume: 5})
	assert.False(t, pass)
	assert.Equal(t, "volume not in follow whitelist", reason)
}

func TestPipeline_Blacklist_Rejects(t *testing.T) {
	p := New(settingsFor(func(s *config.Settings) {
		s.IsFilterOrderVolume = false
		s.SkipContracts = []string{"au2406"}
	}), nil, nil)

	pass, reason := p.Evaluate(Context{SignalID: "t1", Symbol: "au2406", Volume: 1})
	assert.False(t, pass)
	assert.Equal(t, "contract is blacklisted", reason)
}

func TestPipeline_AlreadyFollowed_Rejects(t *testing.T) {
	followed := func(signalID string) bool { return signalID == "dup-1" }
	p := New(settingsFor(func(s *config.Settings) { s.IsFilterOrderVolume = false }), followed, nil)

	pass, _ := p.Evaluate(Context{SignalID: "dup-1", Symbol: "rb2410", Volume: 1})
	assert.False(t, pass)

	pass, _ = p.Evaluate(Context{SignalID: "fresh-1", Symbol: "rb2410", Volume: 1})
	assert.True(t, pass)
}

func TestPipeline_TimedOut_Rejects(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	p := New(settingsFor(func(s *config.Settings) {
		s.IsFilterOrderVolume = false
		s.FollowTimeoutSeconds = 5
	}), nil, func() time.Time { return now })

	pass, reason := p.Evaluate(Context{SignalID: "t1", Symbol: "rb2410", Volume: 1, EventTime: "09:59:00"})
	assert.False(t, pass)
	assert.Equal(t, "signal exceeded follow timeout", reason)
}

func TestPipeline_PassesWhenNothingTrips(t *testing.T) {
	now := time.Date(2026, 7, 30, 10, 0, 0, 0, time.UTC)
	p := New(settingsFor(func(s *config.Settings) {
		s.IsFilterOrderVolume = false
		s.FollowTimeoutSeconds = 60
	}), nil, func() time.Time { return now })

	pass, reason := p.Evaluate(Context{SignalID: "t1", Symbol: "rb2410", Volume: 1, EventTime: "09:59:30"})
	assert.True(t, pass)
	assert.Empty(t, reason)
}
