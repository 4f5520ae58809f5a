package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPositionEntry_RecalculateNet_NoInverse(t *testing.T) {
	p := PositionEntry{SourceLong: 10, SourceShort: 2, TargetLong: 15, TargetShort: 0}
	p.RecalculateNet(2, false)

	assert.Equal(t, 8, p.SourceNet)
	assert.Equal(t, 15, p.TargetNet)
	// delta = sourceNet*multiplier - targetNet = 8*2 - 15 = 1
	assert.Equal(t, 1, p.NetDelta)
}

func TestPositionEntry_RecalculateNet_Inverse(t *testing.T) {
	p := PositionEntry{SourceLong: 10, SourceShort: 2, TargetLong: 15, TargetShort: 0}
	p.RecalculateNet(2, true)

	assert.Equal(t, -1, p.NetDelta)
}

func TestPositionEntry_IsEmpty(t *testing.T) {
	assert.True(t, PositionEntry{}.IsEmpty())
	assert.False(t, PositionEntry{SourceLong: 1}.IsEmpty())
	assert.False(t, PositionEntry{TargetShort: 1}.IsEmpty())
}

func TestPositionEntry_LegDelta_NoInverse(t *testing.T) {
	p := PositionEntry{SourceLong: 5, SourceShort: 3, TargetLong: 8, TargetShort: 1}
	longDelta, shortDelta := p.LegDelta(2, false)
	assert.Equal(t, 2, longDelta)  // 5*2 - 8
	assert.Equal(t, 5, shortDelta) // 3*2 - 1
}

func TestPositionEntry_LegDelta_Inverse_CrossesLongAndShort(t *testing.T) {
	p := PositionEntry{SourceLong: 5, SourceShort: 3, TargetLong: 8, TargetShort: 1}
	longDelta, shortDelta := p.LegDelta(2, true)
	// inverse-follow: source short feeds target long, source long feeds target short.
	assert.Equal(t, -2, longDelta) // 3*2 - 8
	assert.Equal(t, 9, shortDelta) // 5*2 - 1
}
