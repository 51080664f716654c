package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtside/models"
)

func slots(court string, times ...string) []models.Slot {
	out := make([]models.Slot, 0, len(times))
	for _, t := range times {
		out = append(out, models.Slot{Court: court, Time: t})
	}
	return out
}

func TestBuildOptionsSingleHour(t *testing.T) {
	raw := append(slots("Pista 1", "14:00", "15:00"), slots("Pista 2", "14:00")...)

	opts := BuildOptions(raw, 1)
	require.Len(t, opts, 3)
	for _, opt := range opts {
		assert.Len(t, opt.Times, 1)
		assert.Equal(t, opt.Start, opt.Times[0])
	}
}

func TestBuildOptionsContiguousRuns(t *testing.T) {
	raw := slots("Pista 1", "14:00", "15:00", "17:00", "18:00", "19:00")

	opts := BuildOptions(raw, 2)
	require.Len(t, opts, 3)

	starts := StartTimes(opts)
	assert.Equal(t, []string{"14:00", "17:00", "18:00"}, starts)

	for _, opt := range opts {
		require.Len(t, opt.Times, 2)
		// Every step lands on an existing slot of the same court.
		for _, tm := range opt.Times {
			assert.Contains(t, []string{"14:00", "15:00", "17:00", "18:00", "19:00"}, tm)
		}
	}
}

func TestBuildOptionsGapBreaksRun(t *testing.T) {
	raw := slots("Pista 1", "14:00", "16:00")
	opts := BuildOptions(raw, 2)
	assert.Empty(t, opts)
}

func TestBuildOptionsNoMidnightWrap(t *testing.T) {
	raw := slots("Pista 1", "22:00", "23:00")

	opts := BuildOptions(raw, 2)
	require.Len(t, opts, 1)
	assert.Equal(t, "22:00", opts[0].Start)

	opts = BuildOptions(raw, 3)
	assert.Empty(t, opts, "a run starting at 22:00 would cross midnight")
}

func TestBuildOptionsCourtsDoNotMix(t *testing.T) {
	raw := append(slots("Pista 1", "14:00"), slots("Pista 2", "15:00")...)
	opts := BuildOptions(raw, 2)
	assert.Empty(t, opts, "contiguity never spans courts")
}

func TestBuildOptionsDeterministic(t *testing.T) {
	raw := []models.Slot{
		{Court: "Pista 2", Time: "15:00"},
		{Court: "Pista 1", Time: "14:00"},
		{Court: "Pista 1", Time: "15:00"},
		{Court: "Pista 2", Time: "14:00"},
	}

	first := BuildOptions(raw, 1)
	second := BuildOptions(raw, 1)
	assert.Equal(t, first, second, "same snapshot and duration must yield the same result")
}

func TestCollapseByStart(t *testing.T) {
	raw := append(slots("Pista 1", "14:00", "15:00"), slots("Pista 2", "14:00", "16:00")...)

	collapsed := CollapseByStart(BuildOptions(raw, 1))
	require.Len(t, collapsed, 3)
	assert.Equal(t, []string{"14:00", "15:00", "16:00"}, StartTimes(collapsed))
	// First court wins for the shared start.
	assert.Equal(t, "Pista 1", collapsed[0].Court)
}

func TestRankByCloseness(t *testing.T) {
	raw := slots("Pista 1", "10:00", "13:00", "15:00", "18:00")
	opts := CollapseByStart(BuildOptions(raw, 1))

	ranked := RankByCloseness(opts, "14:00", 3)
	require.Len(t, ranked, 3)
	// 13:00 and 15:00 tie at distance 1; the earlier hour wins.
	assert.Equal(t, "13:00", ranked[0].Start)
	assert.Equal(t, "15:00", ranked[1].Start)
	assert.Equal(t, "10:00", ranked[2].Start)
}

func TestRankByClosenessWithoutDesired(t *testing.T) {
	raw := slots("Pista 1", "18:00", "10:00", "15:00")
	opts := CollapseByStart(BuildOptions(raw, 1))

	ranked := RankByCloseness(opts, "", 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "10:00", ranked[0].Start)
	assert.Equal(t, "15:00", ranked[1].Start)
}
