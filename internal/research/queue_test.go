package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := NewQueue(nil)
	require.NoError(t, err)
	return q
}

func TestCatalogLoads(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	assert.Equal(t, 0, q.ResearchedCount())
	assert.Empty(t, q.CurrentID())

	tech, ok := q.Technology("basic_economics")
	require.True(t, ok)
	assert.Equal(t, "Basic Economics", tech.Name)
	assert.Equal(t, 3, tech.ResearchTime)
}

func TestUnknownTechnology(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	ok, reason := q.CanResearch("cold_fusion")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
	assert.False(t, q.StartResearch("cold_fusion", 0))
}

func TestPrerequisiteEnforced(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	// banking requires basic_economics
	ok, reason := q.CanResearch("banking")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
	assert.False(t, q.StartResearch("banking", 0))
	assert.Empty(t, q.CurrentID())
	assert.Equal(t, StatusLocked, q.Status("banking"))
}

func TestPrerequisiteUnlocks(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	q.RestoreState(TechState{ID: "basic_economics", Researched: true, Progress: 3})

	assert.Equal(t, StatusResearchable, q.Status("banking"))
	ok, reason := q.CanResearch("banking")
	assert.True(t, ok, reason)
}

func TestSingleResearchSlot(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	require.True(t, q.StartResearch("basic_economics", 0))
	assert.Equal(t, StatusInProgress, q.Status("basic_economics"))

	ok, reason := q.CanResearch("urban_planning")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
	assert.False(t, q.StartResearch("urban_planning", 0))
	assert.Equal(t, "basic_economics", q.CurrentID())
}

func TestInvestmentBuysPoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		investment float64
		want       int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{2500, 3},
		{10000, 11},
	}
	for _, tt := range tests {
		q := newQueue(t)
		require.True(t, q.StartResearch("urban_planning", tt.investment))
		assert.Equal(t, tt.want, q.PointsPerTurn(), "investment %v", tt.investment)
	}
}

func TestAdvanceToCompletion(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	require.True(t, q.StartResearch("urban_planning", 0)) // 3 turns at 1 point

	assert.Nil(t, q.Advance())
	assert.Nil(t, q.Advance())
	done := q.Advance()
	require.NotNil(t, done)
	assert.Equal(t, "urban_planning", done.ID)
	assert.Equal(t, StatusResearched, q.Status("urban_planning"))
	assert.Empty(t, q.CurrentID())
	assert.Equal(t, 1, q.PointsPerTurn())
}

func TestAdvanceWithInvestmentFinishesFaster(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	require.True(t, q.StartResearch("urban_planning", 2000)) // 3 points per turn

	done := q.Advance()
	require.NotNil(t, done)
	assert.Equal(t, "urban_planning", done.ID)
}

func TestAdvanceIdleSlot(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	assert.Nil(t, q.Advance())
}

func TestEffectsAggregation(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	q.RestoreState(TechState{ID: "basic_economics", Researched: true})
	q.RestoreState(TechState{ID: "manufacturing", Researched: true})

	effects := q.Effects()
	assert.InDelta(t, 0.15, effects["tax_efficiency"], 1e-9)
}

func TestUnlockedBuildings(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	assert.Empty(t, q.UnlockedBuildings())

	q.RestoreState(TechState{ID: "renewable_energy", Researched: true})
	assert.Equal(t, []string{"solar_plant", "wind_farm"}, q.UnlockedBuildings())
}

func TestAlreadyResearchedRejected(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	q.RestoreState(TechState{ID: "basic_economics", Researched: true})
	ok, reason := q.CanResearch("basic_economics")
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestResetClearsProgress(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	require.True(t, q.StartResearch("basic_economics", 5000))
	q.RestoreState(TechState{ID: "manufacturing", Researched: true})

	q.Reset()
	assert.Equal(t, 0, q.ResearchedCount())
	assert.Empty(t, q.CurrentID())
	assert.Equal(t, 1, q.PointsPerTurn())
	assert.Equal(t, 0.0, q.TotalInvested())
}

func TestRestoreSlotIgnoresUnknown(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	q.RestoreSlot("warp_drive", 4, 0)
	assert.Empty(t, q.CurrentID())
	assert.Equal(t, 4, q.PointsPerTurn())
}

func TestAvailableRespectsPrerequisites(t *testing.T) {
	t.Parallel()
	q := newQueue(t)
	for _, tech := range q.Available() {
		assert.Empty(t, tech.Prerequisites, tech.ID)
	}
}
