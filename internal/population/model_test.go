package population

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/rng"
)

// fixedRand always returns the same draw, pinning all jitter.
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func sumCounts(m *Model) int {
	var total int
	for _, c := range m.Cohorts() {
		total += c.Count
	}
	return total
}

func TestFoundingCohorts(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	assert.Equal(t, 290, m.TotalPopulation())
	assert.Equal(t, 260, m.Workforce())
	assert.Equal(t, 150, m.Cohort(ClassWorker).Count)
}

func TestUpdateNeedsDemandFractions(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	m.UpdateNeeds(nil)

	total := float64(m.TotalPopulation())
	tests := []struct {
		kind     NeedKind
		fraction float64
	}{
		{NeedHousing, 1.0},
		{NeedJobs, 0.6},
		{NeedHealthcare, 0.3},
		{NeedEducation, 0.4},
		{NeedSafety, 0.5},
		{NeedEntertainment, 0.2},
		{NeedTransport, 0.7},
	}
	for _, tt := range tests {
		n := m.Need(tt.kind)
		assert.InDelta(t, total*tt.fraction, n.Demand, 1e-9, tt.kind.String())
		assert.Equal(t, 0.0, n.Satisfaction, tt.kind.String())
	}
}

func TestUpdateNeedsSupplyFromBuildings(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	buildings := []building.Building{
		{Name: "block", Category: building.CategoryResidential, Cost: 2500,
			Effects: map[string]float64{"population": 500}},
		{Name: "office", Category: building.CategoryCommercial, Cost: 2000,
			Effects: map[string]float64{"jobs": 100}},
	}
	m.UpdateNeeds(buildings)

	housing := m.Need(NeedHousing)
	assert.Equal(t, 500.0, housing.Current)
	assert.Equal(t, 100.0, housing.Satisfaction) // supply exceeds demand, capped

	jobs := m.Need(NeedJobs)
	assert.InDelta(t, 100/jobs.Demand*100, jobs.Satisfaction, 1e-9)
}

func TestZeroDemandMeansFullSatisfaction(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	for _, c := range m.Cohorts() {
		c.Count = 0
		m.RestoreCohort(c)
	}
	m.UpdateNeeds(nil)
	for _, n := range m.Needs() {
		assert.Equal(t, 100.0, n.Satisfaction)
	}
}

func TestTotalEqualsCohortSumAcrossTurns(t *testing.T) {
	t.Parallel()
	m := NewModel(rng.New(42), nil)
	buildings := []building.Building{
		{Name: "block", Category: building.CategoryResidential, Cost: 2500,
			Effects: map[string]float64{"population": 300}},
		{Name: "office", Category: building.CategoryCommercial, Cost: 2000,
			Effects: map[string]float64{"jobs": 250}},
	}
	for turn := 0; turn < 50; turn++ {
		m.UpdateNeeds(buildings)
		m.UpdateDemographics()
		assert.Equal(t, m.TotalPopulation(), sumCounts(m), "turn %d", turn)
		for _, c := range m.Cohorts() {
			assert.GreaterOrEqual(t, c.Count, 0)
			assert.GreaterOrEqual(t, c.Satisfaction, 20.0)
			assert.LessOrEqual(t, c.Satisfaction, 100.0)
		}
	}
}

func TestEmploymentWithoutJobs(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0}, nil)
	m.UpdateNeeds(nil)
	m.UpdateDemographics()

	assert.Equal(t, 0.0, m.Cohort(ClassWorker).EmploymentRate)
	assert.Equal(t, 0.0, m.Cohort(ClassMiddle).EmploymentRate)
	assert.Equal(t, 0.0, m.Cohort(ClassUpper).EmploymentRate)
	// students keep their base rate regardless of the job market
	assert.Equal(t, 0.3, m.Cohort(ClassStudent).EmploymentRate)
}

func TestEmploymentWithFullJobSupply(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0}, nil)
	unemployedBefore := m.Cohort(ClassUnemployed).Count
	buildings := []building.Building{
		{Name: "plant", Category: building.CategoryIndustrial, Cost: 5000,
			Effects: map[string]float64{"jobs": 1000}},
	}
	m.UpdateNeeds(buildings)
	m.UpdateDemographics()

	assert.Equal(t, 0.80, m.Cohort(ClassWorker).EmploymentRate)
	assert.Equal(t, 0.85, m.Cohort(ClassMiddle).EmploymentRate)
	assert.Equal(t, 0.70, m.Cohort(ClassUpper).EmploymentRate)
	assert.Less(t, m.Cohort(ClassUnemployed).Count, unemployedBefore)
}

func TestWorkerOnlyCityStandsStill(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0}, nil)
	for _, class := range []SocialClass{ClassMiddle, ClassUpper, ClassStudent, ClassUnemployed} {
		c := m.Cohort(class)
		c.Count = 0
		m.RestoreCohort(c)
	}
	require.Equal(t, 150, m.TotalPopulation())

	m.UpdateNeeds(nil)
	m.UpdateDemographics()

	assert.Equal(t, 150, m.TotalPopulation())
	assert.Equal(t, 0, m.Employed())
}

func TestAddResidents(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	before := m.TotalPopulation()

	m.AddResidents(40)
	assert.Equal(t, before+40, m.TotalPopulation())

	m.AddResidents(-100)
	assert.Equal(t, before-60, m.TotalPopulation())
	for _, c := range m.Cohorts() {
		assert.GreaterOrEqual(t, c.Count, 0)
	}
}

func TestRemoveMoreThanTotal(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	m.AddResidents(-1000000)
	assert.Equal(t, 0, m.TotalPopulation())
}

func TestAdjustSatisfactionClamps(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)

	m.AdjustSatisfaction(500)
	for _, c := range m.Cohorts() {
		if c.Count > 0 {
			assert.Equal(t, 100.0, c.Satisfaction)
		}
	}
	m.AdjustSatisfaction(-500)
	for _, c := range m.Cohorts() {
		if c.Count > 0 {
			assert.Equal(t, 20.0, c.Satisfaction)
		}
	}
}

func TestAverageSatisfactionWeighted(t *testing.T) {
	t.Parallel()
	m := NewModel(fixedRand{0.5}, nil)
	for _, class := range []SocialClass{ClassUpper, ClassStudent, ClassUnemployed} {
		c := m.Cohort(class)
		c.Count = 0
		m.RestoreCohort(c)
	}
	// 150 workers at 40 and 75 middle class at 60
	want := (150*40.0 + 75*60.0) / 225.0
	assert.InDelta(t, want, m.AverageSatisfaction(), 1e-9)
}

func TestClassNameRoundtrip(t *testing.T) {
	t.Parallel()
	for _, c := range []SocialClass{ClassWorker, ClassMiddle, ClassUpper, ClassStudent, ClassUnemployed} {
		got, ok := ClassByName(c.String())
		require.True(t, ok)
		assert.Equal(t, c, got)
	}
	_, ok := ClassByName("nobility")
	assert.False(t, ok)
}
