// Package population models the city's social-class cohorts, their
// seven tracked needs, and the per-turn demographic, employment and
// satisfaction passes.
package population

import (
	"math"

	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/rng"
)

// SocialClass identifies a population cohort.
type SocialClass uint8

const (
	ClassWorker SocialClass = iota
	ClassMiddle
	ClassUpper
	ClassStudent
	ClassUnemployed

	classCount
)

// String returns the stable cohort name used in saves and the API.
func (c SocialClass) String() string {
	switch c {
	case ClassWorker:
		return "worker"
	case ClassMiddle:
		return "middle_class"
	case ClassUpper:
		return "upper_class"
	case ClassStudent:
		return "student"
	case ClassUnemployed:
		return "unemployed"
	default:
		return "unknown"
	}
}

// ClassByName maps a stored cohort name back to its class.
func ClassByName(name string) (SocialClass, bool) {
	switch name {
	case "worker":
		return ClassWorker, true
	case "middle_class":
		return ClassMiddle, true
	case "upper_class":
		return ClassUpper, true
	case "student":
		return ClassStudent, true
	case "unemployed":
		return ClassUnemployed, true
	default:
		return 0, false
	}
}

// NeedKind identifies one of the seven tracked city needs.
type NeedKind uint8

const (
	NeedHousing NeedKind = iota
	NeedJobs
	NeedHealthcare
	NeedEducation
	NeedSafety
	NeedEntertainment
	NeedTransport

	needCount
)

// String returns the stable need name used in saves and the API.
func (k NeedKind) String() string {
	switch k {
	case NeedHousing:
		return "housing"
	case NeedJobs:
		return "jobs"
	case NeedHealthcare:
		return "healthcare"
	case NeedEducation:
		return "education"
	case NeedSafety:
		return "safety"
	case NeedEntertainment:
		return "entertainment"
	case NeedTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// NeedByName maps a stored need name back to its kind.
func NeedByName(name string) (NeedKind, bool) {
	for k := NeedKind(0); k < needCount; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// demandFraction is the share of total population each need demands.
var demandFraction = [needCount]float64{
	NeedHousing:       1.0,
	NeedJobs:          0.6,
	NeedHealthcare:    0.3,
	NeedEducation:     0.4,
	NeedSafety:        0.5,
	NeedEntertainment: 0.2,
	NeedTransport:     0.7,
}

// employmentBase is the per-class employment ceiling at full job supply.
var employmentBase = [classCount]float64{
	ClassWorker:  0.80,
	ClassMiddle:  0.85,
	ClassUpper:   0.70,
	ClassStudent: 0.30,
}

// Cohort is one social-class population group.
type Cohort struct {
	Class          SocialClass `json:"-"`
	Count          int         `json:"count"`
	EmploymentRate float64     `json:"employment_rate"`
	Satisfaction   float64     `json:"satisfaction"`
	Income         float64     `json:"income"`
}

// Need tracks supply, demand and derived satisfaction for one city need.
type Need struct {
	Kind         NeedKind `json:"-"`
	Current      float64  `json:"current"`
	Demand       float64  `json:"demand"`
	Satisfaction float64  `json:"satisfaction"`
}

// Model holds all cohorts and needs and runs the per-turn passes.
// Randomness comes from the injected source so runs are reproducible.
type Model struct {
	cohorts [classCount]Cohort
	needs   [needCount]Need

	birthRate   float64
	deathRate   float64
	growthBonus float64

	rand   rng.Rand
	logger *zap.Logger
}

// NewModel builds a model with the standard founding cohorts.
func NewModel(r rng.Rand, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		birthRate: 0.025,
		deathRate: 0.002,
		rand:      r,
		logger:    logger.Named("population"),
	}
	m.Reset()
	return m
}

// Reset restores the founding cohorts and clears all need state.
func (m *Model) Reset() {
	m.cohorts = [classCount]Cohort{
		ClassWorker:     {Class: ClassWorker, Count: 150, EmploymentRate: 0.80, Satisfaction: 40, Income: 2000},
		ClassMiddle:     {Class: ClassMiddle, Count: 75, EmploymentRate: 0.85, Satisfaction: 60, Income: 4000},
		ClassUpper:      {Class: ClassUpper, Count: 15, EmploymentRate: 0.70, Satisfaction: 70, Income: 8000},
		ClassStudent:    {Class: ClassStudent, Count: 30, EmploymentRate: 0.30, Satisfaction: 55, Income: 500},
		ClassUnemployed: {Class: ClassUnemployed, Count: 20, EmploymentRate: 0, Satisfaction: 20, Income: 800},
	}
	for k := NeedKind(0); k < needCount; k++ {
		m.needs[k] = Need{Kind: k}
	}
	m.growthBonus = 0
}

// TotalPopulation is the sum of all cohort counts.
func (m *Model) TotalPopulation() int {
	var total int
	for _, c := range m.cohorts {
		total += c.Count
	}
	return total
}

// Workforce counts residents available for work (students excluded).
func (m *Model) Workforce() int {
	var total int
	for _, c := range m.cohorts {
		if c.Class == ClassStudent {
			continue
		}
		total += c.Count
	}
	return total
}

// Employed counts residents currently holding a job.
func (m *Model) Employed() int {
	var total int
	for _, c := range m.cohorts {
		total += int(float64(c.Count) * c.EmploymentRate)
	}
	return total
}

// UnemploymentRate returns the percentage of the workforce out of work.
func (m *Model) UnemploymentRate() float64 {
	wf := m.Workforce()
	if wf == 0 {
		return 0
	}
	rate := (1 - float64(m.Employed())/float64(wf)) * 100
	if rate < 0 {
		return 0
	}
	return rate
}

// AverageSatisfaction is the population-weighted mean cohort
// satisfaction, 50 for an empty city.
func (m *Model) AverageSatisfaction() float64 {
	total := m.TotalPopulation()
	if total == 0 {
		return 50
	}
	var sum float64
	for _, c := range m.cohorts {
		sum += c.Satisfaction * float64(c.Count)
	}
	return sum / float64(total)
}

// Cohorts returns copies of all cohorts in class order.
func (m *Model) Cohorts() []Cohort {
	out := make([]Cohort, 0, classCount)
	for _, c := range m.cohorts {
		out = append(out, c)
	}
	return out
}

// Cohort returns a copy of one cohort.
func (m *Model) Cohort(class SocialClass) Cohort {
	if class >= classCount {
		return Cohort{}
	}
	return m.cohorts[class]
}

// RestoreCohort overwrites one cohort from a saved snapshot.
func (m *Model) RestoreCohort(c Cohort) {
	if c.Class >= classCount {
		return
	}
	if c.Count < 0 {
		c.Count = 0
	}
	m.cohorts[c.Class] = c
}

// Needs returns copies of all needs in kind order.
func (m *Model) Needs() []Need {
	out := make([]Need, 0, needCount)
	for _, n := range m.needs {
		out = append(out, n)
	}
	return out
}

// Need returns a copy of one need.
func (m *Model) Need(kind NeedKind) Need {
	if kind >= needCount {
		return Need{}
	}
	return m.needs[kind]
}

// RestoreNeed overwrites one need from a saved snapshot.
func (m *Model) RestoreNeed(n Need) {
	if n.Kind >= needCount {
		return
	}
	m.needs[n.Kind] = n
}

// SetGrowthBonus sets the additive birth-rate bonus contributed by
// researched technology effects.
func (m *Model) SetGrowthBonus(bonus float64) {
	if bonus < 0 {
		bonus = 0
	}
	m.growthBonus = bonus
}

// UpdateNeeds recomputes supply, demand and satisfaction for every
// need from the current building inventory. Supply keys consumed here:
// population (housing), jobs, health, education, safety, entertainment
// and transport. Resource-flow keys are the ledger's concern.
func (m *Model) UpdateNeeds(buildings []building.Building) {
	var supply [needCount]float64
	for _, b := range buildings {
		supply[NeedHousing] += b.Effect("population")
		supply[NeedJobs] += b.Effect("jobs")
		supply[NeedHealthcare] += b.Effect("health")
		supply[NeedEducation] += b.Effect("education")
		supply[NeedSafety] += b.Effect("safety")
		supply[NeedEntertainment] += b.Effect("entertainment")
		supply[NeedTransport] += b.Effect("transport")
	}
	total := float64(m.TotalPopulation())
	for k := NeedKind(0); k < needCount; k++ {
		n := &m.needs[k]
		n.Current = supply[k]
		n.Demand = total * demandFraction[k]
		if n.Demand <= 0 {
			n.Satisfaction = 100
			continue
		}
		n.Satisfaction = math.Min(100, n.Current/n.Demand*100)
	}
}

// UpdateDemographics runs the demographic, employment and satisfaction
// passes for one turn, in that order.
func (m *Model) UpdateDemographics() {
	m.updateDynamics()
	m.updateEmployment()
	m.updateSatisfaction()
}

// updateDynamics computes births, deaths and migration and distributes
// the net change across cohorts. A single turn never removes more than
// 2% of the population.
func (m *Model) updateDynamics() {
	total := m.TotalPopulation()
	if total == 0 {
		return
	}
	housingBonus := math.Max(0, (m.needs[NeedHousing].Satisfaction-30)/100)
	satMult := math.Max(0.5, m.AverageSatisfaction()/100)

	births := int(float64(total) * m.birthRate * (1 + m.growthBonus) * satMult * (1 + housingBonus) * rng.Jitter(m.rand, 0.05))
	deaths := int(float64(total) * m.deathRate * (2 - satMult) * rng.Jitter(m.rand, 0.05))
	migrationRate := ((m.AverageSatisfaction()-20)/100 + housingBonus) * 0.01
	migration := int(float64(total) * migrationRate * rng.Jitter(m.rand, 0.05))

	net := births - deaths + migration
	if maxDecline := int(float64(total) * 0.02); net < -maxDecline {
		net = -maxDecline
	}
	m.distribute(net)
	m.logger.Debug("demographics",
		zap.Int("births", births),
		zap.Int("deaths", deaths),
		zap.Int("migration", migration),
		zap.Int("population", m.TotalPopulation()))
}

// distribute spreads a net population change proportionally across the
// organic cohorts. The unemployed cohort only changes through the
// employment pass.
func (m *Model) distribute(net int) {
	if net == 0 {
		return
	}
	total := m.TotalPopulation()
	if total == 0 {
		return
	}
	for i := range m.cohorts {
		c := &m.cohorts[i]
		if c.Class == ClassUnemployed || c.Count == 0 {
			continue
		}
		share := float64(c.Count) / float64(total)
		change := int(float64(net) * share * rng.Jitter(m.rand, 0.10))
		c.Count += change
		if c.Count < 0 {
			c.Count = 0
		}
	}
}

// updateEmployment recomputes employment rates from job supply and
// moves a slice of the unemployed back into work.
func (m *Model) updateEmployment() {
	workforce := m.Workforce()
	var ratio float64
	if workforce > 0 {
		ratio = math.Min(1, m.needs[NeedJobs].Current/float64(workforce))
	}

	unemployed := &m.cohorts[ClassUnemployed]
	if unemployed.Count > 0 && ratio > 0 {
		hired := int(float64(unemployed.Count) * 0.1 * ratio)
		if hired > 0 {
			unemployed.Count -= hired
			m.cohorts[ClassWorker].Count += hired
		}
	}

	for i := range m.cohorts {
		c := &m.cohorts[i]
		switch c.Class {
		case ClassWorker, ClassMiddle, ClassUpper:
			c.EmploymentRate = employmentBase[c.Class] * ratio
		case ClassStudent:
			c.EmploymentRate = employmentBase[ClassStudent]
		case ClassUnemployed:
			c.EmploymentRate = 0
		}
	}
}

// updateSatisfaction re-derives each cohort's satisfaction from its
// class-specific need priorities, blended 80% old / 20% new and
// clamped to [20, 100].
func (m *Model) updateSatisfaction() {
	var avgNeeds float64
	for _, n := range m.needs {
		avgNeeds += n.Satisfaction
	}
	avgNeeds /= float64(needCount)

	housing := m.needs[NeedHousing].Satisfaction
	jobs := m.needs[NeedJobs].Satisfaction
	education := m.needs[NeedEducation].Satisfaction
	safety := m.needs[NeedSafety].Satisfaction
	entertainment := m.needs[NeedEntertainment].Satisfaction
	transport := m.needs[NeedTransport].Satisfaction

	for i := range m.cohorts {
		c := &m.cohorts[i]
		if c.Count == 0 {
			continue
		}
		var priority float64
		switch c.Class {
		case ClassWorker:
			priority = 0.4*jobs + 0.4*housing + 0.2*avgNeeds
		case ClassMiddle:
			priority = 0.3*education + 0.3*safety + 0.2*housing + 0.2*avgNeeds
		case ClassUpper:
			priority = 0.4*entertainment + 0.3*transport + 0.3*avgNeeds
		case ClassStudent:
			priority = 0.5*education + 0.5*avgNeeds
		case ClassUnemployed:
			priority = 0.6*jobs + 0.4*avgNeeds
		}
		c.Satisfaction = clampSatisfaction(c.Satisfaction*0.8 + priority*0.2)
	}
}

// AddResidents adds newcomers to the worker cohort, or removes
// residents proportionally across cohorts for a negative count.
func (m *Model) AddResidents(n int) {
	switch {
	case n > 0:
		m.cohorts[ClassWorker].Count += n
	case n < 0:
		m.removeResidents(-n)
	}
}

func (m *Model) removeResidents(n int) {
	total := m.TotalPopulation()
	if total == 0 {
		return
	}
	if n > total {
		n = total
	}
	remaining := n
	for i := range m.cohorts {
		c := &m.cohorts[i]
		loss := int(float64(n) * float64(c.Count) / float64(total))
		if loss > c.Count {
			loss = c.Count
		}
		c.Count -= loss
		remaining -= loss
	}
	// rounding remainder comes out of the largest cohort
	for remaining > 0 {
		largest := &m.cohorts[0]
		for i := range m.cohorts {
			if m.cohorts[i].Count > largest.Count {
				largest = &m.cohorts[i]
			}
		}
		if largest.Count == 0 {
			return
		}
		largest.Count--
		remaining--
	}
}

// AdjustSatisfaction shifts every cohort's satisfaction by delta,
// keeping each within [20, 100].
func (m *Model) AdjustSatisfaction(delta float64) {
	for i := range m.cohorts {
		c := &m.cohorts[i]
		if c.Count == 0 {
			continue
		}
		c.Satisfaction = clampSatisfaction(c.Satisfaction + delta)
	}
}

func clampSatisfaction(v float64) float64 {
	if v < 20 {
		return 20
	}
	if v > 100 {
		return 100
	}
	return v
}
