// Package engine is the simulation orchestrator. A City owns one
// instance of each subsystem and advances them in a fixed order every
// turn, aggregating alerts and statistics along the way.
package engine

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/config"
	"github.com/talgya/city-builder/internal/econ"
	"github.com/talgya/city-builder/internal/finance"
	"github.com/talgya/city-builder/internal/population"
	"github.com/talgya/city-builder/internal/research"
	"github.com/talgya/city-builder/internal/rng"
)

// levelThresholds maps city level n (1-based) to the population it
// requires, at index n-1.
var levelThresholds = [10]int{0, 600, 1400, 2800, 5000, 8000, 12000, 17000, 23000, 30000}

// sandbox treasury bounds: below the floor the treasury refills to the
// target.
const (
	sandboxFloor  = 900_000
	sandboxTarget = 1_000_000
)

// City is the simulation root. It is not safe for concurrent use; a
// host driving turns from one goroutine while serving reads from
// another must hold its own lock around both.
type City struct {
	ledger   *econ.Ledger
	pop      *population.Model
	credit   *finance.System
	research *research.Queue

	buildings []building.Building

	turn  int
	level int
	stats Stats

	alerts  []Alert
	events  []Event
	pending *PendingEvent

	difficulty         config.Difficulty
	sandboxMoney       bool
	bankruptcyDisabled bool
	initialMoney       float64

	rand   rng.Rand
	logger *zap.Logger
}

// NewCity assembles a fresh city with the given starting treasury and
// difficulty. The random source drives demographics, loan approval and
// event rolls; seed it for reproducible runs.
func NewCity(initialMoney float64, difficulty config.Difficulty, r rng.Rand, logger *zap.Logger) (*City, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	queue, err := research.NewQueue(logger)
	if err != nil {
		return nil, err
	}
	c := &City{
		ledger:       econ.NewLedger(initialMoney, logger),
		pop:          population.NewModel(r, logger),
		credit:       finance.NewSystem(r, logger),
		research:     queue,
		level:        1,
		difficulty:   difficulty,
		initialMoney: initialMoney,
		events:       defaultEvents(),
		rand:         r,
		logger:       logger.Named("engine"),
	}
	return c, nil
}

// Ledger exposes the resource ledger.
func (c *City) Ledger() *econ.Ledger { return c.ledger }

// Population exposes the population model.
func (c *City) Population() *population.Model { return c.pop }

// Credit exposes the credit system.
func (c *City) Credit() *finance.System { return c.credit }

// Research exposes the research queue.
func (c *City) Research() *research.Queue { return c.research }

// Turn returns the number of completed turns.
func (c *City) Turn() int { return c.turn }

// Level returns the current city level (1-10).
func (c *City) Level() int { return c.level }

// Stats returns a copy of the session statistics.
func (c *City) Stats() Stats { return c.stats }

// Difficulty returns the active difficulty modifiers.
func (c *City) Difficulty() config.Difficulty { return c.difficulty }

// Buildings returns a copy of the building inventory.
func (c *City) Buildings() []building.Building {
	out := make([]building.Building, len(c.buildings))
	copy(out, c.buildings)
	return out
}

// SetSandboxMoney toggles the bottomless-treasury sandbox flag.
func (c *City) SetSandboxMoney(on bool) { c.sandboxMoney = on }

// SandboxMoney reports the bottomless-treasury flag.
func (c *City) SandboxMoney() bool { return c.sandboxMoney }

// SetBankruptcyDisabled toggles the bankruptcy check.
func (c *City) SetBankruptcyDisabled(on bool) { c.bankruptcyDisabled = on }

// BankruptcyDisabled reports the bankruptcy-check override.
func (c *City) BankruptcyDisabled() bool { return c.bankruptcyDisabled }

// IsBankrupt reports whether the city has hit the debt limit. Always
// false while the override is set.
func (c *City) IsBankrupt() bool {
	return c.ledger.IsBankrupt(econ.DefaultDebtLimit, c.bankruptcyDisabled)
}

// NextLevelRequirement returns the population needed for the next
// level, or false at the level cap.
func (c *City) NextLevelRequirement() (int, bool) {
	if c.level >= len(levelThresholds) {
		return 0, false
	}
	return levelThresholds[c.level], true
}

// AdvanceTurn runs one full simulation turn. The call is synchronous
// and atomic from the caller's perspective: every subsystem advances
// exactly once, in a fixed order, before the turn counter increments.
func (c *City) AdvanceTurn() {
	if c.sandboxMoney {
		c.topUpSandbox()
	}
	buildings := c.buildings

	c.pop.UpdateNeeds(buildings)
	effects := c.research.Effects()
	c.pop.SetGrowthBonus(effects["population_growth"])
	c.pop.UpdateDemographics()

	c.checkLevelUp()

	incomeMult := c.difficulty.IncomeMultiplier * (1 + effects["tax_efficiency"])
	c.ledger.ApplyTaxesAndExpenses(buildings, c.pop, incomeMult)
	if income := c.ledger.CalculateTaxes(buildings, c.pop) * incomeMult; income > 0 {
		c.stats.TaxesCollected += income
	}
	c.ledger.ApplyResourceFlows(buildings)

	c.credit.ComputeScore(c.ledger.Money())
	svc := c.credit.ServiceLoans(c.ledger)
	for range svc.MissedLoans {
		c.addAlert(SeverityWarning, "Missed a loan payment; credit score dropped")
	}
	for _, loan := range svc.Completed {
		c.addAlert(SeverityInfo, fmt.Sprintf("Repaid %s loan of $%s",
			loan.Type, humanize.CommafWithDigits(loan.Principal, 0)))
	}
	c.credit.RecordReport(c.turn, c.ledger, c.pop, buildings)
	c.credit.EstimateBankruptcyRisk(c.ledger.Money())

	if done := c.research.Advance(); done != nil {
		c.completeResearch(done)
	}

	c.maybeRandomEvent()
	c.updateStats()
	c.checkWarnings()

	c.turn++
	c.stats.TurnsPlayed = c.turn
	c.logger.Debug("turn complete",
		zap.Int("turn", c.turn),
		zap.Float64("money", c.ledger.Money()),
		zap.Int("population", c.pop.TotalPopulation()))
}

// completeResearch applies a finished technology's one-time effects.
// Persistent multipliers (tax efficiency, population growth) are read
// from the aggregated effect map at the start of each turn instead.
func (c *City) completeResearch(t *research.Technology) {
	c.stats.TechnologiesResearched++
	if grant := t.Effects["money"]; grant != 0 {
		c.ledger.ModifyResource("money", grant)
	}
	if lift := t.Effects["happiness"]; lift != 0 {
		c.pop.AdjustSatisfaction(lift)
	}
	c.addAlert(SeverityAchievement, fmt.Sprintf("Research completed: %s", t.Name))
}

// checkLevelUp raises the city level at most once per turn.
func (c *City) checkLevelUp() {
	req, ok := c.NextLevelRequirement()
	if !ok || c.pop.TotalPopulation() < req {
		return
	}
	c.level++
	c.addAlert(SeverityAchievement, fmt.Sprintf("The city reached level %d", c.level))
	c.logger.Info("level up", zap.Int("level", c.level))
}

// checkWarnings raises threshold alerts for the turn just simulated.
func (c *City) checkWarnings() {
	money := c.ledger.Money()
	switch {
	case c.IsBankrupt():
		c.addAlert(SeverityCritical, "The city is bankrupt")
	case money <= econ.DefaultDebtLimit/2:
		c.addAlert(SeverityCritical, fmt.Sprintf("Debt of $%s is approaching the bankruptcy limit",
			humanize.CommafWithDigits(-money, 0)))
	case money < 0:
		c.addAlert(SeverityWarning, "The treasury is in debt")
	}

	if c.pop.AverageSatisfaction() < 30 {
		c.addAlert(SeverityWarning, "Resident satisfaction is critically low")
	}

	for _, n := range c.pop.Needs() {
		if n.Demand > 0 && n.Satisfaction < 25 {
			c.addAlert(SeverityWarning, fmt.Sprintf("Severe %s shortage", n.Kind))
		}
	}
}

// PlaceBuilding buys and registers a building. The purchase price is
// scaled by the difficulty cost multiplier.
func (c *City) PlaceBuilding(b building.Building) (bool, string) {
	cost := b.Cost * c.difficulty.CostMultiplier
	if !c.spend(cost) {
		return false, fmt.Sprintf("cannot afford $%s", humanize.CommafWithDigits(cost, 0))
	}
	c.buildings = append(c.buildings, b)
	c.stats.BuildingsConstructed++
	c.stats.MoneySpent += cost
	c.addAlert(SeverityInfo, fmt.Sprintf("Built %s for $%s", b.Name, humanize.CommafWithDigits(cost, 0)))
	return true, ""
}

// DemolishBuilding removes a building by index, refunding half its
// build cost.
func (c *City) DemolishBuilding(index int) (bool, string) {
	if index < 0 || index >= len(c.buildings) {
		return false, "no such building"
	}
	b := c.buildings[index]
	c.buildings = append(c.buildings[:index], c.buildings[index+1:]...)
	c.ledger.Earn(b.Cost * 0.5)
	c.addAlert(SeverityInfo, fmt.Sprintf("Demolished %s", b.Name))
	return true, ""
}

// StartResearch pays for and begins researching a technology. The
// investment on top of the base cost buys extra research points.
func (c *City) StartResearch(id string, investment float64) (bool, string) {
	ok, reason := c.research.CanResearch(id)
	if !ok {
		return false, reason
	}
	tech, _ := c.research.Technology(id)
	if investment < 0 {
		investment = 0
	}
	total := tech.Cost + investment
	if !c.spend(total) {
		return false, fmt.Sprintf("cannot afford $%s research budget", humanize.CommafWithDigits(total, 0))
	}
	c.research.StartResearch(id, investment)
	c.addAlert(SeverityInfo, fmt.Sprintf("Research started: %s", tech.Name))
	return true, ""
}

// QuoteLoan prices a loan at the current credit rating.
func (c *City) QuoteLoan(t finance.LoanType, amount float64) *finance.Offer {
	return c.credit.QuoteLoan(t, amount)
}

// ApplyForLoan quotes and applies for a loan in one step.
func (c *City) ApplyForLoan(t finance.LoanType, amount float64) (bool, string) {
	offer := c.credit.QuoteLoan(t, amount)
	if offer == nil {
		return false, fmt.Sprintf("amount exceeds the %s-rating ceiling", c.credit.Rating())
	}
	loan, reason := c.credit.TakeLoan(offer, c.turn, c.ledger)
	if loan == nil {
		return false, reason
	}
	c.stats.LoansTaken++
	c.addAlert(SeverityInfo, fmt.Sprintf("Loan approved: $%s at %.1f%%",
		humanize.CommafWithDigits(loan.Principal, 0), loan.InterestRate*100))
	return true, ""
}

// spend debits the treasury, or fakes it under the money sandbox.
func (c *City) spend(cost float64) bool {
	if c.sandboxMoney {
		c.topUpSandbox()
		return true
	}
	return c.ledger.Spend(cost)
}

func (c *City) topUpSandbox() {
	if money := c.ledger.Money(); money < sandboxFloor {
		c.ledger.ModifyResource("money", sandboxTarget-money)
	}
}

// Reset restores the city to its founding state under the same
// difficulty and random source.
func (c *City) Reset() {
	c.ledger = econ.NewLedger(c.initialMoney, c.logger)
	c.pop.Reset()
	c.credit = finance.NewSystem(c.rand, c.logger)
	c.research.Reset()
	c.buildings = nil
	c.turn = 0
	c.level = 1
	c.stats = Stats{}
	c.alerts = nil
	c.pending = nil
	c.logger.Info("city reset")
}

// Summary is the aggregate view served to presentation layers.
type Summary struct {
	Turn            int     `json:"turn"`
	Level           int     `json:"level"`
	NextLevelAt     int     `json:"next_level_at,omitempty"`
	Money           float64 `json:"money"`
	Population      int     `json:"population"`
	Satisfaction    float64 `json:"satisfaction"`
	Unemployment    float64 `json:"unemployment"`
	CreditScore     int     `json:"credit_score"`
	CreditRating    string  `json:"credit_rating"`
	BankruptcyRisk  float64 `json:"bankruptcy_risk"`
	ActiveLoans     int     `json:"active_loans"`
	Debt            float64 `json:"debt"`
	CurrentResearch string  `json:"current_research,omitempty"`
	Researched      int     `json:"researched"`
	Buildings       int     `json:"buildings"`
	Difficulty      string  `json:"difficulty"`
	Bankrupt        bool    `json:"bankrupt"`
}

// Summary snapshots the city's aggregate state.
func (c *City) Summary() Summary {
	s := Summary{
		Turn:           c.turn,
		Level:          c.level,
		Money:          c.ledger.Money(),
		Population:     c.pop.TotalPopulation(),
		Satisfaction:   c.pop.AverageSatisfaction(),
		Unemployment:   c.pop.UnemploymentRate(),
		CreditScore:    c.credit.Score(),
		CreditRating:   c.credit.Rating().String(),
		BankruptcyRisk: c.credit.BankruptcyRisk(),
		ActiveLoans:    len(c.credit.ActiveLoans()),
		Debt:           c.credit.TotalDebt(),
		Researched:     c.research.ResearchedCount(),
		Buildings:      len(c.buildings),
		Difficulty:     c.difficulty.Name,
		Bankrupt:       c.IsBankrupt(),
	}
	if req, ok := c.NextLevelRequirement(); ok {
		s.NextLevelAt = req
	}
	if cur, ok := c.research.Current(); ok {
		s.CurrentResearch = cur.ID
	}
	return s
}

// RestoreMeta overwrites orchestrator-owned state from a save.
func (c *City) RestoreMeta(turn, level int, stats Stats, sandboxMoney, bankruptcyDisabled bool) {
	if turn >= 0 {
		c.turn = turn
	}
	if level >= 1 && level <= len(levelThresholds) {
		c.level = level
	}
	c.stats = stats
	c.sandboxMoney = sandboxMoney
	c.bankruptcyDisabled = bankruptcyDisabled
}

// RestoreBuildings replaces the building inventory from a save.
func (c *City) RestoreBuildings(buildings []building.Building) {
	c.buildings = append(c.buildings[:0], buildings...)
}
