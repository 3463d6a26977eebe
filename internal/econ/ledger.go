// Package econ implements the city resource ledger: the typed store of
// money and material resources, the per-turn tax and maintenance pass,
// and the bankruptcy threshold check.
package econ

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/building"
)

// DefaultDebtLimit is the money level at or below which the city is
// considered bankrupt.
const DefaultDebtLimit = -4000

// Resource is one ledger entry. Money may go negative (debt); every
// other resource clamps to [0, MaxCapacity].
type Resource struct {
	Name            string  `db:"name" json:"name"`
	Amount          float64 `db:"amount" json:"amount"`
	MaxCapacity     float64 `db:"max_capacity" json:"max_capacity"`
	ProductionRate  float64 `db:"production_rate" json:"production_rate"`
	ConsumptionRate float64 `db:"consumption_rate" json:"consumption_rate"`
	UnitPrice       float64 `db:"unit_price" json:"unit_price"`
}

// TaxRates holds the adjustable per-category tax rates.
type TaxRates struct {
	Residential float64 `json:"residential"`
	Commercial  float64 `json:"commercial"`
	Industrial  float64 `json:"industrial"`
}

// Workforce reports the headcounts the tax and expense passes need.
// *population.Model satisfies it.
type Workforce interface {
	Employed() int
	TotalPopulation() int
}

// Ledger owns the resource set and all money movement.
type Ledger struct {
	resources map[string]*Resource
	taxRates  TaxRates
	logger    *zap.Logger
}

// NewLedger builds a ledger with the standard resource set and the
// given starting treasury.
func NewLedger(initialMoney float64, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		resources: make(map[string]*Resource),
		taxRates: TaxRates{
			Residential: 0.05,
			Commercial:  0.08,
			Industrial:  0.10,
		},
		logger: logger.Named("ledger"),
	}
	for _, r := range []Resource{
		{Name: "money", Amount: initialMoney, MaxCapacity: 1_000_000_000, UnitPrice: 1},
		{Name: "energy", Amount: 100, MaxCapacity: 1000, UnitPrice: 2},
		{Name: "water", Amount: 100, MaxCapacity: 1000, UnitPrice: 1.5},
		{Name: "materials", Amount: 50, MaxCapacity: 500, UnitPrice: 10},
		{Name: "food", Amount: 200, MaxCapacity: 1000, UnitPrice: 5},
		{Name: "luxury_goods", Amount: 0, MaxCapacity: 100, UnitPrice: 50},
		{Name: "happiness", Amount: 50, MaxCapacity: 100},
		{Name: "education", Amount: 30, MaxCapacity: 100},
		{Name: "health", Amount: 40, MaxCapacity: 100},
		{Name: "safety", Amount: 60, MaxCapacity: 100},
		{Name: "environment", Amount: 70, MaxCapacity: 100},
	} {
		res := r
		l.resources[res.Name] = &res
	}
	return l
}

// Amount returns the current amount of the named resource, zero for
// unknown names.
func (l *Ledger) Amount(name string) float64 {
	if r, ok := l.resources[name]; ok {
		return r.Amount
	}
	return 0
}

// Money is shorthand for Amount("money").
func (l *Ledger) Money() float64 { return l.Amount("money") }

// Get returns a copy of the named resource.
func (l *Ledger) Get(name string) (Resource, bool) {
	if r, ok := l.resources[name]; ok {
		return *r, true
	}
	return Resource{}, false
}

// Names returns all resource names in stable order.
func (l *Ledger) Names() []string {
	names := make([]string, 0, len(l.resources))
	for name := range l.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resources returns a copy of the full resource set, keyed by name.
func (l *Ledger) Resources() map[string]Resource {
	out := make(map[string]Resource, len(l.resources))
	for name, r := range l.resources {
		out[name] = *r
	}
	return out
}

// RestoreResource overwrites one resource from a saved snapshot.
// Unknown names are added as-is so saves survive catalog growth.
func (l *Ledger) RestoreResource(r Resource) {
	res := r
	l.resources[res.Name] = &res
}

// TaxRates returns the current tax rates.
func (l *Ledger) TaxRates() TaxRates { return l.taxRates }

// SetTaxRates replaces the tax rates, clamping each to [0, 1].
func (l *Ledger) SetTaxRates(rates TaxRates) {
	l.taxRates = TaxRates{
		Residential: clamp01(rates.Residential),
		Commercial:  clamp01(rates.Commercial),
		Industrial:  clamp01(rates.Industrial),
	}
}

// ModifyResource applies delta to the named resource. It rejects
// unknown names, NaN or infinite deltas, and any change that would
// drive a non-money resource negative. Overflow clamps to capacity.
// Amounts are stored with money-grade precision (2 decimal places).
func (l *Ledger) ModifyResource(name string, delta float64) bool {
	r, ok := l.resources[name]
	if !ok {
		l.logger.Warn("unknown resource", zap.String("resource", name))
		return false
	}
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		l.logger.Warn("rejected non-finite delta", zap.String("resource", name))
		return false
	}
	next := r.Amount + delta
	if math.IsNaN(next) || math.IsInf(next, 0) {
		return false
	}
	if name != "money" {
		if next < 0 {
			return false
		}
		if next > r.MaxCapacity {
			next = r.MaxCapacity
		}
	}
	r.Amount = round2(next)
	return true
}

// CanAfford reports whether the treasury covers cost.
func (l *Ledger) CanAfford(cost float64) bool {
	return l.Money() >= cost
}

// Spend debits the treasury when affordable.
func (l *Ledger) Spend(amount float64) bool {
	if amount < 0 || !l.CanAfford(amount) {
		return false
	}
	return l.ModifyResource("money", -amount)
}

// Earn credits the treasury.
func (l *Ledger) Earn(amount float64) bool {
	if amount < 0 {
		return false
	}
	return l.ModifyResource("money", amount)
}

// CalculateTaxes returns the tax income one turn would collect from
// the given building inventory and workforce. Commercial buildings pay
// 12% of cost scaled by the commercial rate, industrial 10% by the
// industrial rate, everything else 8% by the residential rate, plus a
// flat levy of 75 per employed resident scaled by the residential rate.
func (l *Ledger) CalculateTaxes(buildings []building.Building, wf Workforce) float64 {
	var total float64
	for _, b := range buildings {
		switch b.Category {
		case building.CategoryCommercial:
			total += b.Cost * 0.12 * l.taxRates.Commercial
		case building.CategoryIndustrial:
			total += b.Cost * 0.10 * l.taxRates.Industrial
		case building.CategoryResidential, building.CategoryService, building.CategoryInfrastructure:
			total += b.Cost * 0.08 * l.taxRates.Residential
		}
	}
	if wf != nil {
		total += float64(wf.Employed()) * 75 * l.taxRates.Residential
	}
	return total
}

// CalculateExpenses returns one turn of maintenance plus the per-capita
// service cost. Service buildings cost 0.05% of their build cost per
// turn, all others 0.03%.
func (l *Ledger) CalculateExpenses(buildings []building.Building, wf Workforce) float64 {
	var total float64
	for _, b := range buildings {
		if b.Category == building.CategoryService {
			total += b.Cost * 0.0005
		} else {
			total += b.Cost * 0.0003
		}
	}
	if wf != nil {
		total += float64(wf.TotalPopulation()) * 0.05
	}
	return total
}

// ApplyTaxesAndExpenses runs the full income pass for one turn and
// applies the net delta to money. incomeMultiplier folds in difficulty
// and researched tax-efficiency effects; pass 1 for the baseline.
func (l *Ledger) ApplyTaxesAndExpenses(buildings []building.Building, wf Workforce, incomeMultiplier float64) float64 {
	if incomeMultiplier <= 0 {
		incomeMultiplier = 1
	}
	income := l.CalculateTaxes(buildings, wf) * incomeMultiplier
	expenses := l.CalculateExpenses(buildings, wf)
	net := income - expenses
	l.ModifyResource("money", net)
	l.logger.Debug("taxes applied",
		zap.Float64("income", income),
		zap.Float64("expenses", expenses),
		zap.Float64("net", net),
		zap.Float64("money", l.Money()))
	return net
}

// ApplyResourceFlows recomputes production and consumption rates for
// the non-money resources from building effects and applies one turn
// of net flow. A building effect keyed by a resource name produces
// (positive) or consumes (negative) that resource; other effect keys
// belong to the population model and are ignored here.
func (l *Ledger) ApplyResourceFlows(buildings []building.Building) {
	for name, r := range l.resources {
		if name == "money" {
			continue
		}
		r.ProductionRate = 0
		r.ConsumptionRate = 0
	}
	for _, b := range buildings {
		for key, value := range b.Effects {
			r, ok := l.resources[key]
			if !ok || key == "money" {
				continue
			}
			if value >= 0 {
				r.ProductionRate += value
			} else {
				r.ConsumptionRate += -value
			}
		}
	}
	for name, r := range l.resources {
		if name == "money" {
			continue
		}
		net := r.ProductionRate - r.ConsumptionRate
		if net != 0 {
			next := r.Amount + net
			if next < 0 {
				next = 0
			}
			if next > r.MaxCapacity {
				next = r.MaxCapacity
			}
			r.Amount = round2(next)
		}
	}
}

// IsBankrupt reports whether money has fallen to the debt limit.
// The disabled flag belongs to the orchestrator's sandbox settings and
// suppresses the check entirely.
func (l *Ledger) IsBankrupt(debtLimit float64, disabled bool) bool {
	if disabled {
		return false
	}
	return l.Money() <= debtLimit
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
