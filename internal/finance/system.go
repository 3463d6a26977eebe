// Package finance implements the municipal credit system: credit
// scoring, loan quoting and servicing, per-turn financial reports and
// the bankruptcy-risk heuristic.
package finance

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/econ"
	"github.com/talgya/city-builder/internal/rng"
)

// maxReports bounds the retained financial report history.
const maxReports = 100

// Report is one turn's financial statement. Assets count cash plus 80%
// of the building stock's build cost.
type Report struct {
	Turn        int       `json:"turn"`
	Income      float64   `json:"income"`
	Expenses    float64   `json:"expenses"`
	NetIncome   float64   `json:"net_income"`
	Assets      float64   `json:"assets"`
	Liabilities float64   `json:"liabilities"`
	Cash        float64   `json:"cash"`
	CashFlow    float64   `json:"cash_flow"`
	Timestamp   time.Time `json:"timestamp"`
}

// System owns all loan and credit state for one city.
type System struct {
	active  []*Loan
	history []Loan
	reports []Report

	score          int
	rating         Rating
	bankruptcyRisk float64

	successfulPayments int
	missedPayments     int
	totalBorrowed      float64
	totalRepaid        float64

	rand   rng.Rand
	logger *zap.Logger
}

// NewSystem builds a credit system with a fresh 750/good profile.
func NewSystem(r rng.Rand, logger *zap.Logger) *System {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &System{
		score:  750,
		rating: RatingGood,
		rand:   r,
		logger: logger.Named("finance"),
	}
}

// Score returns the current credit score.
func (s *System) Score() int { return s.score }

// Rating returns the current credit rating.
func (s *System) Rating() Rating { return s.rating }

// BankruptcyRisk returns the last computed risk estimate.
func (s *System) BankruptcyRisk() float64 { return s.bankruptcyRisk }

// PaymentCounts returns the successful and missed payment totals.
func (s *System) PaymentCounts() (successful, missed int) {
	return s.successfulPayments, s.missedPayments
}

// Totals returns lifetime borrowed and repaid amounts.
func (s *System) Totals() (borrowed, repaid float64) {
	return s.totalBorrowed, s.totalRepaid
}

// RecordReport appends this turn's financial statement and returns it.
// History is bounded; the oldest report is dropped past the cap.
func (s *System) RecordReport(turn int, led *econ.Ledger, wf econ.Workforce, buildings []building.Building) Report {
	var stockValue float64
	for _, b := range buildings {
		stockValue += b.Cost
	}
	income := led.CalculateTaxes(buildings, wf)
	expenses := led.CalculateExpenses(buildings, wf) + s.MonthlyObligations()
	r := Report{
		Turn:        turn,
		Income:      income,
		Expenses:    expenses,
		NetIncome:   income - expenses,
		Assets:      led.Money() + 0.8*stockValue,
		Liabilities: s.TotalDebt(),
		Cash:        led.Money(),
		CashFlow:    income - expenses,
		Timestamp:   time.Now(),
	}
	s.reports = append(s.reports, r)
	if len(s.reports) > maxReports {
		s.reports = s.reports[1:]
	}
	return r
}

// Reports returns copies of the retained financial reports.
func (s *System) Reports() []Report {
	out := make([]Report, len(s.reports))
	copy(out, s.reports)
	return out
}

// Advice returns rule-based financial guidance for the current state.
func (s *System) Advice(led *econ.Ledger) []string {
	var out []string
	cash := led.Money()
	debt := s.TotalDebt()

	if cash < 1000 {
		out = append(out, fmt.Sprintf(
			"Cash reserves are critically low ($%s). Cut spending or secure emergency funding.",
			humanize.CommafWithDigits(cash, 0)))
	}
	if debt > 2*cash && debt > 0 {
		out = append(out, fmt.Sprintf(
			"Debt of $%s is more than double your cash. Prioritize repayment before new borrowing.",
			humanize.CommafWithDigits(debt, 0)))
	}
	if s.rating == RatingPoor || s.rating == RatingBad {
		out = append(out, fmt.Sprintf(
			"A %s credit rating limits loan terms. On-time payments will rebuild the score.",
			s.rating))
	}
	if len(s.reports) >= 3 {
		last := s.reports[len(s.reports)-3:]
		if last[2].CashFlow < last[1].CashFlow && last[1].CashFlow < last[0].CashFlow {
			out = append(out, "Cash flow has declined for three consecutive turns. Review maintenance costs and tax rates.")
		}
	}
	if debt == 0 && cash > 100_000 {
		out = append(out, "Finances are healthy. A development loan could fund expansion at favorable rates.")
	}
	if len(out) == 0 {
		out = append(out, "Finances are stable. Keep an eye on cash flow as the city grows.")
	}
	return out
}

// Snapshot is the persisted slice of the credit system.
type Snapshot struct {
	Score              int
	SuccessfulPayments int
	MissedPayments     int
	TotalBorrowed      float64
	TotalRepaid        float64
	Active             []Loan
	History            []Loan
}

// Snapshot captures all persisted credit state.
func (s *System) Snapshot() Snapshot {
	return Snapshot{
		Score:              s.score,
		SuccessfulPayments: s.successfulPayments,
		MissedPayments:     s.missedPayments,
		TotalBorrowed:      s.totalBorrowed,
		TotalRepaid:        s.totalRepaid,
		Active:             s.ActiveLoans(),
		History:            s.LoanHistory(),
	}
}

// Restore overwrites the credit state from a saved snapshot.
func (s *System) Restore(sn Snapshot) {
	s.score = sn.Score
	if s.score < scoreMin {
		s.score = scoreMin
	}
	if s.score > scoreMax {
		s.score = scoreMax
	}
	s.rating = RatingForScore(s.score)
	s.successfulPayments = sn.SuccessfulPayments
	s.missedPayments = sn.MissedPayments
	s.totalBorrowed = sn.TotalBorrowed
	s.totalRepaid = sn.TotalRepaid
	s.active = s.active[:0]
	for _, loan := range sn.Active {
		l := loan
		s.active = append(s.active, &l)
	}
	s.history = append(s.history[:0], sn.History...)
	s.reports = nil
	s.bankruptcyRisk = 0
}
