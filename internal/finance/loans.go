package finance

import (
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/talgya/city-builder/internal/econ"
)

// LoanType selects the loan product.
type LoanType uint8

const (
	LoanStandard LoanType = iota
	LoanEmergency
	LoanDevelopment
	LoanInfrastructure
)

func (t LoanType) String() string {
	switch t {
	case LoanStandard:
		return "standard"
	case LoanEmergency:
		return "emergency"
	case LoanDevelopment:
		return "development"
	case LoanInfrastructure:
		return "infrastructure"
	default:
		return "unknown"
	}
}

// LoanTypeByName maps a stored loan type name back to its value.
func LoanTypeByName(name string) (LoanType, bool) {
	switch name {
	case "standard":
		return LoanStandard, true
	case "emergency":
		return LoanEmergency, true
	case "development":
		return LoanDevelopment, true
	case "infrastructure":
		return LoanInfrastructure, true
	default:
		return 0, false
	}
}

// baseRate is the annual interest rate per loan type before the rating
// modifier.
var baseRate = map[LoanType]float64{
	LoanStandard:       0.08,
	LoanEmergency:      0.15,
	LoanDevelopment:    0.06,
	LoanInfrastructure: 0.05,
}

// loanDuration is the repayment term in turns per loan type.
var loanDuration = map[LoanType]int{
	LoanStandard:       24,
	LoanEmergency:      12,
	LoanDevelopment:    60,
	LoanInfrastructure: 120,
}

// Loan is one active or historical municipal loan.
type Loan struct {
	ID             string   `db:"id" json:"id"`
	Type           LoanType `db:"-" json:"-"`
	Principal      float64  `db:"principal" json:"principal"`
	InterestRate   float64  `db:"interest_rate" json:"interest_rate"`
	Remaining      float64  `db:"remaining" json:"remaining"`
	MonthlyPayment float64  `db:"monthly_payment" json:"monthly_payment"`
	TurnsRemaining int      `db:"turns_remaining" json:"turns_remaining"`
	TakenTurn      int      `db:"taken_turn" json:"taken_turn"`
	RatingAtIssue  Rating   `db:"-" json:"-"`
}

// Offer is a quoted loan awaiting an application.
type Offer struct {
	Type           LoanType `json:"type"`
	Amount         float64  `json:"amount"`
	InterestRate   float64  `json:"interest_rate"`
	DurationTurns  int      `json:"duration_turns"`
	MonthlyPayment float64  `json:"monthly_payment"`
	TotalInterest  float64  `json:"total_interest"`
	ApprovalChance float64  `json:"approval_chance"`
	Rating         Rating   `json:"-"`
}

// ServiceResult summarizes one turn of loan servicing.
type ServiceResult struct {
	Paid          float64
	InterestPaid  float64
	PrincipalPaid float64
	MissedLoans   []string
	Completed     []Loan
}

// QuoteLoan prices a loan of the given type and amount against the
// current rating. It returns nil when the amount is non-positive or
// exceeds the rating-tiered ceiling.
func (s *System) QuoteLoan(t LoanType, amount float64) *Offer {
	rate, ok := baseRate[t]
	if !ok || amount <= 0 {
		return nil
	}
	if amount > s.rating.LoanCeiling() {
		s.logger.Debug("loan over ceiling",
			zap.String("type", t.String()),
			zap.Float64("amount", amount),
			zap.Float64("ceiling", s.rating.LoanCeiling()))
		return nil
	}
	annual := rate * s.rating.RateModifier()
	n := loanDuration[t]
	payment := annuityPayment(amount, annual, n)

	approval := s.rating.ApprovalBase() - 0.10*float64(len(s.active))
	if approval < 0.10 {
		approval = 0.10
	}
	if approval > 0.95 {
		approval = 0.95
	}
	return &Offer{
		Type:           t,
		Amount:         amount,
		InterestRate:   annual,
		DurationTurns:  n,
		MonthlyPayment: round2(payment),
		TotalInterest:  round2(payment*float64(n) - amount),
		ApprovalChance: approval,
		Rating:         s.rating,
	}
}

// TakeLoan applies for the quoted loan. Approval is drawn against the
// offer's approval chance; on success the principal is credited to the
// ledger and the loan joins the active set. A non-empty reason is
// returned on rejection.
func (s *System) TakeLoan(offer *Offer, turn int, led *econ.Ledger) (*Loan, string) {
	if offer == nil {
		return nil, "no loan offer"
	}
	if s.rand.Float64() > offer.ApprovalChance {
		s.logger.Info("loan application declined",
			zap.String("type", offer.Type.String()),
			zap.Float64("amount", offer.Amount))
		return nil, "loan application declined"
	}
	loan := &Loan{
		ID:             uuid.NewString(),
		Type:           offer.Type,
		Principal:      offer.Amount,
		InterestRate:   offer.InterestRate,
		Remaining:      offer.Amount,
		MonthlyPayment: offer.MonthlyPayment,
		TurnsRemaining: offer.DurationTurns,
		TakenTurn:      turn,
		RatingAtIssue:  offer.Rating,
	}
	s.active = append(s.active, loan)
	s.totalBorrowed += offer.Amount
	led.Earn(offer.Amount)
	s.logger.Info("loan taken",
		zap.String("id", loan.ID),
		zap.String("type", loan.Type.String()),
		zap.Float64("amount", loan.Principal),
		zap.Float64("monthly_payment", loan.MonthlyPayment))
	out := *loan
	return &out, ""
}

// ServiceLoans debits one monthly payment per active loan. Unaffordable
// payments are missed: no debit, a 10 point score penalty, and the loan
// carries over unchanged. Fully repaid loans move to history.
func (s *System) ServiceLoans(led *econ.Ledger) ServiceResult {
	var res ServiceResult
	keep := s.active[:0]
	for _, loan := range s.active {
		if loan.TurnsRemaining <= 0 {
			s.history = append(s.history, *loan)
			continue
		}
		if !led.Spend(loan.MonthlyPayment) {
			s.missedPayments++
			s.penalizeScore(10)
			res.MissedLoans = append(res.MissedLoans, loan.ID)
			s.logger.Warn("missed loan payment",
				zap.String("id", loan.ID),
				zap.Float64("payment", loan.MonthlyPayment))
			keep = append(keep, loan)
			continue
		}
		interest := loan.Remaining * loan.InterestRate / 12
		principal := loan.MonthlyPayment - interest
		if principal < 0 {
			principal = 0
		}
		if principal > loan.Remaining {
			principal = loan.Remaining
		}
		loan.Remaining = round2(loan.Remaining - principal)
		loan.TurnsRemaining--
		s.successfulPayments++
		s.totalRepaid += loan.MonthlyPayment
		res.Paid += loan.MonthlyPayment
		res.InterestPaid += interest
		res.PrincipalPaid += principal
		if loan.TurnsRemaining == 0 {
			loan.Remaining = 0
			s.history = append(s.history, *loan)
			res.Completed = append(res.Completed, *loan)
			s.logger.Info("loan repaid", zap.String("id", loan.ID))
			continue
		}
		keep = append(keep, loan)
	}
	s.active = keep
	return res
}

// TotalDebt sums the remaining balance of all active loans.
func (s *System) TotalDebt() float64 {
	var total float64
	for _, loan := range s.active {
		total += loan.Remaining
	}
	return total
}

// MonthlyObligations sums the monthly payments of all active loans.
func (s *System) MonthlyObligations() float64 {
	var total float64
	for _, loan := range s.active {
		total += loan.MonthlyPayment
	}
	return total
}

// ActiveLoans returns copies of the active loan set.
func (s *System) ActiveLoans() []Loan {
	out := make([]Loan, 0, len(s.active))
	for _, loan := range s.active {
		out = append(out, *loan)
	}
	return out
}

// LoanHistory returns copies of completed loans.
func (s *System) LoanHistory() []Loan {
	out := make([]Loan, len(s.history))
	copy(out, s.history)
	return out
}

// annuityPayment returns the fixed monthly payment for principal p at
// the given annual rate over n monthly periods.
func annuityPayment(p, annualRate float64, n int) float64 {
	if n <= 0 {
		return p
	}
	r := annualRate / 12
	if r == 0 {
		return p / float64(n)
	}
	factor := math.Pow(1+r, float64(n))
	return p * r * factor / (factor - 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
