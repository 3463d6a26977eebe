package finance

// Credit scoring and the bankruptcy-risk heuristic. Scores live in
// [300, 850] and the five-tier rating is derived from fixed breakpoints.

// Rating is the five-tier categorical credit summary.
type Rating uint8

const (
	RatingExcellent Rating = iota
	RatingGood
	RatingFair
	RatingPoor
	RatingBad
)

func (r Rating) String() string {
	switch r {
	case RatingExcellent:
		return "excellent"
	case RatingGood:
		return "good"
	case RatingFair:
		return "fair"
	case RatingPoor:
		return "poor"
	default:
		return "bad"
	}
}

// RatingForScore derives the rating from a credit score.
func RatingForScore(score int) Rating {
	switch {
	case score >= 800:
		return RatingExcellent
	case score >= 740:
		return RatingGood
	case score >= 670:
		return RatingFair
	case score >= 580:
		return RatingPoor
	default:
		return RatingBad
	}
}

// LoanCeiling is the maximum single loan amount available at this rating.
func (r Rating) LoanCeiling() float64 {
	switch r {
	case RatingExcellent:
		return 10_000_000
	case RatingGood:
		return 5_000_000
	case RatingFair:
		return 2_000_000
	case RatingPoor:
		return 500_000
	default:
		return 100_000
	}
}

// RateModifier scales a loan type's base interest rate.
func (r Rating) RateModifier() float64 {
	switch r {
	case RatingExcellent:
		return 0.70
	case RatingGood:
		return 0.85
	case RatingFair:
		return 1.00
	case RatingPoor:
		return 1.30
	default:
		return 1.80
	}
}

// ApprovalBase is the approval chance before the active-loan penalty.
func (r Rating) ApprovalBase() float64 {
	switch r {
	case RatingExcellent:
		return 0.95
	case RatingGood:
		return 0.85
	case RatingFair:
		return 0.70
	case RatingPoor:
		return 0.45
	default:
		return 0.20
	}
}

// baseRisk is the rating's contribution to bankruptcy risk.
func (r Rating) baseRisk() float64 {
	switch r {
	case RatingExcellent:
		return 0.05
	case RatingGood:
		return 0.15
	case RatingFair:
		return 0.30
	case RatingPoor:
		return 0.50
	default:
		return 0.70
	}
}

const (
	scoreMin = 300
	scoreMax = 850
)

// ComputeScore re-derives the credit score from payment history, debt
// load, income stability over recent reports and credit history length,
// then updates the rating. The result is clamped to [300, 850].
func (s *System) ComputeScore(cash float64) int {
	score := 500.0
	score += s.paymentHistoryScore()
	score += s.debtLevelScore(cash)
	score += s.incomeStabilityScore()
	score += s.historyLengthScore()

	s.score = int(score)
	if s.score < scoreMin {
		s.score = scoreMin
	}
	if s.score > scoreMax {
		s.score = scoreMax
	}
	s.rating = RatingForScore(s.score)
	return s.score
}

// paymentHistoryScore is 0-300 by on-time payment ratio, 200 with no
// history.
func (s *System) paymentHistoryScore() float64 {
	total := s.successfulPayments + s.missedPayments
	if total == 0 {
		return 200
	}
	return 300 * float64(s.successfulPayments) / float64(total)
}

// debtLevelScore is 0-150 stepped by the debt-to-cash ratio.
func (s *System) debtLevelScore(cash float64) float64 {
	debt := s.TotalDebt()
	if debt == 0 {
		return 150
	}
	if cash < 1 {
		cash = 1
	}
	ratio := debt / cash
	switch {
	case ratio <= 0.3:
		return 150
	case ratio <= 0.7:
		return 100
	case ratio <= 1.5:
		return 50
	default:
		return 0
	}
}

// incomeStabilityScore is 0-100 from the relative income range of the
// last five reports, 50 with insufficient history.
func (s *System) incomeStabilityScore() float64 {
	if len(s.reports) < 2 {
		return 50
	}
	window := s.reports
	if len(window) > 5 {
		window = window[len(window)-5:]
	}
	lo, hi := window[0].Income, window[0].Income
	for _, r := range window[1:] {
		if r.Income < lo {
			lo = r.Income
		}
		if r.Income > hi {
			hi = r.Income
		}
	}
	if hi <= 0 {
		return 0
	}
	stability := 1 - (hi-lo)/hi
	if stability < 0 {
		stability = 0
	}
	return stability * 100
}

// historyLengthScore is 25/50/75/100 by total loans ever held.
func (s *System) historyLengthScore() float64 {
	n := len(s.active) + len(s.history)
	switch {
	case n == 0:
		return 25
	case n <= 2:
		return 50
	case n <= 5:
		return 75
	default:
		return 100
	}
}

func (s *System) penalizeScore(points int) {
	s.score -= points
	if s.score < scoreMin {
		s.score = scoreMin
	}
	s.rating = RatingForScore(s.score)
}

// EstimateBankruptcyRisk averages four independently capped factors:
// debt-to-cash load, months of payment coverage, the cash-flow trend of
// the last three reports, and the rating's base risk. The trend factor
// is skipped until three reports exist.
func (s *System) EstimateBankruptcyRisk(cash float64) float64 {
	var factors []float64

	debt := s.TotalDebt()
	switch {
	case debt == 0:
		factors = append(factors, 0)
	case cash < 1:
		factors = append(factors, 1)
	default:
		load := debt / (5 * cash)
		if load > 1 {
			load = 1
		}
		factors = append(factors, load)
	}

	if monthly := s.MonthlyObligations(); monthly > 0 {
		months := cash / monthly
		switch {
		case months >= 6:
			factors = append(factors, 0)
		case months <= 0:
			factors = append(factors, 1)
		default:
			factors = append(factors, (6-months)/6)
		}
	} else {
		factors = append(factors, 0)
	}

	if len(s.reports) >= 3 {
		last := s.reports[len(s.reports)-3:]
		switch {
		case last[2].CashFlow < last[1].CashFlow && last[1].CashFlow < last[0].CashFlow:
			factors = append(factors, 0.8)
		case last[2].CashFlow > last[1].CashFlow && last[1].CashFlow > last[0].CashFlow:
			factors = append(factors, 0.1)
		default:
			factors = append(factors, 0.4)
		}
	}

	factors = append(factors, s.rating.baseRisk())

	var sum float64
	for _, f := range factors {
		sum += f
	}
	s.bankruptcyRisk = sum / float64(len(factors))
	return s.bankruptcyRisk
}
