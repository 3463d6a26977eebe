package finance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/econ"
)

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

type fakeWorkforce struct {
	employed int
	total    int
}

func (f fakeWorkforce) Employed() int        { return f.employed }
func (f fakeWorkforce) TotalPopulation() int { return f.total }

func TestRatingBreakpoints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		score int
		want  Rating
	}{
		{850, RatingExcellent},
		{800, RatingExcellent},
		{799, RatingGood},
		{740, RatingGood},
		{739, RatingFair},
		{670, RatingFair},
		{669, RatingPoor},
		{580, RatingPoor},
		{579, RatingBad},
		{300, RatingBad},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RatingForScore(tt.score), "score %d", tt.score)
	}
}

func TestComputeScoreFreshCity(t *testing.T) {
	t.Parallel()
	s := NewSystem(fixedRand{0}, nil)
	// 500 base + 200 no-history + 150 no-debt + 50 stability + 25 no-loans,
	// clamped to the ceiling
	got := s.ComputeScore(50000)
	assert.Equal(t, 850, got)
	assert.Equal(t, RatingExcellent, s.Rating())
}

func TestComputeScoreStaysInRange(t *testing.T) {
	t.Parallel()
	s := NewSystem(fixedRand{0}, nil)
	s.Restore(Snapshot{
		Score:          400,
		MissedPayments: 50,
		Active: []Loan{
			{ID: "a", Type: LoanStandard, Principal: 100000, Remaining: 100000, MonthlyPayment: 5000, TurnsRemaining: 24},
		},
	})
	for _, cash := range []float64{-10000, 0, 1, 50, 1e9} {
		got := s.ComputeScore(cash)
		assert.GreaterOrEqual(t, got, 300)
		assert.LessOrEqual(t, got, 850)
	}
}

func TestAnnuityPaymentStandardLoan(t *testing.T) {
	t.Parallel()
	s := NewSystem(fixedRand{0}, nil)
	s.Restore(Snapshot{Score: 700}) // fair: modifier 1.0
	require.Equal(t, RatingFair, s.Rating())

	offer := s.QuoteLoan(LoanStandard, 10000)
	require.NotNil(t, offer)
	assert.InDelta(t, 0.08, offer.InterestRate, 1e-9)
	assert.Equal(t, 24, offer.DurationTurns)

	r := 0.08 / 12
	factor := math.Pow(1+r, 24)
	want := 10000 * r * factor / (factor - 1)
	assert.InDelta(t, want, offer.MonthlyPayment, 1e-2)
}

func TestQuoteLoanCeilings(t *testing.T) {
	t.Parallel()
	s := NewSystem(fixedRand{0}, nil)
	s.Restore(Snapshot{Score: 300})
	require.Equal(t, RatingBad, s.Rating())

	assert.Nil(t, s.QuoteLoan(LoanStandard, 100001))
	assert.NotNil(t, s.QuoteLoan(LoanStandard, 100000))
	assert.Nil(t, s.QuoteLoan(LoanStandard, 0))
	assert.Nil(t, s.QuoteLoan(LoanStandard, -500))
}

func TestApprovalChanceClamps(t *testing.T) {
	t.Parallel()
	s := NewSystem(fixedRand{0}, nil)
	s.Restore(Snapshot{Score: 850})
	offer := s.QuoteLoan(LoanStandard, 10000)
	require.NotNil(t, offer)
	assert.Equal(t, 0.95, offer.ApprovalChance)

	var active []Loan
	for i := 0; i < 9; i++ {
		active = append(active, Loan{ID: string(rune('a' + i)), Remaining: 100, MonthlyPayment: 10, TurnsRemaining: 5})
	}
	s.Restore(Snapshot{Score: 850, Active: active})
	offer = s.QuoteLoan(LoanStandard, 10000)
	require.NotNil(t, offer)
	assert.InDelta(t, 0.10, offer.ApprovalChance, 1e-9)
}

func TestTakeLoanApproved(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(50000, nil)
	s := NewSystem(fixedRand{0}, nil) // draw 0 always approves
	offer := s.QuoteLoan(LoanStandard, 10000)
	require.NotNil(t, offer)

	loan, reason := s.TakeLoan(offer, 3, led)
	require.NotNil(t, loan, reason)
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, 10000.0, loan.Remaining)
	assert.Equal(t, 3, loan.TakenTurn)
	assert.Equal(t, 60000.0, led.Money())
	assert.Len(t, s.ActiveLoans(), 1)
}

func TestTakeLoanDeclined(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(50000, nil)
	s := NewSystem(fixedRand{1}, nil) // draw 1 always declines
	offer := s.QuoteLoan(LoanStandard, 10000)
	require.NotNil(t, offer)

	loan, reason := s.TakeLoan(offer, 0, led)
	assert.Nil(t, loan)
	assert.NotEmpty(t, reason)
	assert.Equal(t, 50000.0, led.Money())
	assert.Empty(t, s.ActiveLoans())
}

func TestServiceLoansToCompletion(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(1_000_000, nil)
	s := NewSystem(fixedRand{0}, nil)
	offer := s.QuoteLoan(LoanEmergency, 12000)
	require.NotNil(t, offer)
	loan, _ := s.TakeLoan(offer, 0, led)
	require.NotNil(t, loan)

	prev := loan.Remaining
	for turn := 1; turn <= offer.DurationTurns; turn++ {
		res := s.ServiceLoans(led)
		assert.Empty(t, res.MissedLoans)
		if turn < offer.DurationTurns {
			active := s.ActiveLoans()
			require.Len(t, active, 1)
			assert.LessOrEqual(t, active[0].Remaining, prev)
			assert.Equal(t, offer.DurationTurns-turn, active[0].TurnsRemaining)
			prev = active[0].Remaining
		} else {
			require.Len(t, res.Completed, 1)
			assert.Equal(t, 0.0, res.Completed[0].Remaining)
			assert.Empty(t, s.ActiveLoans())
			assert.Len(t, s.LoanHistory(), 1)
		}
	}
	successful, missed := s.PaymentCounts()
	assert.Equal(t, offer.DurationTurns, successful)
	assert.Equal(t, 0, missed)
}

func TestServiceLoansMissedPayment(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(5, nil)
	s := NewSystem(fixedRand{0}, nil)
	s.Restore(Snapshot{
		Score: 700,
		Active: []Loan{
			{ID: "big", Type: LoanStandard, Principal: 50000, InterestRate: 0.08,
				Remaining: 50000, MonthlyPayment: 2200, TurnsRemaining: 24},
		},
	})

	res := s.ServiceLoans(led)
	assert.Equal(t, []string{"big"}, res.MissedLoans)
	assert.Equal(t, 690, s.Score())
	assert.Equal(t, 5.0, led.Money())

	active := s.ActiveLoans()
	require.Len(t, active, 1)
	assert.Equal(t, 50000.0, active[0].Remaining)
	assert.Equal(t, 24, active[0].TurnsRemaining)
}

func TestEstimateBankruptcyRisk(t *testing.T) {
	t.Parallel()
	s := NewSystem(fixedRand{0}, nil)
	s.ComputeScore(50000)
	risk := s.EstimateBankruptcyRisk(50000)
	assert.GreaterOrEqual(t, risk, 0.0)
	assert.LessOrEqual(t, risk, 1.0)

	s.Restore(Snapshot{
		Score:          320,
		MissedPayments: 20,
		Active: []Loan{
			{ID: "a", Remaining: 500000, MonthlyPayment: 20000, TurnsRemaining: 30},
		},
	})
	distressed := s.EstimateBankruptcyRisk(100)
	assert.Greater(t, distressed, risk)
	assert.LessOrEqual(t, distressed, 1.0)
}

func TestRecordReportBoundsHistory(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(50000, nil)
	s := NewSystem(fixedRand{0}, nil)
	for turn := 0; turn < maxReports+20; turn++ {
		s.RecordReport(turn, led, fakeWorkforce{employed: 100, total: 200}, nil)
	}
	reports := s.Reports()
	assert.Len(t, reports, maxReports)
	assert.Equal(t, maxReports+19, reports[len(reports)-1].Turn)
}

func TestReportAssetsIncludeBuildingValue(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(10000, nil)
	s := NewSystem(fixedRand{0}, nil)
	buildings := []building.Building{
		{Name: "plant", Category: building.CategoryIndustrial, Cost: 5000},
	}
	r := s.RecordReport(0, led, fakeWorkforce{}, buildings)
	assert.InDelta(t, 10000+0.8*5000, r.Assets, 1e-9)
}

func TestAdviceNeverEmpty(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(50000, nil)
	s := NewSystem(fixedRand{0}, nil)
	assert.NotEmpty(t, s.Advice(led))

	poor := econ.NewLedger(200, nil)
	advice := s.Advice(poor)
	assert.NotEmpty(t, advice)
}

func TestSnapshotRoundtrip(t *testing.T) {
	t.Parallel()
	led := econ.NewLedger(100000, nil)
	s := NewSystem(fixedRand{0}, nil)
	offer := s.QuoteLoan(LoanDevelopment, 20000)
	require.NotNil(t, offer)
	_, _ = s.TakeLoan(offer, 2, led)
	s.ServiceLoans(led)
	s.ComputeScore(led.Money())

	sn := s.Snapshot()
	restored := NewSystem(fixedRand{0}, nil)
	restored.Restore(sn)

	assert.Equal(t, s.Score(), restored.Score())
	assert.Equal(t, s.Rating(), restored.Rating())
	assert.Equal(t, s.ActiveLoans(), restored.ActiveLoans())
	sb, sr := s.Totals()
	rb, rr := restored.Totals()
	assert.Equal(t, sb, rb)
	assert.Equal(t, sr, rr)
}
