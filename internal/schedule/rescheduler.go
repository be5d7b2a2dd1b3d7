package schedule

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/charge"
	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/internal/reprocess"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// Policy limits how often a loan may be rescheduled
type Policy struct {
	// MaxReschedules within Window; zero disables the limit
	MaxReschedules int
	Window         time.Duration
}

// Request asks for the unpaid principal to be spread over Periods new installments
type Request struct {
	Periods int

	// AnnualRate replaces the loan's rate when set
	AnnualRate decimal.NullDecimal
	Date       time.Time
}

type Rescheduler struct {
	policy      Policy
	calculator  *charge.Calculator
	reprocessor *reprocess.Reprocessor
	logger      *zap.Logger
}

func NewRescheduler(policy Policy, calculator *charge.Calculator, reprocessor *reprocess.Reprocessor, logger *zap.Logger) *Rescheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calculator == nil {
		calculator = charge.NewCalculator(logger)
	}
	if reprocessor == nil {
		reprocessor = reprocess.New(calculator, logger)
	}
	return &Rescheduler{
		policy:      policy,
		calculator:  calculator,
		reprocessor: reprocessor,
		logger:      logger,
	}
}

// Reschedule regenerates the unpaid part of a copy of loan. Installments up
// to the last one with any settlement are kept, their principal cut down to
// what was settled; the principal taken off them is amortized over
// req.Periods new installments. Installment fees and distributed charges are
// spread again over the new installments before the loan is reprocessed.
func (r *Rescheduler) Reschedule(loan *domain.Loan, req Request) (*domain.Loan, error) {
	if err := r.check(loan, req); err != nil {
		r.logger.Info("reschedule rejected",
			zap.String("loan_id", loan.LoanID),
			zap.Int("periods", req.Periods),
			zap.Error(err),
		)
		return nil, err
	}

	on := utils.DateOnly(req.Date)
	updated := loan.Clone()
	updated.SortInstallments()

	keep := 0
	for i := range updated.Installments {
		if updated.Installments[i].ObligationsMet || updated.Installments[i].HasActivity() {
			keep = i + 1
		}
	}
	kept := updated.Installments[:keep]

	remaining := updated.Zero()
	for i := range kept {
		remaining = remaining.Add(kept[i].TruncatePrincipal(on))
	}
	for _, inst := range updated.Installments[keep:] {
		remaining = remaining.Add(inst.Outstanding(domain.ComponentPrincipal))
	}

	start := utils.DateOnly(updated.DisbursementDate)
	if keep > 0 {
		start = kept[keep-1].DueDate
	}
	if utils.AfterDay(on, start) {
		start = on
	}
	if req.AnnualRate.Valid {
		updated.InterestRate = req.AnnualRate.Decimal
	}

	generated, err := Generate(Terms{
		Principal:   remaining,
		AnnualRate:  updated.InterestRate,
		Periods:     req.Periods,
		Frequency:   updated.Frequency,
		Start:       start,
		FirstNumber: keep + 1,
	})
	if err != nil {
		return nil, err
	}

	installments := make([]domain.Installment, 0, keep+len(generated))
	installments = append(installments, kept...)
	installments = append(installments, generated...)
	updated.Installments = installments
	updated.RescheduleDates = append(updated.RescheduleDates, on)

	for _, ch := range updated.ActiveCharges() {
		if !charge.SpreadsOverInstallments(ch) {
			continue
		}
		if err := r.calculator.Price(updated, ch, keep+1); err != nil {
			return nil, err
		}
	}

	result, err := r.reprocessor.Reprocess(updated, on)
	if err != nil {
		return nil, err
	}

	r.logger.Info("loan rescheduled",
		zap.String("loan_id", result.LoanID),
		zap.Int("kept_installments", keep),
		zap.Int("new_installments", len(generated)),
		zap.Stringer("principal", remaining),
	)
	return result, nil
}

func (r *Rescheduler) check(loan *domain.Loan, req Request) error {
	if !loan.OutstandingPrincipal().IsPositive() {
		return customError.WrapNothingToReschedule(loan.LoanID)
	}

	if r.policy.MaxReschedules > 0 {
		since := utils.DateOnly(req.Date).Add(-r.policy.Window)
		recent := 0
		for _, d := range loan.RescheduleDates {
			if utils.InWindow(d, since, req.Date, false) {
				recent++
			}
		}
		if recent >= r.policy.MaxReschedules {
			return customError.WrapRescheduleLimitExceeded(r.policy.MaxReschedules, r.policy.Window.String())
		}
	}

	if unpaid := loan.UnpaidInstallments(); req.Periods <= unpaid {
		return customError.WrapReschedulePeriodsTooFew(req.Periods, unpaid)
	}
	return nil
}
