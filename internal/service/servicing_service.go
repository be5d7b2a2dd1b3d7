package service

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/cache"
	"github.com/segyhp/servicing-engine/internal/charge"
	"github.com/segyhp/servicing-engine/internal/config"
	"github.com/segyhp/servicing-engine/internal/domain"
	"github.com/segyhp/servicing-engine/internal/repository"
	"github.com/segyhp/servicing-engine/internal/reprocess"
	"github.com/segyhp/servicing-engine/internal/schedule"
	"github.com/segyhp/servicing-engine/internal/waterfall"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/utils"
)

// ServicingService runs one unit of work per call: every mutation locks the
// loan, loads the aggregate, runs the engine on it and saves the result.
type ServicingService struct {
	LoanRepo        repository.LoanRepository
	TransactionRepo repository.TransactionRepository
	outstanding     cache.OutstandingCache
	locker          cache.Locker
	config          *config.Config
	logger          *zap.Logger

	calculator  *charge.Calculator
	allocator   *waterfall.Allocator
	reprocessor *reprocess.Reprocessor
	rescheduler *schedule.Rescheduler

	now func() time.Time
}

func NewServicingService(
	loanRepo repository.LoanRepository,
	transactionRepo repository.TransactionRepository,
	outstanding cache.OutstandingCache,
	locker cache.Locker,
	config *config.Config,
	logger *zap.Logger,
) (*ServicingService, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	order, err := config.WaterfallOrder()
	if err != nil {
		return nil, err
	}

	calculator := charge.NewCalculator(logger)
	reprocessor := reprocess.New(calculator, logger)
	policy := schedule.Policy{
		MaxReschedules: config.Business.MaxReschedules,
		Window:         config.Business.RescheduleWindow,
	}

	return &ServicingService{
		LoanRepo:        loanRepo,
		TransactionRepo: transactionRepo,
		outstanding:     outstanding,
		locker:          locker,
		config:          config,
		logger:          logger,
		calculator:      calculator,
		allocator:       waterfall.NewAllocator(order, config.FeeCategoryOrder(), logger),
		reprocessor:     reprocessor,
		rescheduler:     schedule.NewRescheduler(policy, calculator, reprocessor, logger),
		now:             time.Now,
	}, nil
}

// CreateLoan generates the repayment schedule and stores the new loan
func (s *ServicingService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	existingLoan, err := s.LoanRepo.GetByLoanID(ctx, request.LoanID)
	if err == nil && existingLoan != nil {
		return nil, customError.WrapLoanAlreadyExists(request.LoanID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapDatabaseError(err)
	}

	currency := s.config.Currency()
	if request.Currency != "" {
		if currency, err = money.ParseCurrency(request.Currency); err != nil {
			return nil, customError.WrapInvalidCurrency(request.Currency)
		}
	}
	frequency := request.Frequency
	if frequency == "" {
		frequency = domain.FrequencyMonthly
	}
	vat := request.VATPercentage
	if vat.IsZero() {
		vat = s.config.VATPercentage()
	}

	principal := money.New(request.Amount, currency)
	disbursed := s.date(request.DisbursementDate)

	installments, err := schedule.Generate(schedule.Terms{
		Principal:   principal,
		AnnualRate:  request.InterestRate,
		Periods:     request.NumberOfRepayments,
		Frequency:   frequency,
		Start:       disbursed,
		FirstNumber: 1,
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	loan := &domain.Loan{
		ID:                    uuid.New(),
		LoanID:                request.LoanID,
		Currency:              currency,
		Principal:             principal,
		InterestRate:          request.InterestRate,
		Frequency:             frequency,
		DisbursementDate:      disbursed,
		InterestChargedFrom:   request.InterestChargedFrom,
		Status:                domain.LoanStatusActive,
		InterestRecalculation: request.InterestRecalculation,
		VATPercentage:         vat,
		Disbursements:         []domain.Disbursement{{ID: uuid.New(), Date: disbursed, Amount: principal}},
		Installments:          installments,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err = loan.Validate(); err != nil {
		return nil, err
	}

	if err = s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.logger.Info("loan created",
		zap.String("loan_id", loan.LoanID),
		zap.Stringer("principal", principal),
		zap.Int("installments", len(installments)),
	)
	return loan, nil
}

// GetLoan returns the full loan aggregate
func (s *ServicingService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	return s.loadLoan(ctx, loanID)
}

// GetSchedule returns the installments of a loan ordered by number
func (s *ServicingService) GetSchedule(ctx context.Context, loanID string) ([]domain.Installment, error) {
	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	loan.SortInstallments()
	return loan.Installments, nil
}

// GetOutstanding returns the total outstanding balance. The value is cached
// until the next mutation of the loan; cache failures fall back to the database.
func (s *ServicingService) GetOutstanding(ctx context.Context, loanID string) (money.Money, error) {
	cached, found, err := s.outstanding.Get(ctx, loanID)
	if err != nil {
		s.logger.Warn("outstanding cache read failed", zap.String("loan_id", loanID), zap.Error(err))
	} else if found {
		return cached, nil
	}

	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return money.Money{}, err
	}

	outstanding := loan.TotalOutstanding()
	if err := s.outstanding.Set(ctx, loanID, outstanding); err != nil {
		s.logger.Warn("outstanding cache write failed", zap.String("loan_id", loanID), zap.Error(err))
	}
	return outstanding, nil
}

// IsDelinquent reports whether the borrower has missed at least the
// configured number of consecutive installments, and how many were missed.
func (s *ServicingService) IsDelinquent(ctx context.Context, loanID string) (bool, int, error) {
	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return false, 0, err
	}

	missed := loan.ConsecutiveOverdue(s.today())
	return missed >= s.config.Business.DelinquencyThreshold, missed, nil
}

// AddCharge attaches a charge to the loan and reprocesses the schedule
func (s *ServicingService) AddCharge(ctx context.Context, loanID string, request *domain.AddChargeRequest) (*domain.LoanCharge, error) {
	def := request.Definition
	if def.ID == uuid.Nil {
		def.ID = uuid.New()
	}

	var chargeID uuid.UUID
	updated, err := s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
		withCharge, ch, err := s.calculator.Apply(loan, def, charge.ApplyRequest{
			DueDate:                  request.DueDate,
			AmountOrPercentage:       request.AmountOrPercentage,
			ParentChargeID:           request.ParentChargeID,
			OverdueInstallmentNumber: request.OverdueInstallmentNumber,
			TrancheDisbursementID:    request.TrancheDisbursementID,
		})
		if err != nil {
			return nil, nil, err
		}
		chargeID = ch.ID

		reprocessed, err := s.reprocessor.Reprocess(withCharge, s.date(request.Date))
		return reprocessed, nil, err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("charge added",
		zap.String("loan_id", loanID),
		zap.String("charge_id", chargeID.String()),
		zap.String("charge", def.Name),
	)
	return updated.Charge(chargeID)
}

// UpdateCharge changes the amount or percentage of an existing charge
func (s *ServicingService) UpdateCharge(ctx context.Context, loanID string, chargeID uuid.UUID, request *domain.UpdateChargeRequest) (*domain.LoanCharge, error) {
	updated, err := s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
		changed, _, err := s.calculator.Update(loan, chargeID, charge.UpdateRequest{
			AmountOrPercentage: request.AmountOrPercentage,
			DueDate:            request.DueDate,
		})
		if err != nil {
			return nil, nil, err
		}

		reprocessed, err := s.reprocessor.Reprocess(changed, s.date(request.Date))
		return reprocessed, nil, err
	})
	if err != nil {
		return nil, err
	}
	return updated.Charge(chargeID)
}

// RemoveCharge deactivates a charge and reprocesses the schedule
func (s *ServicingService) RemoveCharge(ctx context.Context, loanID string, chargeID uuid.UUID) error {
	_, err := s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
		removed, err := s.calculator.Remove(loan, chargeID)
		if err != nil {
			return nil, nil, err
		}

		reprocessed, err := s.reprocessor.Reprocess(removed, s.today())
		return reprocessed, nil, err
	})
	return err
}

// MakePayment applies a repayment through the waterfall
func (s *ServicingService) MakePayment(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error) {
	return s.postTransaction(ctx, loanID, domain.TransactionRepayment, request)
}

// Waive forgives outstanding amounts through the waterfall
func (s *ServicingService) Waive(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error) {
	return s.postTransaction(ctx, loanID, domain.TransactionWaiver, request)
}

// WriteOff records outstanding amounts as uncollectible through the waterfall
func (s *ServicingService) WriteOff(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error) {
	return s.postTransaction(ctx, loanID, domain.TransactionWriteOff, request)
}

func (s *ServicingService) postTransaction(ctx context.Context, loanID string, txType domain.TransactionType, request *domain.TransactionRequest) (*domain.Transaction, error) {
	var posted *domain.Transaction
	_, err := s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
		if loan.Status == domain.LoanStatusClosed {
			return nil, nil, customError.WrapLoanAlreadyClosed(loan.LoanID)
		}

		tx := &domain.Transaction{
			ID:        uuid.New(),
			LoanID:    loan.ID,
			Type:      txType,
			Amount:    money.New(request.Amount, loan.Currency),
			Date:      s.date(request.Date),
			CreatedAt: s.now(),
		}

		updated, applied, err := s.allocator.Apply(loan, tx)
		if err != nil {
			return nil, nil, err
		}
		posted = applied
		return updated, []*domain.Transaction{applied}, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction posted",
		zap.String("loan_id", loanID),
		zap.String("transaction_id", posted.ID.String()),
		zap.String("type", string(txType)),
		zap.Stringer("amount", posted.Amount),
		zap.Stringer("unallocated", posted.Unallocated),
	)
	return posted, nil
}

// ReverseTransaction undoes a transaction. Transactions posted after it are
// undone first and applied again afterwards, so the loan ends up as if the
// reversed transaction had never been posted.
func (s *ServicingService) ReverseTransaction(ctx context.Context, loanID string, transactionID uuid.UUID, date time.Time) (*domain.Transaction, error) {
	on := s.date(date)

	var reversed *domain.Transaction
	_, err := s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
		history, err := s.TransactionRepo.GetByLoanID(ctx, loan.ID)
		if err != nil {
			return nil, nil, customError.WrapDatabaseError(err)
		}
		slices.SortStableFunc(history, func(a, b *domain.Transaction) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})

		idx := slices.IndexFunc(history, func(t *domain.Transaction) bool { return t.ID == transactionID })
		if idx < 0 {
			return nil, nil, customError.WrapTransactionNotFound(transactionID.String())
		}
		if history[idx].Reversed {
			return nil, nil, customError.WrapTransactionReversed(transactionID.String())
		}

		var later []*domain.Transaction
		for _, t := range history[idx+1:] {
			if !t.Reversed {
				later = append(later, t)
			}
		}

		updated := loan
		for i := len(later) - 1; i >= 0; i-- {
			if updated, _, err = s.allocator.Reverse(updated, later[i], on); err != nil {
				return nil, nil, err
			}
		}
		if updated, reversed, err = s.allocator.Reverse(updated, history[idx], on); err != nil {
			return nil, nil, err
		}

		changed := []*domain.Transaction{reversed}
		for _, t := range later {
			var replayed *domain.Transaction
			if updated, replayed, err = s.allocator.Apply(updated, t); err != nil {
				return nil, nil, err
			}
			changed = append(changed, replayed)
		}
		return updated, changed, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction reversed",
		zap.String("loan_id", loanID),
		zap.String("transaction_id", transactionID.String()),
	)
	return reversed, nil
}

// Reschedule regenerates the unpaid part of the schedule
func (s *ServicingService) Reschedule(ctx context.Context, loanID string, request *domain.RescheduleRequest) (*domain.Loan, error) {
	return s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
		updated, err := s.rescheduler.Reschedule(loan, schedule.Request{
			Periods:    request.Periods,
			AnnualRate: request.InterestRate,
			Date:       s.date(request.Date),
		})
		return updated, nil, err
	})
}

// ReprocessActiveLoans reprocesses every active loan as of today and collects
// the loans that are delinquent afterwards. A loan that fails is logged and
// skipped.
func (s *ServicingService) ReprocessActiveLoans(ctx context.Context) (*domain.ReprocessSummary, error) {
	ids, err := s.LoanRepo.ListLoanIDsByStatus(ctx, domain.LoanStatusActive)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	on := s.today()
	summary := &domain.ReprocessSummary{}
	for _, loanID := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		updated, err := s.mutate(ctx, loanID, func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error) {
			reprocessed, err := s.reprocessor.Reprocess(loan, on)
			return reprocessed, nil, err
		})
		if err != nil {
			s.logger.Warn("loan reprocess failed", zap.String("loan_id", loanID), zap.Error(err))
			summary.Failed++
			continue
		}

		summary.Processed++
		if updated.ConsecutiveOverdue(on) >= s.config.Business.DelinquencyThreshold {
			summary.Delinquent = append(summary.Delinquent, loanID)
		}
	}
	return summary, nil
}

// mutate runs fn on the loan under its lock, then saves the result together
// with the transactions fn returns and drops the cached outstanding balance.
func (s *ServicingService) mutate(
	ctx context.Context,
	loanID string,
	fn func(loan *domain.Loan) (*domain.Loan, []*domain.Transaction, error),
) (*domain.Loan, error) {
	release, err := s.locker.Acquire(ctx, loanID)
	if err != nil {
		if errors.Is(err, customError.ErrLoanLocked) {
			s.logger.Info("loan locked", zap.String("loan_id", loanID))
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("loan lock release failed", zap.String("loan_id", loanID), zap.Error(err))
		}
	}()

	loan, err := s.loadLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	updated, transactions, err := fn(loan)
	if err != nil {
		return nil, err
	}

	if err := s.LoanRepo.Save(ctx, updated, transactions...); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if err := s.outstanding.Invalidate(ctx, loanID); err != nil {
		s.logger.Warn("outstanding cache invalidation failed", zap.String("loan_id", loanID), zap.Error(err))
	}
	return updated, nil
}

func (s *ServicingService) loadLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByLoanID(ctx, loanID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, customError.WrapLoanNotFound(loanID)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loan, nil
}

// date defaults a missing request date to today
func (s *ServicingService) date(t time.Time) time.Time {
	if t.IsZero() {
		return s.today()
	}
	return utils.DateOnly(t)
}

func (s *ServicingService) today() time.Time {
	return utils.DateOnly(s.now())
}
