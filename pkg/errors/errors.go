package errors

import (
	"errors"
	"fmt"
)

// Configuration errors
var (
	ErrChargeMissingDueDate       = errors.New("loan charge missing due date")
	ErrUnsupportedCalculationType = errors.New("unsupported charge calculation type")
	ErrCurrencyMismatch           = errors.New("currency mismatch")
	ErrInvalidCurrency            = errors.New("invalid currency code")
)

// Domain errors
var (
	ErrLoanNotFound               = errors.New("loan not found")
	ErrLoanAlreadyExists          = errors.New("loan already exists")
	ErrLoanAlreadyClosed          = errors.New("loan is already closed")
	ErrInvalidLoanAmount          = errors.New("invalid loan amount")
	ErrInvalidTransactionAmount   = errors.New("invalid transaction amount")
	ErrNoOutstandingBalance       = errors.New("no outstanding balance")
	ErrChargeNotFound             = errors.New("loan charge not found")
	ErrChargeInactive             = errors.New("loan charge is inactive")
	ErrChargeAlreadyPaid          = errors.New("loan charge has payments recorded")
	ErrInstallmentNotFound        = errors.New("installment not found")
	ErrInvalidSchedule            = errors.New("invalid repayment schedule")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrTransactionReversed        = errors.New("transaction already reversed")
	ErrComponentNotWaivable       = errors.New("component cannot be waived")
	ErrNothingToReschedule        = errors.New("no outstanding amount to reschedule")
	ErrRescheduleLimitExceeded    = errors.New("maximum number of reschedules exceeded")
	ErrReschedulePeriodsTooFew    = errors.New("reschedule periods must exceed unpaid installments")
	ErrNoInstallmentsToDistribute = errors.New("no installments to distribute charge across")
	ErrLoanLocked                 = errors.New("loan is being modified by another request")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound               = "LOAN_NOT_FOUND"
	ErrCodeLoanAlreadyExists          = "LOAN_ALREADY_EXISTS"
	ErrCodeLoanAlreadyClosed          = "LOAN_ALREADY_CLOSED"
	ErrCodeInvalidLoanAmount          = "INVALID_LOAN_AMOUNT"
	ErrCodeInvalidTransactionAmount   = "INVALID_TRANSACTION_AMOUNT"
	ErrCodeNoOutstandingBalance       = "NO_OUTSTANDING_BALANCE"
	ErrCodeChargeMissingDueDate       = "LOAN_CHARGE_MISSING_DUE_DATE"
	ErrCodeUnsupportedCalculation     = "UNSUPPORTED_CALCULATION_TYPE"
	ErrCodeCurrencyMismatch           = "CURRENCY_MISMATCH"
	ErrCodeInvalidCurrency            = "INVALID_CURRENCY"
	ErrCodeChargeNotFound             = "CHARGE_NOT_FOUND"
	ErrCodeChargeInactive             = "CHARGE_INACTIVE"
	ErrCodeChargeAlreadyPaid          = "CHARGE_ALREADY_PAID"
	ErrCodeInstallmentNotFound        = "INSTALLMENT_NOT_FOUND"
	ErrCodeInvalidSchedule            = "INVALID_SCHEDULE"
	ErrCodeTransactionNotFound        = "TRANSACTION_NOT_FOUND"
	ErrCodeTransactionReversed        = "TRANSACTION_ALREADY_REVERSED"
	ErrCodeComponentNotWaivable       = "COMPONENT_NOT_WAIVABLE"
	ErrCodeNothingToReschedule        = "NOTHING_TO_RESCHEDULE"
	ErrCodeRescheduleLimitExceeded    = "RESCHEDULE_LIMIT_EXCEEDED"
	ErrCodeReschedulePeriodsTooFew    = "RESCHEDULE_PERIODS_TOO_FEW"
	ErrCodeNoInstallmentsToDistribute = "NO_INSTALLMENTS_TO_DISTRIBUTE"
	ErrCodeLoanLocked                 = "LOAN_LOCKED"
	ErrCodeDatabaseError              = "DATABASE_ERROR"
	ErrCodeCacheError                 = "CACHE_ERROR"
)

// Wrap common errors with business context
func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanAlreadyExists(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyExists,
		fmt.Sprintf("Loan with ID %s already exists", loanID),
		ErrLoanAlreadyExists,
	)
}

func WrapLoanAlreadyClosed(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanAlreadyClosed,
		fmt.Sprintf("Loan with ID %s is already closed", loanID),
		ErrLoanAlreadyClosed,
	)
}

func WrapInvalidLoanAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidLoanAmount,
		fmt.Sprintf("Invalid loan amount: %s", amount),
		ErrInvalidLoanAmount,
	)
}

func WrapInvalidTransactionAmount(amount string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTransactionAmount,
		fmt.Sprintf("Invalid transaction amount: %s", amount),
		ErrInvalidTransactionAmount,
	)
}

func WrapNoOutstandingBalance(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoOutstandingBalance,
		fmt.Sprintf("Loan with ID %s has no outstanding balance", loanID),
		ErrNoOutstandingBalance,
	)
}

func WrapChargeMissingDueDate(chargeName, timeType string) *BusinessError {
	return NewBusinessError(
		ErrCodeChargeMissingDueDate,
		fmt.Sprintf("Charge %s with time type %s requires a due date", chargeName, timeType),
		ErrChargeMissingDueDate,
	)
}

func WrapUnsupportedCalculation(calculationType string) *BusinessError {
	return NewBusinessError(
		ErrCodeUnsupportedCalculation,
		fmt.Sprintf("Calculation type %s is not supported here", calculationType),
		ErrUnsupportedCalculationType,
	)
}

func WrapCurrencyMismatch(expected, actual string) *BusinessError {
	return NewBusinessError(
		ErrCodeCurrencyMismatch,
		fmt.Sprintf("Expected currency %s but got %s", expected, actual),
		ErrCurrencyMismatch,
	)
}

func WrapInvalidCurrency(code string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidCurrency,
		fmt.Sprintf("Currency %q is not a valid ISO code", code),
		ErrInvalidCurrency,
	)
}

func WrapChargeNotFound(chargeID string) *BusinessError {
	return NewBusinessError(
		ErrCodeChargeNotFound,
		fmt.Sprintf("Loan charge with ID %s not found", chargeID),
		ErrChargeNotFound,
	)
}

func WrapChargeInactive(chargeID string) *BusinessError {
	return NewBusinessError(
		ErrCodeChargeInactive,
		fmt.Sprintf("Loan charge with ID %s is inactive", chargeID),
		ErrChargeInactive,
	)
}

func WrapChargeAlreadyPaid(chargeID string) *BusinessError {
	return NewBusinessError(
		ErrCodeChargeAlreadyPaid,
		fmt.Sprintf("Loan charge with ID %s already has payments and cannot be removed", chargeID),
		ErrChargeAlreadyPaid,
	)
}

func WrapInstallmentNotFound(number int) *BusinessError {
	return NewBusinessError(
		ErrCodeInstallmentNotFound,
		fmt.Sprintf("Installment %d not found", number),
		ErrInstallmentNotFound,
	)
}

func WrapInvalidSchedule(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidSchedule,
		reason,
		ErrInvalidSchedule,
	)
}

func WrapTransactionNotFound(transactionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeTransactionNotFound,
		fmt.Sprintf("Transaction with ID %s not found", transactionID),
		ErrTransactionNotFound,
	)
}

func WrapTransactionReversed(transactionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeTransactionReversed,
		fmt.Sprintf("Transaction with ID %s is already reversed", transactionID),
		ErrTransactionReversed,
	)
}

func WrapComponentNotWaivable(component string) *BusinessError {
	return NewBusinessError(
		ErrCodeComponentNotWaivable,
		fmt.Sprintf("Component %s cannot be waived", component),
		ErrComponentNotWaivable,
	)
}

func WrapNothingToReschedule(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNothingToReschedule,
		fmt.Sprintf("Loan with ID %s has no outstanding amount to reschedule", loanID),
		ErrNothingToReschedule,
	)
}

func WrapRescheduleLimitExceeded(max int, window string) *BusinessError {
	return NewBusinessError(
		ErrCodeRescheduleLimitExceeded,
		fmt.Sprintf("At most %d reschedules are allowed within %s", max, window),
		ErrRescheduleLimitExceeded,
	)
}

func WrapReschedulePeriodsTooFew(requested, unpaid int) *BusinessError {
	return NewBusinessError(
		ErrCodeReschedulePeriodsTooFew,
		fmt.Sprintf("Requested %d periods but %d installments are still unpaid", requested, unpaid),
		ErrReschedulePeriodsTooFew,
	)
}

func WrapNoInstallmentsToDistribute(chargeName string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoInstallmentsToDistribute,
		fmt.Sprintf("Charge %s has no installments to be distributed across", chargeName),
		ErrNoInstallmentsToDistribute,
	)
}

func WrapLoanLocked(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanLocked,
		fmt.Sprintf("Loan with ID %s is locked by another operation", loanID),
		ErrLoanLocked,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}

// Code extracts the business error code from an error chain, or "" if none
func Code(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
