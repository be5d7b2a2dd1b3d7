package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/internal/domain"
	customError "github.com/segyhp/servicing-engine/pkg/errors"
	"github.com/segyhp/servicing-engine/pkg/money"
	"github.com/segyhp/servicing-engine/pkg/response"
)

// LoanService is the servicing API the handlers expose over HTTP
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	GetSchedule(ctx context.Context, loanID string) ([]domain.Installment, error)
	GetOutstanding(ctx context.Context, loanID string) (money.Money, error)
	IsDelinquent(ctx context.Context, loanID string) (bool, int, error)
	AddCharge(ctx context.Context, loanID string, request *domain.AddChargeRequest) (*domain.LoanCharge, error)
	UpdateCharge(ctx context.Context, loanID string, chargeID uuid.UUID, request *domain.UpdateChargeRequest) (*domain.LoanCharge, error)
	RemoveCharge(ctx context.Context, loanID string, chargeID uuid.UUID) error
	MakePayment(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error)
	Waive(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error)
	WriteOff(ctx context.Context, loanID string, request *domain.TransactionRequest) (*domain.Transaction, error)
	ReverseTransaction(ctx context.Context, loanID string, transactionID uuid.UUID, date time.Time) (*domain.Transaction, error)
	Reschedule(ctx context.Context, loanID string, request *domain.RescheduleRequest) (*domain.Loan, error)
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewLoanHandler(service LoanService, logger *zap.Logger) *LoanHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
		logger:    logger,
	}
}

// newValidator registers decimal_gt and decimal_gte, which compare decimal
// fields against the tag parameter.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		switch d := field.Interface().(type) {
		case decimal.Decimal:
			return d.String()
		case decimal.NullDecimal:
			if d.Valid {
				return d.Decimal.String()
			}
		}
		return nil
	}, decimal.Decimal{}, decimal.NullDecimal{})

	_ = v.RegisterValidation("decimal_gt", decimalCompare(func(cmp int) bool { return cmp > 0 }))
	_ = v.RegisterValidation("decimal_gte", decimalCompare(func(cmp int) bool { return cmp >= 0 }))
	return v
}

func decimalCompare(accept func(cmp int) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		bound, err := decimal.NewFromString(fl.Param())
		if err != nil {
			return false
		}
		return accept(value.Cmp(bound))
	}
}

// CreateLoan handles POST /api/v1/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if !h.decode(w, r, &request, false) {
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Created(w, domain.CreateLoanResponse{Loan: loan, Schedule: loan.Installments})
}

// GetLoan handles GET /api/v1/loans/{loanId}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.GetLoan(r.Context(), mux.Vars(r)["loanId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, loan)
}

// GetSchedule handles GET /api/v1/loans/{loanId}/schedule
func (h *LoanHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	schedule, err := h.service.GetSchedule(r.Context(), loanID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loanID, Schedule: schedule})
}

// GetOutstanding handles GET /api/v1/loans/{loanId}/outstanding
func (h *LoanHandler) GetOutstanding(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	outstanding, err := h.service.GetOutstanding(r.Context(), loanID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.OutstandingResponse{LoanID: loanID, Outstanding: outstanding})
}

// IsDelinquent handles GET /api/v1/loans/{loanId}/delinquent
func (h *LoanHandler) IsDelinquent(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["loanId"]

	delinquent, missed, err := h.service.IsDelinquent(r.Context(), loanID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.DelinquentResponse{
		LoanID:        loanID,
		IsDelinquent:  delinquent,
		MissedPeriods: missed,
	})
}

// MakePayment handles POST /api/v1/loans/{loanId}/payment
func (h *LoanHandler) MakePayment(w http.ResponseWriter, r *http.Request) {
	var request domain.TransactionRequest
	if !h.decode(w, r, &request, false) {
		return
	}

	tx, err := h.service.MakePayment(r.Context(), mux.Vars(r)["loanId"], &request)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Created(w, tx)
}

// PostTransaction handles POST /api/v1/loans/{loanId}/transactions. The type
// defaults to a repayment.
func (h *LoanHandler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	var request domain.TransactionRequest
	if !h.decode(w, r, &request, false) {
		return
	}

	loanID := mux.Vars(r)["loanId"]
	var (
		tx  *domain.Transaction
		err error
	)
	switch request.Type {
	case domain.TransactionWaiver:
		tx, err = h.service.Waive(r.Context(), loanID, &request)
	case domain.TransactionWriteOff:
		tx, err = h.service.WriteOff(r.Context(), loanID, &request)
	default:
		tx, err = h.service.MakePayment(r.Context(), loanID, &request)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Created(w, tx)
}

// ReverseTransaction handles POST /api/v1/loans/{loanId}/transactions/{transactionId}/reverse
func (h *LoanHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	transactionID, ok := h.pathUUID(w, r, "transactionId")
	if !ok {
		return
	}

	var request domain.ReverseTransactionRequest
	if !h.decode(w, r, &request, true) {
		return
	}

	tx, err := h.service.ReverseTransaction(r.Context(), mux.Vars(r)["loanId"], transactionID, request.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, tx)
}

// AddCharge handles POST /api/v1/loans/{loanId}/charges
func (h *LoanHandler) AddCharge(w http.ResponseWriter, r *http.Request) {
	var request domain.AddChargeRequest
	if !h.decode(w, r, &request, false) {
		return
	}

	ch, err := h.service.AddCharge(r.Context(), mux.Vars(r)["loanId"], &request)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Created(w, ch)
}

// UpdateCharge handles PUT /api/v1/loans/{loanId}/charges/{chargeId}
func (h *LoanHandler) UpdateCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, ok := h.pathUUID(w, r, "chargeId")
	if !ok {
		return
	}

	var request domain.UpdateChargeRequest
	if !h.decode(w, r, &request, false) {
		return
	}

	ch, err := h.service.UpdateCharge(r.Context(), mux.Vars(r)["loanId"], chargeID, &request)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, ch)
}

// RemoveCharge handles DELETE /api/v1/loans/{loanId}/charges/{chargeId}
func (h *LoanHandler) RemoveCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, ok := h.pathUUID(w, r, "chargeId")
	if !ok {
		return
	}

	if err := h.service.RemoveCharge(r.Context(), mux.Vars(r)["loanId"], chargeID); err != nil {
		h.fail(w, r, err)
		return
	}

	response.NoContent(w)
}

// Reschedule handles POST /api/v1/loans/{loanId}/reschedule
func (h *LoanHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var request domain.RescheduleRequest
	if !h.decode(w, r, &request, false) {
		return
	}

	loan, err := h.service.Reschedule(r.Context(), mux.Vars(r)["loanId"], &request)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response.Success(w, domain.ScheduleResponse{LoanID: loan.LoanID, Schedule: loan.Installments})
}

// decode reads and validates the JSON body; optional bodies may be empty
func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, request interface{}, optional bool) bool {
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		if !optional || !errors.Is(err, io.EOF) {
			response.BadRequest(w, "Invalid request body", err)
			return false
		}
	}

	if err := h.validator.Struct(request); err != nil {
		response.BadRequest(w, "Validation failed", err)
		return false
	}
	return true
}

func (h *LoanHandler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "Invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

// fail maps a service error onto an HTTP status
func (h *LoanHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		response.Error(w, status, "Internal server error", nil)
		return
	}

	var be *customError.BusinessError
	errors.As(err, &be)
	response.Error(w, status, be.Message, err)
}

// StatusFor returns the HTTP status for an error: 404 for missing resources,
// 409 for conflicts, 422 for other business rule violations and 500 for
// everything else.
func StatusFor(err error) int {
	code := customError.Code(err)
	switch {
	case code == "", code == customError.ErrCodeDatabaseError, code == customError.ErrCodeCacheError:
		return http.StatusInternalServerError
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case code == customError.ErrCodeLoanLocked,
		code == customError.ErrCodeLoanAlreadyExists,
		code == customError.ErrCodeTransactionReversed:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}
