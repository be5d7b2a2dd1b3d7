package handler

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/segyhp/servicing-engine/pkg/response"
)

// NewRouter wires the health checks and the loan API
func NewRouter(loanHandler *LoanHandler, healthHandler *HealthHandler, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(logger), response.CORSMiddleware)

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	// API routes
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/loans", loanHandler.CreateLoan).Methods("POST")
	api.HandleFunc("/loans/{loanId}", loanHandler.GetLoan).Methods("GET")
	api.HandleFunc("/loans/{loanId}/schedule", loanHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/loans/{loanId}/outstanding", loanHandler.GetOutstanding).Methods("GET")
	api.HandleFunc("/loans/{loanId}/delinquent", loanHandler.IsDelinquent).Methods("GET")
	api.HandleFunc("/loans/{loanId}/payment", loanHandler.MakePayment).Methods("POST")
	api.HandleFunc("/loans/{loanId}/transactions", loanHandler.PostTransaction).Methods("POST")
	api.HandleFunc("/loans/{loanId}/transactions/{transactionId}/reverse", loanHandler.ReverseTransaction).Methods("POST")
	api.HandleFunc("/loans/{loanId}/charges", loanHandler.AddCharge).Methods("POST")
	api.HandleFunc("/loans/{loanId}/charges/{chargeId}", loanHandler.UpdateCharge).Methods("PUT")
	api.HandleFunc("/loans/{loanId}/charges/{chargeId}", loanHandler.RemoveCharge).Methods("DELETE")
	api.HandleFunc("/loans/{loanId}/reschedule", loanHandler.Reschedule).Methods("POST")

	return router
}
