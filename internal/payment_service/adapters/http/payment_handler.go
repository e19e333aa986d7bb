package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
	"github.com/mfsreconcile/golang_services/internal/payment_service/parser"
	"github.com/mfsreconcile/golang_services/internal/platform/vault"
)

func (h *Handler) HandleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req SubmitPaymentRequest
	if _, err := readBody(w, r, MaxPaymentBodySize, &req); err != nil {
		writeError(w, r, logger, err)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		writeError(w, r, logger, validationFailure(err))
		return
	}

	draft := domain.PaymentDraft{
		Method:        domain.Method(req.Method),
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		SenderNumber:  req.SenderNumber,
		OrderID:       req.OrderID,
		CustomerEmail: req.CustomerEmail,
	}
	if len(req.ProofImage) > 0 {
		draft.Proof = &domain.Attachment{Data: req.ProofImage, ContentType: req.ProofContentType}
	}

	p, match, err := h.submitter.Submit(ctx, draft)
	if err != nil {
		writeError(w, r, logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitPaymentResponse{
		PaymentID:    p.ID,
		Status:       string(p.Status),
		MatchOutcome: string(match.Outcome),
	})
}

func (h *Handler) HandleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	p, err := h.payments.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PaymentResponse{
		PaymentID:          p.ID,
		Status:             string(p.Status),
		Method:             string(p.Method),
		TransactionID:      p.TransactionID,
		Amount:             p.Amount,
		Currency:           p.Currency,
		Sender:             vault.MaskPhone(p.SenderNumber),
		VerificationSource: string(p.VerificationSource),
		VerifiedAt:         p.VerifiedAt,
		OrderID:            p.OrderID,
		CreatedAt:          p.CreatedAt,
	})
}

// HandleVerifyPayment applies a merchant decision. A payment that already
// left pending answers 200 with already_processed set.
func (h *Handler) HandleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	var req VerifyPaymentRequest
	if _, err := readBody(w, r, MaxRequestBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validate.StructCtx(ctx, req); err != nil {
		writeError(w, r, h.logger, validationFailure(err))
		return
	}

	merchant, _ := auth.MerchantFromContext(ctx)
	applied, err := h.payments.ManualVerify(ctx, id, req.Action, req.Notes, merchant)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(ctx, "Manual verification",
		"request_id", chi_middleware.GetReqID(ctx),
		"payment_id", id,
		"action", req.Action,
		"merchant", merchant,
		"applied", applied,
	)
	writeJSON(w, http.StatusOK, VerifyPaymentResponse{Success: applied, AlreadyProcessed: !applied})
}

func (h *Handler) HandlePaymentActivity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paymentID(w, r)
	if !ok {
		return
	}
	entries, err := h.payments.Activity(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityResponse{
			ID:        e.ID,
			Action:    e.Action,
			OldStatus: string(e.OldStatus),
			NewStatus: string(e.NewStatus),
			Actor:     e.Actor,
			Notes:     e.Notes,
			SMSLogID:  e.SMSLogID,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePaymentMethods lists what a checkout page can offer.
func (h *Handler) HandlePaymentMethods(w http.ResponseWriter, _ *http.Request) {
	providers := parser.Providers()
	out := make([]PaymentMethodResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, PaymentMethodResponse{
			Method:       string(p.Method),
			DisplayName:  p.DisplayName,
			Instructions: p.Instructions,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleRotateSecret(w http.ResponseWriter, r *http.Request) {
	merchant, _ := auth.MerchantFromContext(r.Context())
	secret, err := h.secrets.Rotate(r.Context(), merchant)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RotateSecretResponse{Secret: secret})
}

func (h *Handler) HandleRunReconciliation(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Run(r.Context())
	if errors.Is(err, app.ErrSweepInProgress) {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "sweep_in_progress", Message: err.Error()})
		return
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) paymentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "paymentID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, h.logger, domain.NewValidationError("payment_id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}
