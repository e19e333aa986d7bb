package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mfsreconcile/golang_services/internal/payment_service/app"
	"github.com/mfsreconcile/golang_services/internal/payment_service/auth"
	"github.com/mfsreconcile/golang_services/internal/payment_service/domain"
)

// Header names for ingestion credentials.
const (
	HeaderAPIKey          = "X-API-Key"
	HeaderSignature       = "X-Signature"
	HeaderTwilioSignature = "X-Twilio-Signature"
)

// HandleIngest accepts a forwarded SMS. A request carrying X-Signature is
// treated as an api source unless the body names one.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestSMSRequest
	body, err := readBody(w, r, MaxRequestBodySize, &req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, r, h.logger, validationFailure(err))
		return
	}

	source := domain.IngestSource(req.Source)
	if source == "" {
		source = domain.IngestForwarderApp
		if r.Header.Get(HeaderSignature) != "" {
			source = domain.IngestAPI
		}
	}
	cred := auth.Credential{
		APIKey:     r.Header.Get(HeaderAPIKey),
		Signature:  r.Header.Get(HeaderSignature),
		Body:       body,
		RemoteAddr: r.RemoteAddr,
	}
	h.ingest(w, r, app.IngestRequest{
		Source:     source,
		Sender:     req.Sender,
		Message:    req.Message,
		ReceivedAt: derefTime(req.ReceivedAt),
	}, cred)
}

// HandleTwilio accepts the carrier's form-encoded inbound SMS webhook.
func (h *Handler) HandleTwilio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := r.ParseForm(); err != nil {
		writeError(w, r, h.logger, domain.NewValidationError("body", "invalid form"))
		return
	}
	cred := auth.Credential{
		Signature:  r.Header.Get(HeaderTwilioSignature),
		URL:        requestURL(r),
		Params:     r.PostForm,
		RemoteAddr: r.RemoteAddr,
	}
	h.ingest(w, r, app.IngestRequest{
		Source:  domain.IngestCarrierWebhook,
		Sender:  r.PostForm.Get("From"),
		Message: r.PostForm.Get("Body"),
	}, cred)
}

// HandleManualEntry lets the merchant paste a message by hand. The JWT
// middleware has already identified the merchant.
func (h *Handler) HandleManualEntry(w http.ResponseWriter, r *http.Request) {
	var req IngestSMSRequest
	if _, err := readBody(w, r, MaxRequestBodySize, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, r, h.logger, validationFailure(err))
		return
	}
	merchant, _ := auth.MerchantFromContext(r.Context())
	h.ingest(w, r, app.IngestRequest{
		Source:     domain.IngestManualEntry,
		Sender:     req.Sender,
		Message:    req.Message,
		ReceivedAt: derefTime(req.ReceivedAt),
	}, auth.Credential{Merchant: merchant, RemoteAddr: r.RemoteAddr})
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, req app.IngestRequest, cred auth.Credential) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "source", req.Source)

	res, err := h.ingestor.Receive(ctx, req, cred)
	if err != nil {
		if !errors.Is(err, domain.ErrAuthentication) && !errors.Is(err, domain.ErrValidation) {
			logger.ErrorContext(ctx, "SMS ingestion failed", "error", err)
		}
		writeError(w, r, logger, err)
		return
	}

	resp := IngestSMSResponse{
		SMSLogID: res.Log.ID,
		Parsed: ParsedSMS{
			Method:        string(res.Parsed.Method),
			TransactionID: res.Parsed.TransactionID,
			Sender:        res.Parsed.SenderNumber,
			PaymentLike:   res.Parsed.IsPaymentLike,
		},
		Matched:      res.Match.Matched(),
		MatchOutcome: string(res.Match.Outcome),
	}
	if res.Parsed.Amount.Valid {
		amount := res.Parsed.Amount.Decimal
		resp.Parsed.Amount = &amount
	}
	if res.Match.Matched() {
		resp.MatchedPaymentID = res.Match.PaymentID
	}
	writeJSON(w, http.StatusOK, resp)
}

// requestURL rebuilds the URL the carrier signed. Behind a proxy that
// rewrites the host, configure the authenticator's BaseURL instead.
func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
