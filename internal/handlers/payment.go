package handlers

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"excursion-booking/internal/middleware"
	"excursion-booking/internal/models"
	"excursion-booking/internal/services"
)

// PaymentHandler handles gateway callbacks and payment status queries
type PaymentHandler struct {
	paymentService   services.PaymentServiceInterface
	paymentResultURL string
	logger           zerolog.Logger
}

// NewPaymentHandler creates a new payment handler. Completed callbacks are
// redirected to paymentResultURL with the payment token appended.
func NewPaymentHandler(paymentService services.PaymentServiceInterface, paymentResultURL string, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService:   paymentService,
		paymentResultURL: paymentResultURL,
		logger:           logger.With().Str("component", "payment_handler").Logger(),
	}
}

// PaymentReturn handles the cardholder's return from the gateway. The gateway
// sends its result either as query parameters or as a form post.
func (h *PaymentHandler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, r, h.logger, &models.Error{Kind: models.ErrInvalidInput, Message: "invalid payment response"})
		return
	}

	params := make(map[string]string, len(r.Form))
	for key, values := range r.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	h.logger.Info().
		Str("request_id", middleware.GetRequestID(r.Context())).
		Str("order_number", params["ORDERNUMBER"]).
		Str("prcode", params["PRCODE"]).
		Str("srcode", params["SRCODE"]).
		Msg("Payment response received")

	payment, err := h.paymentService.ProcessPaymentResult(r.Context(), params)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	http.Redirect(w, r, h.resultURL(payment.Token), http.StatusSeeOther)
}

// GetStatus returns the state of a payment attempt by its public token
func (h *PaymentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.paymentService.GetPaymentStatus(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, status)
}

// Retry opens a new gateway attempt for an unpaid payment
func (h *PaymentHandler) Retry(w http.ResponseWriter, r *http.Request) {
	result, err := h.paymentService.RetryPayment(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

func (h *PaymentHandler) resultURL(token string) string {
	u, err := url.Parse(h.paymentResultURL)
	if err != nil {
		return h.paymentResultURL + "?token=" + url.QueryEscape(token)
	}
	query := u.Query()
	query.Set("token", token)
	u.RawQuery = query.Encode()
	return u.String()
}
