package handler

import (
	"net/http"

	"github.com/samuelysliu/pdf-editor/internal/api/v1/dto"
	"github.com/samuelysliu/pdf-editor/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PaymentHandler serves quota purchases and subscriptions.
type PaymentHandler struct {
	payments      service.PaymentService
	subscriptions service.SubscriptionService
	validate      *validator.Validate
	logger        zerolog.Logger
}

func NewPaymentHandler(payments service.PaymentService, subscriptions service.SubscriptionService, validate *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		payments:      payments,
		subscriptions: subscriptions,
		validate:      validate,
		logger:        logger.With().Str("handler", "PaymentHandler").Logger(),
	}
}

func (h *PaymentHandler) RegisterRoutes(r chi.Router, authMw func(http.Handler) http.Handler) {
	r.Get("/payment/products", h.products)
	r.Group(func(r chi.Router) {
		r.Use(authMw)
		r.Post("/payment/google-play/validate", h.validateGooglePlay)
		r.Get("/payment/transactions", h.transactions)
		r.Post("/payment/mock-purchase", h.mockPurchase)
		r.Get("/payment/subscription", h.subscriptionStatus)
		r.Post("/payment/subscription/activate", h.activateSubscription)
		r.Post("/payment/subscription/{id}/cancel", h.cancelSubscription)
	})
}

func (h *PaymentHandler) writePayment(w http.ResponseWriter, r *http.Request, res service.PaymentResult, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	switch res := res.(type) {
	case service.PaymentCompleted:
		writeOK(w, http.StatusOK, "Purchase verified and quota added", dto.PaymentResponseDTO{
			TransactionID:  res.Transaction.TransactionID,
			ProductID:      res.Transaction.ProductID,
			QuotaAdded:     res.QuotaAdded,
			QuotaRemaining: res.QuotaRemaining,
		})
	case service.PaymentAlreadyProcessed:
		// Replays are answered with the original transaction.
		writeOK(w, http.StatusOK, "Transaction already processed", dto.PaymentResponseDTO{
			TransactionID:    res.Transaction.TransactionID,
			ProductID:        res.Transaction.ProductID,
			QuotaAdded:       res.Transaction.QuotaAdded,
			AlreadyProcessed: true,
		})
	}
}

// validateGooglePlay godoc
// @Summary Verify a Google Play purchase
// @Description Verifies the receipt and credits the product's quota once per transaction id.
// @Tags payment
// @Accept json
// @Produce json
// @Param purchase body dto.GooglePlayValidationRequestDTO true "Purchase"
// @Success 200 {object} dto.PaymentResponseDTO
// @Failure 400 {object} dto.Envelope
// @Failure 409 {object} dto.Envelope
// @Router /payment/google-play/validate [post]
func (h *PaymentHandler) validateGooglePlay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.GooglePlayValidationRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	res, err := h.payments.ValidatePurchase(r.Context(), userID, req.TransactionID, req.ProductID, req.ReceiptData)
	h.writePayment(w, r, res, err)
}

func (h *PaymentHandler) mockPurchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.MockPurchaseRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	res, err := h.payments.MockPurchase(r.Context(), userID, req.ProductID)
	h.writePayment(w, r, res, err)
}

// products godoc
// @Summary List quota products
// @Tags payment
// @Produce json
// @Success 200 {array} service.ProductView
// @Router /payment/products [get]
func (h *PaymentHandler) products(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "", map[string]any{"products": h.payments.Products()})
}

func (h *PaymentHandler) transactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit", service.DefaultListLimit)
	if !ok {
		return
	}
	txs, err := h.payments.TransactionHistory(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := dto.TransactionListDTO{Transactions: make([]dto.TransactionDTO, len(txs)), Total: len(txs)}
	for i, t := range txs {
		out.Transactions[i] = dto.TransactionDTO{
			TransactionID: t.TransactionID,
			ProductID:     t.ProductID,
			Amount:        t.Amount,
			QuotaAdded:    t.QuotaAdded,
			Status:        t.Status,
			CreatedAt:     t.CreatedAt,
		}
	}
	writeOK(w, http.StatusOK, "", out)
}

func (h *PaymentHandler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	st, err := h.subscriptions.Status(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := dto.SubscriptionStatusDTO{History: make([]dto.SubscriptionDTO, len(st.History))}
	if st.Active != nil {
		a := dto.NewSubscriptionDTO(st.Active)
		out.Active = &a
	}
	for i := range st.History {
		out.History[i] = dto.NewSubscriptionDTO(&st.History[i])
	}
	writeOK(w, http.StatusOK, "", out)
}

// activateSubscription godoc
// @Summary Activate or extend a subscription
// @Description A repeated transaction id is answered with 409 and the existing subscription.
// @Tags payment
// @Accept json
// @Produce json
// @Param subscription body dto.SubscriptionActivateRequestDTO true "Subscription purchase"
// @Success 201 {object} dto.SubscriptionDTO
// @Failure 409 {object} dto.SubscriptionDTO
// @Router /payment/subscription/activate [post]
func (h *PaymentHandler) activateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req dto.SubscriptionActivateRequestDTO
	if !decodeJSON(w, r, h.validate, &req) {
		return
	}
	act, err := h.subscriptions.ActivateSubscription(r.Context(), userID, service.SubscriptionActivation{
		ProductID:     req.ProductID,
		TransactionID: req.TransactionID,
		Receipt:       req.ReceiptData,
		DurationDays:  req.DurationDays,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	sub := dto.NewSubscriptionDTO(act.Subscription)
	if act.AlreadyProcessed {
		writeJSON(w, http.StatusConflict, dto.Envelope{Error: service.ErrAlreadyProcessed.Error(), Data: sub})
		return
	}
	writeOK(w, http.StatusCreated, "Subscription activated", sub)
}

func (h *PaymentHandler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.subscriptions.Cancel(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeOK(w, http.StatusOK, "Subscription cancelled", dto.NewSubscriptionDTO(sub))
}
