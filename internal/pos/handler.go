package pos

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arkabooks/arkabooks/internal/inventory"
	"github.com/arkabooks/arkabooks/internal/platform/httpx"
	"github.com/arkabooks/arkabooks/internal/shared"
)

// IdempotencyChecker rejects replayed cart submissions.
type IdempotencyChecker interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Handler wires HTTP endpoints for cart operations.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	idempotency IdempotencyChecker
	validate    *validator.Validate
}

// NewHandler constructs the pos handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// WithIdempotency enables Idempotency-Key enforcement on cart posts.
func (h *Handler) WithIdempotency(store IdempotencyChecker) *Handler {
	h.idempotency = store
	return h
}

// checkIdempotency consumes the Idempotency-Key header when present. Carts
// posted without a key are accepted as-is.
func (h *Handler) checkIdempotency(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("Idempotency-Key")
	if key == "" || h.idempotency == nil {
		return true
	}
	if err := h.idempotency.CheckAndInsert(r.Context(), key, "pos"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			httpx.Problem(w, http.StatusConflict, "Conflict", "cart already submitted")
			return false
		}
		h.logger.Error("idempotency check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return false
	}
	return true
}

// MountRoutes registers cart routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/purchases", h.purchase)
	r.Post("/sales", h.sale)
}

type cartLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
	UnitValue int64 `json:"unit_value" validate:"gte=0"`
}

type cartRequest struct {
	WarehouseID  int64             `json:"warehouse_id" validate:"required"`
	UserID       int64             `json:"user_id" validate:"required"`
	ContactID    int64             `json:"contact_id"`
	Date         time.Time         `json:"date" validate:"required"`
	Lines        []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
	Discount     int64             `json:"discount" validate:"gte=0"`
	ShippingCost int64             `json:"shipping_cost" validate:"gte=0"`
	Payment      string            `json:"payment" validate:"required"`
	DueDate      time.Time         `json:"due_date"`
}

func (h *Handler) decodeCart(w http.ResponseWriter, r *http.Request) (cartRequest, []inventory.CartLine, bool) {
	var req cartRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return cartRequest{}, nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return cartRequest{}, nil, false
	}
	lines := make([]inventory.CartLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, inventory.CartLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitValue: line.UnitValue})
	}
	return req, lines, true
}

func (h *Handler) purchase(w http.ResponseWriter, r *http.Request) {
	if !h.checkIdempotency(w, r) {
		return
	}
	req, lines, ok := h.decodeCart(w, r)
	if !ok {
		return
	}
	result, err := h.service.Purchase(r.Context(), PurchaseInput{
		WarehouseID:  req.WarehouseID,
		UserID:       req.UserID,
		ContactID:    req.ContactID,
		Date:         req.Date,
		Lines:        lines,
		Discount:     req.Discount,
		ShippingCost: req.ShippingCost,
		Payment:      PaymentMethod(req.Payment),
		DueDate:      req.DueDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) sale(w http.ResponseWriter, r *http.Request) {
	if !h.checkIdempotency(w, r) {
		return
	}
	req, lines, ok := h.decodeCart(w, r)
	if !ok {
		return
	}
	result, err := h.service.Sale(r.Context(), SaleInput{
		WarehouseID:  req.WarehouseID,
		UserID:       req.UserID,
		ContactID:    req.ContactID,
		Date:         req.Date,
		Lines:        lines,
		Discount:     req.Discount,
		ShippingCost: req.ShippingCost,
		Payment:      PaymentMethod(req.Payment),
		DueDate:      req.DueDate,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrInvalidPayment),
		errors.Is(err, ErrContactRequired), errors.Is(err, ErrInvalidLine),
		errors.Is(err, ErrExcessiveDiscount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	case errors.Is(err, inventory.ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("cart request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
