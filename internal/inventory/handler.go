package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arkabooks/arkabooks/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.recordMovement)
	r.Get("/stock", h.currentStock)
	r.Post("/products/{id}/recompute-cost", h.recomputeCost)
	r.Get("/operations/{id}/movements", h.operationMovements)
	r.Post("/operations/{id}/void", h.voidOperation)
}

type movementRequest struct {
	ProductID   int64     `json:"product_id" validate:"required"`
	WarehouseID int64     `json:"warehouse_id" validate:"required"`
	OperationID string    `json:"operation_id"`
	Date        time.Time `json:"date" validate:"required"`
	Quantity    int64     `json:"quantity" validate:"required"`
	UnitCost    int64     `json:"unit_cost" validate:"gte=0"`
	UnitPrice   int64     `json:"unit_price" validate:"gte=0"`
	Type        string    `json:"type" validate:"required"`
	IsInitial   bool      `json:"is_initial"`
	ActorID     int64     `json:"actor_id" validate:"required"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	input := MovementInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Date:        req.Date,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		UnitPrice:   req.UnitPrice,
		Type:        MovementType(req.Type),
		IsInitial:   req.IsInitial,
		ActorID:     req.ActorID,
	}
	if req.OperationID != "" {
		opID, err := uuid.Parse(req.OperationID)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "operation_id must be a UUID")
			return
		}
		input.OperationID = opID
	}
	movement, err := h.service.RecordMovement(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) currentStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err := strconv.ParseInt(q.Get("product_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "product_id required")
		return
	}
	warehouseID, err := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "warehouse_id required")
		return
	}
	stock, err := h.service.CurrentStock(r.Context(), productID, warehouseID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"stock": stock})
}

func (h *Handler) recomputeCost(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "product id must be numeric")
		return
	}
	cost, err := h.service.RecomputeWeightedAverageCost(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"current_cost": cost})
}

func (h *Handler) operationMovements(w http.ResponseWriter, r *http.Request) {
	opID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "operation id must be a UUID")
		return
	}
	movements, err := h.service.MovementsByOperation(r.Context(), opID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

type voidOperationRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}

func (h *Handler) voidOperation(w http.ResponseWriter, r *http.Request) {
	opID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "operation id must be a UUID")
		return
	}
	var req voidOperationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	voided, err := h.service.VoidOperationMovements(r.Context(), opID, req.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"voided": voided})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrMovementNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrServiceProduct), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidUnitCost), errors.Is(err, ErrInvalidMovementType):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
