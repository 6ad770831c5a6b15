package serviceorder

import (
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

// Handler wires HTTP endpoints for service orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the service-order handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/orders", h.create)
	r.Get("/orders", h.list)
	r.Get("/orders/{number}", h.get)
	r.Patch("/orders/{number}/status", h.updateStatus)
	r.Post("/orders/{number}/parts", h.addParts)
	r.Post("/orders/{number}/payment", h.pay)
}

type createRequest struct {
	DateIssued   time.Time `json:"date_issued" validate:"required"`
	CustomerName string    `json:"customer_name" validate:"required,max=255"`
	Description  string    `json:"description" validate:"required,max=255"`
	PhoneNumber  string    `json:"phone_number" validate:"required,max=15"`
	PhoneType    string    `json:"phone_type" validate:"required,max=30"`
	Address      string    `json:"address" validate:"required,max=160"`
	UserID       int64     `json:"user_id" validate:"required"`
	WarehouseID  int64     `json:"warehouse_id" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		DateIssued:   req.DateIssued,
		CustomerName: req.CustomerName,
		Description:  req.Description,
		PhoneNumber:  req.PhoneNumber,
		PhoneType:    req.PhoneType,
		Address:      req.Address,
		UserID:       req.UserID,
		WarehouseID:  req.WarehouseID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.List(r.Context(), r.URL.Query().Get("search"), shared.ParsePage(r))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, parts, err := h.service.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "parts": parts})
}

type statusRequest struct {
	Status       string `json:"status" validate:"required"`
	TechnicianID int64  `json:"technician_id" validate:"required"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	order, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "number"), Status(req.Status), req.TechnicianID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type partLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
	UnitPrice int64 `json:"unit_price" validate:"gte=0"`
}

type addPartsRequest struct {
	Date    time.Time         `json:"date" validate:"required"`
	Lines   []partLineRequest `json:"lines" validate:"required,min=1,dive"`
	ActorID int64             `json:"actor_id" validate:"required"`
}

func (h *Handler) addParts(w http.ResponseWriter, r *http.Request) {
	var req addPartsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	lines := make([]PartLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, PartLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}
	order, parts, err := h.service.AddParts(r.Context(), AddPartsInput{
		OrderNumber: chi.URLParam(r, "number"),
		Date:        req.Date,
		Lines:       lines,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "parts": parts})
}

type payRequest struct {
	Date    time.Time `json:"date" validate:"required"`
	Payment string    `json:"payment" validate:"required"`
	DueDate time.Time `json:"due_date"`
	ActorID int64     `json:"actor_id" validate:"required"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req payRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	order, entry, err := h.service.Pay(r.Context(), PayInput{
		OrderNumber: chi.URLParam(r, "number"),
		Date:        req.Date,
		Payment:     PaymentMethod(req.Payment),
		DueDate:     req.DueDate,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "entry": entry})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, inventory.ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidPart),
		errors.Is(err, ErrInvalidPayment), errors.Is(err, ErrContactRequired),
		errors.Is(err, ErrNoParts):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	case errors.Is(err, ErrOrderClosed), errors.Is(err, inventory.ErrNegativeStock):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("service order request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
