package finance

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

// Handler wires HTTP endpoints for the finance module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the finance handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/bills", h.createBill)
	r.Post("/payments", h.recordPayment)
	r.Get("/operations/{id}/outstanding", h.outstanding)
	r.Post("/operations/{id}/void", h.voidOperation)
	r.Get("/contacts/{id}/records", h.listByContact)
	r.Get("/outstanding", h.listOutstanding)
}

type billRequest struct {
	Type        string    `json:"type" validate:"required"`
	OperationID string    `json:"operation_id" validate:"required"`
	ContactID   int64     `json:"contact_id" validate:"required"`
	EntryID     int64     `json:"entry_id"`
	DateIssued  time.Time `json:"date_issued" validate:"required"`
	DueDate     time.Time `json:"due_date"`
	BillAmount  int64     `json:"bill_amount" validate:"required,gt=0"`
	ActorID     int64     `json:"actor_id" validate:"required"`
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	opID, err := uuid.Parse(req.OperationID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "operation_id must be a UUID")
		return
	}
	rec, err := h.service.CreateBill(r.Context(), BillInput{
		Type:        RecordType(req.Type),
		OperationID: opID,
		ContactID:   req.ContactID,
		EntryID:     req.EntryID,
		DateIssued:  req.DateIssued,
		DueDate:     req.DueDate,
		BillAmount:  req.BillAmount,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

type paymentRequest struct {
	OperationID string    `json:"operation_id" validate:"required"`
	EntryID     int64     `json:"entry_id"`
	Date        time.Time `json:"date" validate:"required"`
	Amount      int64     `json:"amount" validate:"required,gt=0"`
	ActorID     int64     `json:"actor_id" validate:"required"`
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	opID, err := uuid.Parse(req.OperationID)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "operation_id must be a UUID")
		return
	}
	rec, err := h.service.RecordPayment(r.Context(), PaymentInput{
		OperationID: opID,
		EntryID:     req.EntryID,
		Date:        req.Date,
		Amount:      req.Amount,
		ActorID:     req.ActorID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	opID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "operation id must be a UUID")
		return
	}
	amount, err := h.service.Outstanding(r.Context(), opID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"outstanding": amount})
}

type voidRequest struct {
	ActorID int64 `json:"actor_id" validate:"required"`
}

func (h *Handler) voidOperation(w http.ResponseWriter, r *http.Request) {
	opID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "operation id must be a UUID")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	voided, err := h.service.VoidOperation(r.Context(), opID, req.ActorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"voided": voided})
}

func (h *Handler) listByContact(w http.ResponseWriter, r *http.Request) {
	contactID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "contact id must be numeric")
		return
	}
	rows, err := h.service.ListByContact(r.Context(), contactID, RecordType(r.URL.Query().Get("type")))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) listOutstanding(w http.ResponseWriter, r *http.Request) {
	asOf, err := time.Parse("2006-01-02", r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "as_of must be YYYY-MM-DD")
		return
	}
	rows, err := h.service.ListOutstanding(r.Context(), RecordType(r.URL.Query().Get("type")), asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvoiceSettled), errors.Is(err, ErrOverSettlement), errors.Is(err, ErrCodeConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	default:
		h.logger.Error("finance request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
