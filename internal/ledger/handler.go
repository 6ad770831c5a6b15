package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/arkabooks/arkabooks/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the ledger module.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	registry *Registry
	validate *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service, registry *Registry) *Handler {
	return &Handler{logger: logger, service: service, registry: registry, validate: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.postEntry)
	r.Get("/entries", h.findEntries)
	r.Post("/entries/{id}/void", h.voidEntry)
	r.Post("/entries/{id}/reverse", h.reverseEntry)

	r.Get("/accounts", h.listAccounts)
	r.Post("/accounts", h.createAccount)
	r.Get("/accounts/{id}", h.getAccount)
	r.Put("/accounts/{id}", h.updateAccount)
	r.Delete("/accounts/{id}", h.deleteAccount)
	r.Get("/groups/{id}/next-code", h.nextChildCode)
	r.Post("/accounts/{id}/lock", h.lockAccount)
	r.Post("/accounts/{id}/unlock", h.unlockAccount)
	r.Get("/accounts/{id}/balance", h.accountBalance)
	r.Post("/equity-plug/recompute", h.recomputePlug)
}

type postingRequest struct {
	AccountID int64 `json:"account_id" validate:"required"`
	Debit     int64 `json:"debit" validate:"gte=0"`
	Credit    int64 `json:"credit" validate:"gte=0"`
}

type postEntryRequest struct {
	Reference   string           `json:"reference"`
	DateIssued  time.Time        `json:"date_issued" validate:"required"`
	Description string           `json:"description" validate:"max=160"`
	Source      string           `json:"source" validate:"required"`
	WarehouseID int64            `json:"warehouse_id" validate:"required"`
	UserID      int64            `json:"user_id" validate:"required"`
	Postings    []postingRequest `json:"postings" validate:"required,min=2,dive"`
}

func (h *Handler) postEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid entry", validationFields(err))
		return
	}
	input := EntryInput{
		Reference:   req.Reference,
		DateIssued:  req.DateIssued,
		Description: req.Description,
		Source:      SourceType(req.Source),
		WarehouseID: req.WarehouseID,
		UserID:      req.UserID,
	}
	for _, line := range req.Postings {
		input.Postings = append(input.Postings, PostingInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	entry, err := h.service.PostEntry(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) findEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if reference := q.Get("reference"); reference != "" {
		entries, err := h.service.FindByReference(r.Context(), reference)
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, entries)
		return
	}
	accountID, err := strconv.ParseInt(q.Get("account_id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "reference or account_id required")
		return
	}
	from, err := parseDate(q.Get("from"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDate(q.Get("to"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "to must be YYYY-MM-DD")
		return
	}
	entries, err := h.service.FindByAccountAndDateRange(r.Context(), accountID, from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

type voidRequest struct {
	ActorID int64  `json:"actor_id" validate:"required"`
	Reason  string `json:"reason" validate:"max=160"`
}

func (h *Handler) voidEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "entry id must be numeric")
		return
	}
	var req voidRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	entry, err := h.service.VoidEntry(r.Context(), VoidInput{EntryID: id, ActorID: req.ActorID, Reason: req.Reason})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

type reverseRequest struct {
	ActorID     int64     `json:"actor_id" validate:"required"`
	Date        time.Time `json:"date"`
	Description string    `json:"description" validate:"max=160"`
}

func (h *Handler) reverseEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "entry id must be numeric")
		return
	}
	var req reverseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	entry, err := h.service.ReverseEntry(r.Context(), ReverseInput{EntryID: id, ActorID: req.ActorID, Date: req.Date, Description: req.Description})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

type createAccountRequest struct {
	GroupID        int64  `json:"group_id" validate:"required"`
	Name           string `json:"name" validate:"required,max=120"`
	OpeningBalance int64  `json:"opening_balance"`
	IsCashBank     bool   `json:"is_cash_bank"`
	WarehouseID    *int64 `json:"warehouse_id"`
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid account", validationFields(err))
		return
	}
	account, err := h.registry.CreateAccount(r.Context(), CreateAccountInput{
		GroupID:        req.GroupID,
		Name:           req.Name,
		OpeningBalance: req.OpeningBalance,
		IsCashBank:     req.IsCashBank,
		WarehouseID:    req.WarehouseID,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "account id must be numeric")
		return
	}
	account, err := h.registry.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

type updateAccountRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	NormalSide     string `json:"normal_side" validate:"required,oneof=D C"`
	OpeningBalance int64  `json:"opening_balance"`
	IsCashBank     bool   `json:"is_cash_bank"`
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "account id must be numeric")
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.FieldProblem(w, "invalid account", validationFields(err))
		return
	}
	account, err := h.registry.GetAccount(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	account.Name = req.Name
	account.NormalSide = NormalSide(req.NormalSide)
	account.OpeningBalance = req.OpeningBalance
	account.IsCashBank = req.IsCashBank
	if err := h.registry.UpdateAccount(r.Context(), account); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) nextChildCode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "group id must be numeric")
		return
	}
	code, err := h.registry.NextChildCode(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"code": code})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.registry.ListAccounts(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "account id must be numeric")
		return
	}
	if err := h.registry.DeleteAccount(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lockAccount(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, true)
}

func (h *Handler) unlockAccount(w http.ResponseWriter, r *http.Request) {
	h.setLocked(w, r, false)
}

func (h *Handler) setLocked(w http.ResponseWriter, r *http.Request, locked bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "account id must be numeric")
		return
	}
	if locked {
		err = h.registry.LockAccount(r.Context(), id)
	} else {
		err = h.registry.UnlockAccount(r.Context(), id)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) accountBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "account id must be numeric")
		return
	}
	q := r.URL.Query()
	if fromStr := q.Get("from"); fromStr != "" {
		from, err := parseDate(fromStr)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "from must be YYYY-MM-DD")
			return
		}
		to, err := parseDate(q.Get("to"))
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "to must be YYYY-MM-DD")
			return
		}
		balance, err := h.service.BalanceBetween(r.Context(), id, from, endOfDay(to))
		if err != nil {
			h.respondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]int64{"balance": balance})
		return
	}
	asOf, err := parseDate(q.Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "as_of must be YYYY-MM-DD")
		return
	}
	balance, err := h.service.BalanceAsOf(r.Context(), id, endOfDay(asOf))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (h *Handler) recomputePlug(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseDate(r.URL.Query().Get("as_of"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "as_of must be YYYY-MM-DD")
		return
	}
	plug, err := h.service.EquityPlugRecompute(r.Context(), endOfDay(asOf))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"equity_plug": plug})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrEntryNotFound), errors.Is(err, ErrGroupNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicateCode), errors.Is(err, ErrSequenceConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnbalancedEntry), errors.Is(err, ErrEmptyPosting), errors.Is(err, ErrTooFewPostings),
		errors.Is(err, ErrNormalSideImmutable), errors.Is(err, ErrPlugAccountManaged):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Invariant Violation", err.Error())
	case errors.Is(err, ErrAccountLocked), errors.Is(err, ErrAccountInUse),
		errors.Is(err, ErrEntryAlreadyVoided), errors.Is(err, ErrEntryHasDependents):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.logger.Error("ledger request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
	}
	return fields
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
