package event

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/event/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Handler exposes HTTP endpoints for events.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req entity.CreateCommand
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	e, err := h.svc.Create(r.Context(), userID, req)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, e)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, st)
}

// List supports ?category=&authorId=&from=&to=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	out := make([]*entity.Event, 0)
	for e, err := range h.svc.List(r.Context(), f) {
		if err != nil {
			utilities.WriteError(w, h.logger, err)
			return
		}
		out = append(out, e)
	}
	utilities.WriteJSON(w, http.StatusOK, out)
}

func filterFromQuery(r *http.Request) (entity.Filter, error) {
	const op = "event.List"
	q := r.URL.Query()
	f := entity.Filter{
		Category: q.Get("category"),
		AuthorID: q.Get("authorId"),
		Limit:    defaultListLimit,
	}
	fields := map[string]string{}
	if v := q.Get("from"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			fields["from"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			f.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			fields["to"] = "must be RFC3339 or YYYY-MM-DD"
		} else {
			f.To = &t
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			fields["limit"] = "must be between 1 and " + strconv.Itoa(maxListLimit)
		} else {
			f.Limit = n
		}
	}
	if len(fields) > 0 {
		return entity.Filter{}, apperror.Validation(op, "invalid query", fields)
	}
	return f, nil
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req entity.UpdateCommand
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	e, err := h.svc.Update(r.Context(), userID, r.PathValue("id"), req)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := h.svc.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
