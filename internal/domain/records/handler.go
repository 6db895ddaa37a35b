package records

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pet-medical-access/internal/domain/permissions"
	"pet-medical-access/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/pets/{petID}/records", func(rr chi.Router) {
		rr.Post("/", createRecordHandler(svc))
		rr.Get("/", listRecordsHandler(svc))
	})

	r.Route("/records/{recordID}", func(rr chi.Router) {
		rr.Get("/", getRecordHandler(svc))
		rr.Patch("/", amendRecordHandler(svc))
	})
}

type createRecordRequest struct {
	Kind       string  `json:"kind"`
	Title      string  `json:"title"`
	Notes      string  `json:"notes"`
	OccurredAt string  `json:"occurred_at"` // RFC3339
	Details    Details `json:"details"`
}

type amendRecordRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Title   *string  `json:"title"`
	Notes   *string  `json:"notes"`
	Details *Details `json:"details"`
}

type recordResponse struct {
	ID              string    `json:"id"`
	PetID           string    `json:"pet_id"`
	Kind            Kind      `json:"kind"`
	Title           string    `json:"title"`
	Notes           string    `json:"notes"`
	Details         Details   `json:"details"`
	OccurredAt      time.Time `json:"occurred_at"`
	RecordedAt      time.Time `json:"recorded_at"`
	CreatedByUserID string    `json:"created_by_user_id"`
	CreatedByRole   string    `json:"created_by_role"`
	ClinicID        string    `json:"clinic_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func createRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, "occurred_at must be RFC3339", http.StatusBadRequest)
			return
		}

		petID := chi.URLParam(r, "petID")
		rec, err := svc.Create(r.Context(), actor, petID, CreateInput{
			Kind:       Kind(strings.TrimSpace(req.Kind)),
			Title:      req.Title,
			Notes:      req.Notes,
			OccurredAt: occurredAt,
			Details:    req.Details,
		})
		if err != nil {
			writeRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

func listRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		filter, err := parseListFilter(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		petID := chi.URLParam(r, "petID")
		items, err := svc.ListByPet(r.Context(), actor, petID, filter)
		if err != nil {
			writeRecordError(w, err)
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, toRecordResponse(rec))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		recordID := chi.URLParam(r, "recordID")
		rec, err := svc.GetByID(r.Context(), actor, recordID)
		if err != nil {
			writeRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func amendRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req amendRecordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		recordID := chi.URLParam(r, "recordID")
		rec, err := svc.Amend(r.Context(), actor, recordID, AmendInput{
			Title:   req.Title,
			Notes:   req.Notes,
			Details: req.Details,
		})
		if err != nil {
			writeRecordError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toRecordResponse(rec))
	}
}

func actorFromRequest(r *http.Request) (permissions.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		return permissions.Actor{}, false
	}
	return permissions.Actor{
		ID:    claims.UserID,
		Roles: permissions.ParseRoles(claims.Roles),
	}, true
}

// parseListFilter: kind=CSV, from/to=RFC3339 o YYYY-MM-DD, q=texto, limit=int.
func parseListFilter(q map[string][]string) (ListFilter, error) {
	get := func(key string) string {
		if vs := q[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	var filter ListFilter

	if raw := get("kind"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				filter.Kinds = append(filter.Kinds, Kind(part))
			}
		}
	}

	if raw := get("from"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.From = &t
	}
	if raw := get("to"); raw != "" {
		t, err := parseTimeParam(raw)
		if err != nil {
			return ListFilter{}, err
		}
		filter.To = &t
	}

	filter.Query = get("q")

	if raw := get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return ListFilter{}, errBadLimit
		}
		filter.Limit = n
	}

	return filter, nil
}

var (
	errBadTime  = jsonParamError("from/to must be RFC3339 or YYYY-MM-DD")
	errBadLimit = jsonParamError("limit must be a non-negative integer")
)

type jsonParamError string

func (e jsonParamError) Error() string { return string(e) }

func parseTimeParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Time{}, errBadTime
}

func writeRecordError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toRecordResponse(rec Record) recordResponse {
	return recordResponse{
		ID:              rec.ID,
		PetID:           rec.PetID,
		Kind:            rec.Kind,
		Title:           rec.Title,
		Notes:           rec.Notes,
		Details:         rec.Details,
		OccurredAt:      rec.OccurredAt,
		RecordedAt:      rec.RecordedAt,
		CreatedByUserID: rec.CreatedByUserID,
		CreatedByRole:   rec.CreatedByRole,
		ClinicID:        rec.ClinicID,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
