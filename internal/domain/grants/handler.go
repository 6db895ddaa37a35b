package grants

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pet-medical-access/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/pets/{petID}/access", func(ar chi.Router) {
		// Lo corta la clínica/el doctor: dispara el OTP hacia el dueño.
		ar.Post("/request", requestAccessHandler(svc))

		// Lo corta el dueño: canjea el código y nace el grant.
		ar.Post("/grant", grantAccessHandler(svc))

		ar.Get("/", listAccessHandler(svc))
	})

	r.Post("/access/{grantID}/revoke", revokeAccessHandler(svc))

	// Limpieza contable de grants vencidos; también corre por ticker.
	r.Post("/internal/access/sweep", sweepHandler(svc))
}

// otpHandleResponse es todo lo que ve el solicitante. El código nunca viaja
// en esta respuesta: va al dueño por el canal de delivery.
type otpHandleResponse struct {
	OTPID     string    `json:"otp_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type grantAccessRequest struct {
	ClinicID      string `json:"clinic_id"`
	DoctorID      string `json:"doctor_id"` // opcional: vacío = toda la clínica
	Code          string `json:"code"`
	DurationHours int    `json:"duration_hours"`
}

type grantResponse struct {
	ID          string     `json:"id"`
	PetID       string     `json:"pet_id"`
	ClinicID    string     `json:"clinic_id"`
	DoctorID    string     `json:"doctor_id,omitempty"`
	OwnerUserID string     `json:"owner_user_id"`
	Status      Status     `json:"status"`
	GrantedAt   time.Time  `json:"granted_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func requestAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !hasRole(claims.Roles, "doctor") && !hasRole(claims.Roles, "clinic_owner") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		petID := chi.URLParam(r, "petID")
		h, err := svc.RequestAccess(r.Context(), petID, claims.UserID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, otpHandleResponse{
			OTPID:     h.OTPID,
			ExpiresAt: h.ExpiresAt,
		})
	}
}

func grantAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req grantAccessRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		petID := chi.URLParam(r, "petID")
		g, err := svc.GrantAccess(r.Context(), GrantInput{
			PetID:         petID,
			OwnerUserID:   claims.UserID,
			ClinicID:      req.ClinicID,
			DoctorID:      req.DoctorID,
			Code:          req.Code,
			DurationHours: req.DurationHours,
		})
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toGrantResponse(g))
	}
}

func listAccessHandler(svc *Service) http.HandlerFunc {
	// Owner-only: el listado expone el historial completo de accesos.
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		petID := chi.URLParam(r, "petID")
		items, err := svc.ListByPet(r.Context(), petID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		out := make([]grantResponse, 0, len(items))
		for _, g := range items {
			if g.OwnerUserID != claims.UserID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			out = append(out, toGrantResponse(g))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func revokeAccessHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grantID := chi.URLParam(r, "grantID")
		g, err := svc.RevokeAccess(r.Context(), grantID, claims.UserID)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toGrantResponse(g))
	}
}

type sweepResponse struct {
	Expired int `json:"expired"`
}

func sweepHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := svc.SweepExpired(r.Context(), 0)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{Expired: n})
	}
}

func writeGrantError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case ErrInvalidOrExpired:
		// Señal opaca: no distinguimos código incorrecto / usado / vencido.
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toGrantResponse(g Grant) grantResponse {
	return grantResponse{
		ID:          g.ID,
		PetID:       g.PetID,
		ClinicID:    g.ClinicID,
		DoctorID:    g.DoctorID,
		OwnerUserID: g.OwnerUserID,
		Status:      g.Status,
		GrantedAt:   g.GrantedAt,
		ExpiresAt:   g.ExpiresAt,
		RevokedAt:   g.RevokedAt,
		UpdatedAt:   g.UpdatedAt,
	}
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if strings.EqualFold(strings.TrimSpace(r), want) {
			return true
		}
	}
	return false
}

// writeJSON está duplicado intencionalmente en handlers de distintos módulos
// para evitar crear paquetes/helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
