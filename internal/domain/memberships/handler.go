package memberships

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pet-medical-access/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	// Familia: las corta el dueño; accept lo corta el invitado.
	r.Route("/family/members", func(fr chi.Router) {
		fr.Post("/", inviteMemberHandler(svc))
		fr.Get("/", listMembersHandler(svc))
		fr.Post("/{membershipID}/accept", acceptMemberHandler(svc))
		fr.Post("/{membershipID}/remove", removeMemberHandler(svc))
	})

	// Clínica: las corta el dueño de la clínica (clinic_id = su user id).
	r.Route("/clinics/doctors", func(cr chi.Router) {
		cr.Post("/", registerDoctorHandler(svc))
		cr.Post("/{associationID}/deactivate", deactivateDoctorHandler(svc))
	})
}

type inviteMemberRequest struct {
	MemberUserID string `json:"member_user_id"`
	AccessLevel  string `json:"access_level"` // full | readonly (default readonly)
}

type membershipResponse struct {
	ID            string     `json:"id"`
	FamilyOwnerID string     `json:"family_owner_id"`
	MemberUserID  string     `json:"member_user_id"`
	AccessLevel   string     `json:"access_level"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RemovedAt     *time.Time `json:"removed_at,omitempty"`
}

type registerDoctorRequest struct {
	DoctorUserID   string `json:"doctor_user_id"`
	EmploymentType string `json:"employment_type"` // staff | contractor | locum
}

type associationResponse struct {
	ID             string    `json:"id"`
	DoctorUserID   string    `json:"doctor_user_id"`
	ClinicID       string    `json:"clinic_id"`
	EmploymentType string    `json:"employment_type"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func inviteMemberHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req inviteMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.MemberUserID) == "" {
			http.Error(w, "member_user_id required", http.StatusBadRequest)
			return
		}

		m, err := svc.Invite(r.Context(), InviteInput{
			FamilyOwnerID: claims.UserID,
			MemberUserID:  req.MemberUserID,
			AccessLevel:   AccessLevel(req.AccessLevel),
		})
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toMembershipResponse(m))
	}
}

func listMembersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]membershipResponse, 0, len(items))
		for _, m := range items {
			out = append(out, toMembershipResponse(m))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func acceptMemberHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		membershipID := chi.URLParam(r, "membershipID")
		m, err := svc.Accept(r.Context(), membershipID, claims.UserID)
		if err != nil {
			writeMembershipError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toMembershipResponse(m))
	}
}

func removeMemberHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		membershipID := chi.URLParam(r, "membershipID")
		m, err := svc.Remove(r.Context(), membershipID, claims.UserID)
		if err != nil {
			writeMembershipError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toMembershipResponse(m))
	}
}

func registerDoctorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !hasRole(claims.Roles, "clinic_owner") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var req registerDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.DoctorUserID) == "" {
			http.Error(w, "doctor_user_id required", http.StatusBadRequest)
			return
		}

		a, err := svc.RegisterDoctor(r.Context(), RegisterDoctorInput{
			ClinicID:       claims.UserID,
			DoctorUserID:   req.DoctorUserID,
			EmploymentType: EmploymentType(req.EmploymentType),
		})
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusCreated, toAssociationResponse(a))
	}
}

func deactivateDoctorHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !hasRole(claims.Roles, "clinic_owner") {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		associationID := chi.URLParam(r, "associationID")
		a, err := svc.DeactivateDoctor(r.Context(), associationID, claims.UserID)
		if err != nil {
			writeMembershipError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAssociationResponse(a))
	}
}

func writeMembershipError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case ErrBadState:
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toMembershipResponse(m FamilyMembership) membershipResponse {
	return membershipResponse{
		ID:            m.ID,
		FamilyOwnerID: m.FamilyOwnerID,
		MemberUserID:  m.MemberUserID,
		AccessLevel:   string(m.AccessLevel),
		Status:        string(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		RemovedAt:     m.RemovedAt,
	}
}

func toAssociationResponse(a DoctorClinicAssociation) associationResponse {
	return associationResponse{
		ID:             a.ID,
		DoctorUserID:   a.DoctorUserID,
		ClinicID:       a.ClinicID,
		EmploymentType: string(a.EmploymentType),
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
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
