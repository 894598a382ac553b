// internal/registration/handler.go
package registration

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the registration endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/registrations", h.handleRegister)
	r.Post("/registrations/rate", h.handleRate)
	r.Delete("/registrations/{eventID}", h.handleCancel)
	r.Get("/registrations/member/{memberID}", h.handleListForMember)
	return r
}

// writeError renders a coded error body so callers can branch on stable codes.
func writeError(w http.ResponseWriter, err error) {
	code := CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(code))
	json.NewEncoder(w).Encode(map[string]string{
		"code":    string(code),
		"message": err.Error(),
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID uuid.UUID `json:"member_id"`
		EventID  uuid.UUID `json:"event_id"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reg, err := h.service.Register(r.Context(), req.MemberID, req.EventID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(reg)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
	if err != nil {
		http.Error(w, "invalid event ID", http.StatusBadRequest)
		return
	}
	memberID, err := uuid.Parse(r.URL.Query().Get("member_id"))
	if err != nil {
		http.Error(w, "invalid member ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Cancel(r.Context(), memberID, eventID); err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"message": "registration cancelled"})
}

func (h *Handler) handleRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID uuid.UUID `json:"member_id"`
		EventID  uuid.UUID `json:"event_id"`
		Rating   int       `json:"rating"`
		Feedback string    `json:"feedback"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "rating must be between 1 and 5", http.StatusBadRequest)
		return
	}
	if len(req.Feedback) > 1000 {
		http.Error(w, "feedback must be at most 1000 characters", http.StatusBadRequest)
		return
	}

	reg, err := h.service.Rate(r.Context(), req.MemberID, req.EventID, req.Rating, req.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(reg)
}

func (h *Handler) handleListForMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		http.Error(w, "invalid member ID", http.StatusBadRequest)
		return
	}

	regs, err := h.service.ListForMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	json.NewEncoder(w).Encode(regs)
}
