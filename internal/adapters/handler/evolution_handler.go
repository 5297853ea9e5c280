package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

type EvolutionHandler struct {
	evolutions ports.EvolutionService
}

func NewEvolutionHandler(evolutions ports.EvolutionService) *EvolutionHandler {
	return &EvolutionHandler{evolutions: evolutions}
}

type CreateEvolutionRequest struct {
	PatientID   string         `json:"patient_id" validate:"required,uuid"`
	Type        string         `json:"type" validate:"omitempty,max=32"`
	Title       string         `json:"title" validate:"max=200"`
	Description string         `json:"description" validate:"required,max=10000"`
	Vitals      *domain.Vitals `json:"vitals"`
	Alert       bool           `json:"alert"`
}

type EvolutionListResponse struct {
	Evolutions []domain.EvolutionRecord `json:"evolutions"`
	Total      int                      `json:"total"`
	Offset     int                      `json:"offset"`
}

func (h *EvolutionHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	var req CreateEvolutionRequest
	if err := decode(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	evoType, err := domain.ParseEvolutionType(req.Type)
	if err != nil {
		response.Error(w, err)
		return
	}

	rec, err := h.evolutions.Create(r.Context(), p, scope, ports.CreateEvolutionInput{
		PatientID: req.PatientID,
		Body: domain.EvolutionBody{
			Type:        evoType,
			Title:       req.Title,
			Description: req.Description,
		},
		Vitals: req.Vitals,
		Alert:  req.Alert,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, rec)
}

func (h *EvolutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if !validID(id) {
		response.Error(w, domain.ErrNotFound)
		return
	}

	rec, err := h.evolutions.Get(r.Context(), p, scope, id)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

func (h *EvolutionHandler) List(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	filter, err := parseEvolutionFilter(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	records, total, err := h.evolutions.List(r.Context(), p, scope, filter)
	if err != nil {
		response.Error(w, err)
		return
	}
	if records == nil {
		records = []domain.EvolutionRecord{}
	}
	response.JSON(w, http.StatusOK, EvolutionListResponse{
		Evolutions: records,
		Total:      total,
		Offset:     filter.Offset,
	})
}

// Update answers PUT and PATCH. Records are append-only, so the body is never read.
func (h *EvolutionHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	err = h.evolutions.Update(r.Context(), p, scope, id)
	log.Printf("evolution: %s attempt on %s by user %s rejected", r.Method, id, p.UserID)
	w.Header().Set("Allow", "GET, DELETE")
	response.Error(w, err)
}

func (h *EvolutionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	if !validID(id) {
		response.Error(w, domain.ErrNotFound)
		return
	}

	if err := h.evolutions.Delete(r.Context(), p, scope, id); err != nil {
		response.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseEvolutionFilter(r *http.Request) (domain.EvolutionFilter, error) {
	q := r.URL.Query()
	filter := domain.EvolutionFilter{PatientID: q.Get("patient_id")}

	if filter.PatientID != "" && !validID(filter.PatientID) {
		return filter, fmt.Errorf("%w: patient_id must be a UUID", domain.ErrInvalidInput)
	}
	if v := q.Get("type"); v != "" {
		t, err := domain.ParseEvolutionType(v)
		if err != nil {
			return filter, err
		}
		filter.Type = t
	}
	if v := q.Get("alert"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("%w: alert must be a boolean", domain.ErrInvalidInput)
		}
		filter.Alert = &b
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidInput, name)
		}
		*dst = n
	}
	return filter, nil
}
