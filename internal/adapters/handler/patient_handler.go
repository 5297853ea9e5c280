package handler

import (
	"net/http"

	"github.com/prescrimed/tenant-access-service/internal/adapters/response"
	"github.com/prescrimed/tenant-access-service/internal/core/domain"
	"github.com/prescrimed/tenant-access-service/internal/core/ports"
)

type PatientHandler struct {
	patients ports.PatientService
}

func NewPatientHandler(patients ports.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

type PatientListResponse struct {
	Patients []domain.Patient `json:"patients"`
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	p, scope, err := requestContext(r)
	if err != nil {
		response.Error(w, err)
		return
	}

	patients, err := h.patients.List(r.Context(), p, scope)
	if err != nil {
		response.Error(w, err)
		return
	}
	if patients == nil {
		patients = []domain.Patient{}
	}
	response.JSON(w, http.StatusOK, PatientListResponse{Patients: patients})
}
