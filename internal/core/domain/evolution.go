package domain

import (
	"fmt"
	"strings"
	"time"
)

type EvolutionType string

const (
	EvolutionNote       EvolutionType = "evolution"
	EvolutionVitalSigns EvolutionType = "vital_signs"
	EvolutionMedication EvolutionType = "medication"
	EvolutionDressing   EvolutionType = "dressing"
	EvolutionIncident   EvolutionType = "incident"
	EvolutionAdmission  EvolutionType = "admission"
	EvolutionDischarge  EvolutionType = "discharge"
	EvolutionTransfer   EvolutionType = "transfer"
	EvolutionOther      EvolutionType = "other"
)

func ParseEvolutionType(s string) (EvolutionType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EvolutionNote, nil
	}
	switch t := EvolutionType(s); t {
	case EvolutionNote, EvolutionVitalSigns, EvolutionMedication, EvolutionDressing,
		EvolutionIncident, EvolutionAdmission, EvolutionDischarge, EvolutionTransfer, EvolutionOther:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown evolution type %q", ErrInvalidInput, s)
}

type Vitals struct {
	BloodPressure    string   `json:"blood_pressure,omitempty"`
	HeartRate        *int     `json:"heart_rate,omitempty"`
	RespiratoryRate  *int     `json:"respiratory_rate,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	OxygenSaturation *int     `json:"oxygen_saturation,omitempty"`
	Glucose          *int     `json:"glucose,omitempty"`
}

type EvolutionBody struct {
	Type        EvolutionType `json:"type"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
}

// EvolutionRecord is an append-only clinical note. It has no mutators.
type EvolutionRecord struct {
	ID        string        `json:"id"`
	TenantID  string        `json:"tenant_id"`
	PatientID string        `json:"patient_id"`
	AuthorID  string        `json:"author_id"`
	CreatedAt time.Time     `json:"created_at"`
	Body      EvolutionBody `json:"body"`
	Vitals    *Vitals       `json:"vitals,omitempty"`
	Alert     bool          `json:"alert"`
}

type EvolutionFilter struct {
	TenantID  string
	PatientID string
	Type      EvolutionType
	Alert     *bool
	Limit     int
	Offset    int
}
