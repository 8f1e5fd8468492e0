package clinical

import (
	"strings"
	"time"

	"github.com/golang-sql/civil"
)

// EMRContext is the encounter window the AI output is verified against.
type EMRContext struct {
	VisitID            string     `json:"visit_id"`
	PatientID          string     `json:"patient_id"`
	AdmissionDate      time.Time  `json:"admission_date"`
	DischargeDate      *time.Time `json:"discharge_date,omitempty"`
	AttendingPhysician string     `json:"attending_physician"`
	RawNotes           string     `json:"raw_notes"`
}

// NewEMRContext validates c and returns it.
func NewEMRContext(c EMRContext) (EMRContext, error) {
	if err := c.Validate(); err != nil {
		return EMRContext{}, err
	}
	return c, nil
}

// Validate checks identifiers and the admission/discharge window.
func (c EMRContext) Validate() error {
	if strings.TrimSpace(c.VisitID) == "" {
		return invalid("EMRContext", "visit_id", "is required")
	}
	if strings.TrimSpace(c.PatientID) == "" {
		return invalid("EMRContext", "patient_id", "is required")
	}
	if c.AdmissionDate.IsZero() {
		return invalid("EMRContext", "admission_date", "is required")
	}
	if c.DischargeDate != nil && c.DischargeDate.Before(c.AdmissionDate) {
		return invalid("EMRContext", "discharge_date", "%s is before admission %s",
			c.DischargeDate.Format(time.RFC3339), c.AdmissionDate.Format(time.RFC3339))
	}
	return nil
}

// AllowedDates returns the date-only set {admission, discharge if present}.
// Dates are taken in each timestamp's own location.
func (c EMRContext) AllowedDates() map[civil.Date]struct{} {
	allowed := map[civil.Date]struct{}{
		civil.DateOf(c.AdmissionDate): {},
	}
	if c.DischargeDate != nil {
		allowed[civil.DateOf(*c.DischargeDate)] = struct{}{}
	}
	return allowed
}
