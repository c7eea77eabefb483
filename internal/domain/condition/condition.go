package condition

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/platform/domain"
)

// Stage is the point in the rental when the condition was recorded.
type Stage string

const (
	StageCheckIn  Stage = "check_in"
	StageCheckOut Stage = "check_out"
)

// IsValid returns true if the stage is recognized.
func (s Stage) IsValid() bool {
	return s == StageCheckIn || s == StageCheckOut
}

// Grade is the reporter's overall assessment.
type Grade string

const (
	GradeExcellent Grade = "excellent"
	GradeGood      Grade = "good"
	GradeFair      Grade = "fair"
	GradeDamaged   Grade = "damaged"
)

// IsValid returns true if the grade is recognized.
func (g Grade) IsValid() bool {
	switch g {
	case GradeExcellent, GradeGood, GradeFair, GradeDamaged:
		return true
	}
	return false
}

const maxPhotos = 20

// Report records the state of the rented item at handover or return.
type Report struct {
	id         uuid.UUID
	bookingID  uuid.UUID
	reportedBy uuid.UUID
	stage      Stage
	grade      Grade
	notes      string
	photoURLs  []string
	createdAt  time.Time
}

// NewReport creates a condition report.
func NewReport(bookingID, reportedBy uuid.UUID, stage Stage, grade Grade, notes string, photoURLs []string) (*Report, error) {
	if !stage.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid condition stage: %s", stage))
	}
	if !grade.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid condition grade: %s", grade))
	}
	if len(photoURLs) > maxPhotos {
		return nil, domain.NewValidationError(fmt.Sprintf("at most %d photos per report", maxPhotos))
	}
	urls := make([]string, 0, len(photoURLs))
	for _, u := range photoURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			return nil, domain.NewValidationError("photo URL cannot be empty")
		}
		urls = append(urls, u)
	}
	if grade == GradeDamaged && strings.TrimSpace(notes) == "" {
		return nil, domain.NewValidationError("notes are required when reporting damage")
	}

	return &Report{
		id:         uuid.New(),
		bookingID:  bookingID,
		reportedBy: reportedBy,
		stage:      stage,
		grade:      grade,
		notes:      strings.TrimSpace(notes),
		photoURLs:  urls,
		createdAt:  time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a Report from persistence.
func Reconstruct(id, bookingID, reportedBy uuid.UUID, stage Stage, grade Grade, notes string, photoURLs []string, createdAt time.Time) *Report {
	return &Report{
		id:         id,
		bookingID:  bookingID,
		reportedBy: reportedBy,
		stage:      stage,
		grade:      grade,
		notes:      notes,
		photoURLs:  photoURLs,
		createdAt:  createdAt,
	}
}

// Getters.
func (r *Report) ID() uuid.UUID         { return r.id }
func (r *Report) BookingID() uuid.UUID  { return r.bookingID }
func (r *Report) ReportedBy() uuid.UUID { return r.reportedBy }
func (r *Report) Stage() Stage          { return r.stage }
func (r *Report) Grade() Grade          { return r.grade }
func (r *Report) Notes() string         { return r.notes }
func (r *Report) PhotoURLs() []string   { return append([]string(nil), r.photoURLs...) }
func (r *Report) CreatedAt() time.Time  { return r.createdAt }
