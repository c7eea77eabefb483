package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/domain/condition"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// RecordConditionRequest holds the data to record the item's condition.
type RecordConditionRequest struct {
	Stage     string   `json:"stage" binding:"required"`
	Grade     string   `json:"grade" binding:"required"`
	Notes     string   `json:"notes"`
	PhotoURLs []string `json:"photo_urls"`
}

// ConditionReportDTO is the API response representation of a condition report.
type ConditionReportDTO struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"booking_id"`
	ReportedBy uuid.UUID `json:"reported_by"`
	Stage      string    `json:"stage"`
	Grade      string    `json:"grade"`
	Notes      string    `json:"notes,omitempty"`
	PhotoURLs  []string  `json:"photo_urls"`
	CreatedAt  time.Time `json:"created_at"`
}

// ConditionService handles condition report use cases.
type ConditionService struct {
	repo     condition.ReportRepository
	bookings bookingDomain.BookingRepository
	logger   *zap.Logger
}

// NewConditionService creates a new ConditionService.
func NewConditionService(repo condition.ReportRepository, bookings bookingDomain.BookingRepository, logger *zap.Logger) *ConditionService {
	return &ConditionService{repo: repo, bookings: bookings, logger: logger}
}

// RecordCondition stores a condition report for a booking. Check-in reports are
// accepted on confirmed or in-progress bookings, check-out reports on in-progress or
// completed ones.
func (s *ConditionService) RecordCondition(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, req RecordConditionRequest) (*ConditionReportDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.IsParty(actor) {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}

	stage := condition.Stage(req.Stage)
	if !stageAllowed(stage, bk.Status()) {
		return nil, domain.NewValidationError("condition cannot be recorded for a " + string(bk.Status()) + " booking at " + req.Stage)
	}

	report, err := condition.NewReport(bookingID, actor.ID, stage, condition.Grade(req.Grade), req.Notes, req.PhotoURLs)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Info("condition recorded",
		zap.String("booking_id", bookingID.String()),
		zap.String("stage", req.Stage),
		zap.String("grade", req.Grade),
	)

	result := toConditionReportDTO(report)
	return &result, nil
}

// ListConditionReports returns all condition reports for a booking.
func (s *ConditionService) ListConditionReports(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) ([]ConditionReportDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.IsParty(actor) {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}

	reports, err := s.repo.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	dtos := make([]ConditionReportDTO, len(reports))
	for i, r := range reports {
		dtos[i] = toConditionReportDTO(r)
	}
	return dtos, nil
}

func stageAllowed(stage condition.Stage, status bookingDomain.BookingStatus) bool {
	switch stage {
	case condition.StageCheckIn:
		return status == bookingDomain.StatusConfirmed || status == bookingDomain.StatusInProgress
	case condition.StageCheckOut:
		return status == bookingDomain.StatusInProgress || status == bookingDomain.StatusCompleted
	}
	// unknown stages are rejected by NewReport
	return true
}

func toConditionReportDTO(r *condition.Report) ConditionReportDTO {
	return ConditionReportDTO{
		ID:         r.ID(),
		BookingID:  r.BookingID(),
		ReportedBy: r.ReportedBy(),
		Stage:      string(r.Stage()),
		Grade:      string(r.Grade()),
		Notes:      r.Notes(),
		PhotoURLs:  r.PhotoURLs(),
		CreatedAt:  r.CreatedAt(),
	}
}
