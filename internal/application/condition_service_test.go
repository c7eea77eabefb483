package application

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/domain"
)

func TestRecordCondition(t *testing.T) {
	f := newFixture(nil)
	reports := &fakeReportRepo{}
	svc := NewConditionService(reports, f.repo, zap.NewNop())

	pending := createBooking(t, f, 5, 1)
	_, err := svc.RecordCondition(context.Background(), f.renterActor(), pending.ID, RecordConditionRequest{Stage: "check_in", Grade: "good"})
	requireCode(t, err, domain.CodeValidation)

	dto := confirmedBooking(t, f, 10, 2)
	_, err = svc.RecordCondition(context.Background(), bookingDomain.Actor{ID: uuid.New()}, dto.ID, RecordConditionRequest{Stage: "check_in", Grade: "good"})
	requireCode(t, err, domain.CodeForbidden)

	_, err = svc.RecordCondition(context.Background(), f.renterActor(), dto.ID, RecordConditionRequest{Stage: "check_out", Grade: "good"})
	requireCode(t, err, domain.CodeValidation)

	rep, err := svc.RecordCondition(context.Background(), f.ownerActor(), dto.ID, RecordConditionRequest{
		Stage:     "check_in",
		Grade:     "excellent",
		PhotoURLs: []string{"https://cdn.example.com/a.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, f.owner, rep.ReportedBy)
	assert.Equal(t, "check_in", rep.Stage)

	list, err := svc.ListConditionReports(context.Background(), f.renterActor(), dto.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, list[0].PhotoURLs)
}
