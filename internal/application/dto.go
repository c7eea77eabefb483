package application

import (
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
)

// CreateBookingRequest holds the data needed to create a new booking. Times are
// optional and default to 09:00 pickup and 17:00 return.
type CreateBookingRequest struct {
	ProductID     uuid.UUID         `json:"product_id" binding:"required"`
	StartDate     string            `json:"start_date" binding:"required"`
	StartTime     string            `json:"start_time"`
	EndDate       string            `json:"end_date" binding:"required"`
	EndTime       string            `json:"end_time"`
	InsuranceTier string            `json:"insurance_tier"`
	PaymentMethod string            `json:"payment_method"`
	Metadata      map[string]string `json:"metadata"`
}

// RepeatBookingRequest books the same product again for a new window.
type RepeatBookingRequest struct {
	StartDate     string `json:"start_date" binding:"required"`
	StartTime     string `json:"start_time"`
	EndDate       string `json:"end_date" binding:"required"`
	EndTime       string `json:"end_time"`
	InsuranceTier string `json:"insurance_tier"`
}

// ReasonRequest carries a free-text reason for a transition.
type ReasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReviewCancellationRequest is the owner's answer to a cancellation request.
type ReviewCancellationRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// UpdateInsuranceRequest changes the insurance tier.
type UpdateInsuranceRequest struct {
	InsuranceTier string `json:"insurance_tier" binding:"required"`
}

// CancellationDTO is the cancellation and refund part of a booking.
type CancellationDTO struct {
	Reason              string     `json:"reason,omitempty"`
	RequestedAt         *time.Time `json:"requested_at,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	RejectedAt          *time.Time `json:"rejected_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	FeeCents            int64      `json:"fee_cents"`
	RefundCents         int64      `json:"refund_cents"`
	PolicyReason        string     `json:"policy_reason,omitempty"`
	RefundStatus        string     `json:"refund_status"`
	RefundTransactionID string     `json:"refund_transaction_id,omitempty"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID                uuid.UUID                    `json:"id"`
	BookingNumber     string                       `json:"booking_number"`
	RenterID          uuid.UUID                    `json:"renter_id"`
	OwnerID           uuid.UUID                    `json:"owner_id"`
	ProductID         uuid.UUID                    `json:"product_id"`
	ParentBookingID   *uuid.UUID                   `json:"parent_booking_id,omitempty"`
	StartAt           time.Time                    `json:"start_at"`
	EndAt             time.Time                    `json:"end_at"`
	InsuranceTier     string                       `json:"insurance_tier"`
	Pricing           bookingDomain.PriceBreakdown `json:"pricing"`
	TotalAmountCents  int64                        `json:"total_amount_cents"`
	BaseAmountCents   int64                        `json:"base_amount_cents"`
	SecurityDeposit   int64                        `json:"security_deposit_cents"`
	Currency          string                       `json:"currency"`
	PaymentMethod     string                       `json:"payment_method,omitempty"`
	PaymentStatus     string                       `json:"payment_status"`
	PaymentDueAt      *time.Time                   `json:"payment_due_at,omitempty"`
	RiskScore         float64                      `json:"risk_score"`
	Status            string                       `json:"status"`
	OwnerConfirmation string                       `json:"owner_confirmation"`
	RejectionReason   string                       `json:"rejection_reason,omitempty"`
	Cancellation      CancellationDTO              `json:"cancellation"`
	CheckedInAt       *time.Time                   `json:"checked_in_at,omitempty"`
	CheckedOutAt      *time.Time                   `json:"checked_out_at,omitempty"`
	Metadata          map[string]string            `json:"metadata,omitempty"`
	CreatedBy         uuid.UUID                    `json:"created_by"`
	LastModifiedBy    uuid.UUID                    `json:"last_modified_by"`
	Version           int64                        `json:"version"`
	CreatedAt         time.Time                    `json:"created_at"`
	UpdatedAt         time.Time                    `json:"updated_at"`
}

// CanView reports whether the actor may see this booking.
func (d BookingDTO) CanView(actor bookingDomain.Actor) bool {
	return actor.IsAdmin || actor.ID == d.RenterID || actor.ID == d.OwnerID
}

// StatusChangeDTO is one audit trail entry.
type StatusChangeDTO struct {
	OldStatus *string   `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedBy uuid.UUID `json:"changed_by"`
	Reason    string    `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	p := bk.Pricing()
	c := bk.Cancellation()
	w := bk.Window()
	return BookingDTO{
		ID:                bk.ID(),
		BookingNumber:     bk.BookingNumber(),
		RenterID:          bk.RenterID(),
		OwnerID:           bk.OwnerID(),
		ProductID:         bk.ProductID(),
		ParentBookingID:   bk.ParentBookingID(),
		StartAt:           w.Start,
		EndAt:             w.End,
		InsuranceTier:     string(bk.Insurance()),
		Pricing:           p,
		TotalAmountCents:  p.TotalCents,
		BaseAmountCents:   p.SubtotalCents,
		SecurityDeposit:   p.SecurityDepositCents,
		Currency:          p.Currency,
		PaymentMethod:     bk.PaymentMethod(),
		PaymentStatus:     string(bk.PaymentStatus()),
		PaymentDueAt:      bk.PaymentDueAt(),
		RiskScore:         bk.RiskScore(),
		Status:            string(bk.Status()),
		OwnerConfirmation: string(bk.OwnerConfirmation()),
		RejectionReason:   bk.RejectionReason(),
		Cancellation: CancellationDTO{
			Reason:              c.Reason,
			RequestedAt:         c.RequestedAt,
			ApprovedAt:          c.ApprovedAt,
			RejectedAt:          c.RejectedAt,
			CancelledAt:         c.CancelledAt,
			FeeCents:            c.FeeCents,
			RefundCents:         c.RefundCents,
			PolicyReason:        c.PolicyReason,
			RefundStatus:        string(c.RefundStatus),
			RefundTransactionID: c.RefundTransactionID,
		},
		CheckedInAt:    bk.CheckedInAt(),
		CheckedOutAt:   bk.CheckedOutAt(),
		Metadata:       bk.Metadata(),
		CreatedBy:      bk.CreatedBy(),
		LastModifiedBy: bk.LastModifiedBy(),
		Version:        bk.Version(),
		CreatedAt:      bk.CreatedAt(),
		UpdatedAt:      bk.UpdatedAt(),
	}
}

func toBookingDTOs(bookings []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}
	return dtos
}

func toStatusChangeDTOs(changes []bookingDomain.StatusChange) []StatusChangeDTO {
	out := make([]StatusChangeDTO, len(changes))
	for i, c := range changes {
		var old *string
		if c.OldStatus != nil {
			s := string(*c.OldStatus)
			old = &s
		}
		out[i] = StatusChangeDTO{
			OldStatus: old,
			NewStatus: string(c.NewStatus),
			ChangedBy: c.ChangedBy,
			Reason:    c.Reason,
			Notes:     c.Notes,
			ChangedAt: c.ChangedAt,
		}
	}
	return out
}
