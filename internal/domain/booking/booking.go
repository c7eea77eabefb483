package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentora/service-booking/internal/platform/domain"
)

const (
	bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// MinReasonLength is the shortest accepted cancellation reason.
	MinReasonLength = 10
)

// Booking is the aggregate root for the booking domain.
type Booking struct {
	id              uuid.UUID
	bookingNumber   string
	renterID        uuid.UUID
	ownerID         uuid.UUID
	productID       uuid.UUID
	parentBookingID *uuid.UUID
	window          Window

	insurance     InsuranceTier
	pricing       PriceBreakdown
	paymentMethod string
	paymentStatus PaymentStatus
	paymentDueAt  *time.Time
	riskScore     float64

	status            BookingStatus
	ownerConfirmation OwnerConfirmation
	rejectionReason   string

	cancellation Cancellation

	checkedInAt  *time.Time
	checkedOutAt *time.Time

	metadata map[string]string

	createdBy      uuid.UUID
	lastModifiedBy uuid.UUID
	version        int64
	createdAt      time.Time
	updatedAt      time.Time

	changes []StatusChange
}

// Cancellation groups the cancellation and refund fields.
type Cancellation struct {
	Reason              string       `json:"reason,omitempty"`
	RequestedAt         *time.Time   `json:"requested_at,omitempty"`
	ApprovedAt          *time.Time   `json:"approved_at,omitempty"`
	RejectedAt          *time.Time   `json:"rejected_at,omitempty"`
	CancelledAt         *time.Time   `json:"cancelled_at,omitempty"`
	FeeCents            int64        `json:"fee_cents"`
	RefundCents         int64        `json:"refund_cents"`
	PolicyReason        string       `json:"policy_reason,omitempty"`
	RefundStatus        RefundStatus `json:"refund_status"`
	RefundTransactionID string       `json:"refund_transaction_id,omitempty"`
}

// NewBookingParams holds everything needed to open a booking request.
type NewBookingParams struct {
	RenterID        uuid.UUID
	OwnerID         uuid.UUID
	ProductID       uuid.UUID
	ParentBookingID *uuid.UUID
	Window          Window
	Insurance       InsuranceTier
	Pricing         PriceBreakdown
	PaymentMethod   string
	RiskScore       float64
	Metadata        map[string]string
}

// generateBookingNumber creates a booking number in the format "RB-XXXXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 8)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "RB-" + string(result), nil
}

// NewBooking creates a new Booking aggregate with status=pending and records the
// initial history entry.
func NewBooking(p NewBookingParams) (*Booking, error) {
	if p.RenterID == uuid.Nil {
		return nil, domain.NewValidationError("renter ID is required")
	}
	if p.OwnerID == uuid.Nil {
		return nil, domain.NewValidationError("owner ID is required")
	}
	if p.ProductID == uuid.Nil {
		return nil, domain.NewValidationError("product ID is required")
	}
	if p.RenterID == p.OwnerID {
		return nil, domain.NewValidationError("owners cannot book their own products")
	}
	if !p.Window.End.After(p.Window.Start) {
		return nil, domain.NewValidationError("end must be after start")
	}
	if p.Insurance == "" {
		p.Insurance = InsuranceNone
	}
	if !p.Insurance.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid insurance tier: %s", p.Insurance))
	}
	if err := validatePricing(p.Pricing); err != nil {
		return nil, err
	}

	bookingNumber, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}

	now := time.Now().UTC()
	b := &Booking{
		id:                uuid.New(),
		bookingNumber:     bookingNumber,
		renterID:          p.RenterID,
		ownerID:           p.OwnerID,
		productID:         p.ProductID,
		parentBookingID:   p.ParentBookingID,
		window:            p.Window,
		insurance:         p.Insurance,
		pricing:           p.Pricing,
		paymentMethod:     p.PaymentMethod,
		paymentStatus:     PaymentPending,
		riskScore:         p.RiskScore,
		status:            StatusPending,
		ownerConfirmation: OwnerConfirmationPending,
		cancellation:      Cancellation{RefundStatus: RefundNone},
		metadata:          metadata,
		createdBy:         p.RenterID,
		lastModifiedBy:    p.RenterID,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}
	b.record(nil, StatusPending, p.RenterID, "booking requested", "", now)
	return b, nil
}

// ReconstructParams carries persisted state back into an aggregate.
type ReconstructParams struct {
	ID                uuid.UUID
	BookingNumber     string
	RenterID          uuid.UUID
	OwnerID           uuid.UUID
	ProductID         uuid.UUID
	ParentBookingID   *uuid.UUID
	Window            Window
	Insurance         InsuranceTier
	Pricing           PriceBreakdown
	PaymentMethod     string
	PaymentStatus     PaymentStatus
	PaymentDueAt      *time.Time
	RiskScore         float64
	Status            BookingStatus
	OwnerConfirmation OwnerConfirmation
	RejectionReason   string
	Cancellation      Cancellation
	CheckedInAt       *time.Time
	CheckedOutAt      *time.Time
	Metadata          map[string]string
	CreatedBy         uuid.UUID
	LastModifiedBy    uuid.UUID
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(p ReconstructParams) *Booking {
	return &Booking{
		id:                p.ID,
		bookingNumber:     p.BookingNumber,
		renterID:          p.RenterID,
		ownerID:           p.OwnerID,
		productID:         p.ProductID,
		parentBookingID:   p.ParentBookingID,
		window:            p.Window,
		insurance:         p.Insurance,
		pricing:           p.Pricing,
		paymentMethod:     p.PaymentMethod,
		paymentStatus:     p.PaymentStatus,
		paymentDueAt:      p.PaymentDueAt,
		riskScore:         p.RiskScore,
		status:            p.Status,
		ownerConfirmation: p.OwnerConfirmation,
		rejectionReason:   p.RejectionReason,
		cancellation:      p.Cancellation,
		checkedInAt:       p.CheckedInAt,
		checkedOutAt:      p.CheckedOutAt,
		metadata:          p.Metadata,
		createdBy:         p.CreatedBy,
		lastModifiedBy:    p.LastModifiedBy,
		version:           p.Version,
		createdAt:         p.CreatedAt,
		updatedAt:         p.UpdatedAt,
	}
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.bookingNumber }

// RenterID returns the renter's user ID.
func (b *Booking) RenterID() uuid.UUID { return b.renterID }

// OwnerID returns the product owner's user ID.
func (b *Booking) OwnerID() uuid.UUID { return b.ownerID }

// ProductID returns the rented product's ID.
func (b *Booking) ProductID() uuid.UUID { return b.productID }

// ParentBookingID returns the booking this one repeats, if any.
func (b *Booking) ParentBookingID() *uuid.UUID { return b.parentBookingID }

// Window returns the rental period.
func (b *Booking) Window() Window { return b.window }

// Insurance returns the insurance tier.
func (b *Booking) Insurance() InsuranceTier { return b.insurance }

// Pricing returns the price breakdown.
func (b *Booking) Pricing() PriceBreakdown { return b.pricing }

// TotalCents returns the amount charged to the renter.
func (b *Booking) TotalCents() int64 { return b.pricing.TotalCents }

func (b *Booking) PaymentMethod() string        { return b.paymentMethod }
func (b *Booking) PaymentStatus() PaymentStatus { return b.paymentStatus }
func (b *Booking) PaymentDueAt() *time.Time     { return b.paymentDueAt }
func (b *Booking) RiskScore() float64           { return b.riskScore }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

func (b *Booking) OwnerConfirmation() OwnerConfirmation { return b.ownerConfirmation }
func (b *Booking) RejectionReason() string              { return b.rejectionReason }

// Cancellation returns the cancellation and refund details.
func (b *Booking) Cancellation() Cancellation { return b.cancellation }

func (b *Booking) CheckedInAt() *time.Time  { return b.checkedInAt }
func (b *Booking) CheckedOutAt() *time.Time { return b.checkedOutAt }

// Metadata returns a copy of the free-form metadata.
func (b *Booking) Metadata() map[string]string {
	out := make(map[string]string, len(b.metadata))
	for k, v := range b.metadata {
		out[k] = v
	}
	return out
}

func (b *Booking) CreatedBy() uuid.UUID      { return b.createdBy }
func (b *Booking) LastModifiedBy() uuid.UUID { return b.lastModifiedBy }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// CreatedAt returns the creation timestamp.
func (b *Booking) CreatedAt() time.Time { return b.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (b *Booking) UpdatedAt() time.Time { return b.updatedAt }

// --- Authorization helpers ---

// IsParty reports whether the actor is the renter, the owner, or an admin.
func (b *Booking) IsParty(a Actor) bool {
	return a.IsAdmin || a.ID == b.renterID || a.ID == b.ownerID
}

func (b *Booking) isOwnerOrAdmin(a Actor) bool {
	return a.IsAdmin || a.ID == b.ownerID
}

func (b *Booking) isRenterOrAdmin(a Actor) bool {
	return a.IsAdmin || a.ID == b.renterID
}

// --- Behavior ---

// Confirm transitions pending to confirmed. Only the owner or an admin may confirm.
// paymentDueAt is the renter's payment deadline, enforced outside this service.
func (b *Booking) Confirm(actor Actor, paymentDueAt time.Time) error {
	if !b.isOwnerOrAdmin(actor) {
		return domain.NewForbiddenError("only the owner can confirm this booking")
	}
	now := time.Now().UTC()
	if err := b.transition(StatusConfirmed, actor, "confirmed by owner", "", now); err != nil {
		return err
	}
	due := paymentDueAt.UTC()
	b.ownerConfirmation = OwnerConfirmationConfirmed
	b.paymentDueAt = &due
	return nil
}

// Reject declines a pending request. The booking ends cancelled with a rejected owner confirmation.
func (b *Booking) Reject(actor Actor, reason string) error {
	if !b.isOwnerOrAdmin(actor) {
		return domain.NewForbiddenError("only the owner can reject this booking")
	}
	if b.status != StatusPending {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.NewValidationError("rejection reason is required")
	}
	now := time.Now().UTC()
	if err := b.transition(StatusCancelled, actor, reason, "rejected by owner", now); err != nil {
		return err
	}
	b.ownerConfirmation = OwnerConfirmationRejected
	b.rejectionReason = reason
	b.paymentStatus = PaymentCancelled
	b.cancellation.CancelledAt = &now
	return nil
}

// CheckIn starts the rental. Allowed only from confirmed.
func (b *Booking) CheckIn(actor Actor) error {
	if !b.IsParty(actor) {
		return domain.NewForbiddenError("only the renter, owner or an admin can check in")
	}
	if b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusInProgress))
	}
	now := time.Now().UTC()
	if err := b.transition(StatusInProgress, actor, "checked in", "", now); err != nil {
		return err
	}
	b.checkedInAt = &now
	return nil
}

// CheckOut completes the rental. Allowed only from in_progress.
func (b *Booking) CheckOut(actor Actor) error {
	if !b.IsParty(actor) {
		return domain.NewForbiddenError("only the renter, owner or an admin can check out")
	}
	if b.status != StatusInProgress {
		return domain.NewInvalidStateError(string(b.status), string(StatusCompleted))
	}
	now := time.Now().UTC()
	if err := b.transition(StatusCompleted, actor, "checked out", "", now); err != nil {
		return err
	}
	b.checkedOutAt = &now
	return nil
}

// Cancel is the self-service cancellation without an approval step. It is only
// permitted from confirmed and applies the refund policy.
func (b *Booking) Cancel(actor Actor, reason string, now time.Time) (RefundQuote, error) {
	if !b.IsParty(actor) {
		return RefundQuote{}, domain.NewForbiddenError("only the renter, owner or an admin can cancel")
	}
	if err := validateReason(reason); err != nil {
		return RefundQuote{}, err
	}
	if b.status != StatusConfirmed {
		return RefundQuote{}, domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	return b.cancel(actor, reason, "self-service cancellation", now)
}

// RequestCancellation asks the owner to approve a cancellation of a confirmed booking.
func (b *Booking) RequestCancellation(actor Actor, reason string) error {
	if !b.isRenterOrAdmin(actor) {
		return domain.NewForbiddenError("only the renter can request cancellation")
	}
	if err := validateReason(reason); err != nil {
		return err
	}
	if b.status != StatusConfirmed {
		return domain.NewInvalidStateError(string(b.status), string(StatusCancellationRequested))
	}
	now := time.Now().UTC()
	if err := b.transition(StatusCancellationRequested, actor, strings.TrimSpace(reason), "", now); err != nil {
		return err
	}
	b.cancellation.Reason = strings.TrimSpace(reason)
	b.cancellation.RequestedAt = &now
	b.cancellation.RejectedAt = nil
	return nil
}

// ApproveCancellation accepts a pending cancellation request and applies the refund policy.
func (b *Booking) ApproveCancellation(actor Actor, now time.Time) (RefundQuote, error) {
	if !b.isOwnerOrAdmin(actor) {
		return RefundQuote{}, domain.NewForbiddenError("only the owner can review cancellation requests")
	}
	if b.status != StatusCancellationRequested {
		return RefundQuote{}, domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	q, err := b.cancel(actor, b.cancellation.Reason, "cancellation approved by owner", now)
	if err != nil {
		return RefundQuote{}, err
	}
	approved := now.UTC()
	b.cancellation.ApprovedAt = &approved
	return q, nil
}

// RejectCancellation declines a cancellation request and returns the booking to confirmed.
func (b *Booking) RejectCancellation(actor Actor, reason string) error {
	if !b.isOwnerOrAdmin(actor) {
		return domain.NewForbiddenError("only the owner can review cancellation requests")
	}
	if b.status != StatusCancellationRequested {
		return domain.NewInvalidStateError(string(b.status), string(StatusConfirmed))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.NewValidationError("rejection reason is required")
	}
	now := time.Now().UTC()
	if err := b.transition(StatusConfirmed, actor, reason, "cancellation request rejected", now); err != nil {
		return err
	}
	b.rejectionReason = reason
	b.cancellation.RejectedAt = &now
	return nil
}

// AdminCancel is the override path: any non-terminal booking may be cancelled by an admin.
func (b *Booking) AdminCancel(actor Actor, reason string, now time.Time) (RefundQuote, error) {
	if !actor.IsAdmin {
		return RefundQuote{}, domain.NewForbiddenError("admin privileges required")
	}
	if err := validateReason(reason); err != nil {
		return RefundQuote{}, err
	}
	if !b.status.CanBeCancelled() {
		return RefundQuote{}, domain.NewInvalidStateError(string(b.status), string(StatusCancelled))
	}
	return b.cancel(actor, reason, "admin override", now)
}

// MarkRefunded records a completed refund and moves cancelled to refunded.
func (b *Booking) MarkRefunded(actor Actor, transactionID string) error {
	if b.status != StatusCancelled {
		return domain.NewInvalidStateError(string(b.status), string(StatusRefunded))
	}
	now := time.Now().UTC()
	if err := b.transition(StatusRefunded, actor, "refund completed", transactionID, now); err != nil {
		return err
	}
	b.paymentStatus = PaymentRefunded
	b.cancellation.RefundStatus = RefundCompleted
	b.cancellation.RefundTransactionID = transactionID
	return nil
}

// FlagRefundForReview marks a refund that could not be executed for manual follow-up.
// The booking stays cancelled.
func (b *Booking) FlagRefundForReview(note string) {
	b.cancellation.RefundStatus = RefundManualReview
	if note != "" {
		if b.metadata == nil {
			b.metadata = make(map[string]string)
		}
		b.metadata["refund_failure"] = note
	}
	b.updatedAt = time.Now().UTC()
}

// NeedsRefund reports whether money is owed back to the renter.
func (b *Booking) NeedsRefund() bool {
	return b.status == StatusCancelled &&
		b.cancellation.RefundCents > 0 &&
		(b.cancellation.RefundStatus == RefundPending || b.cancellation.RefundStatus == RefundManualReview)
}

// MarkPaid records the renter's payment.
func (b *Booking) MarkPaid(transactionID string) error {
	if b.paymentStatus != PaymentPending {
		return domain.NewInvalidStateError("payment "+string(b.paymentStatus), string(PaymentPaid))
	}
	b.paymentStatus = PaymentPaid
	if transactionID != "" {
		if b.metadata == nil {
			b.metadata = make(map[string]string)
		}
		b.metadata["payment_transaction_id"] = transactionID
	}
	b.updatedAt = time.Now().UTC()
	return nil
}

// PaymentTransactionID returns the captured payment's transaction reference, if any.
func (b *Booking) PaymentTransactionID() string {
	return b.metadata["payment_transaction_id"]
}

// CanDelete reports whether a hard delete is allowed.
func (b *Booking) CanDelete(actor Actor) error {
	if !b.isRenterOrAdmin(actor) {
		return domain.NewForbiddenError("only the renter or an admin can delete a booking")
	}
	if !b.status.CanTransitionTo(StatusDeleted) {
		return domain.NewInvalidStateError(string(b.status), string(StatusDeleted))
	}
	return nil
}

// UpdateInsurance changes the insurance tier and applies the re-priced breakdown.
func (b *Booking) UpdateInsurance(actor Actor, tier InsuranceTier, pricing PriceBreakdown) error {
	if !b.isRenterOrAdmin(actor) {
		return domain.NewForbiddenError("only the renter can change insurance")
	}
	if !tier.IsValid() {
		return domain.NewValidationError(fmt.Sprintf("invalid insurance tier: %s", tier))
	}
	if b.status != StatusPending && b.status != StatusConfirmed {
		return domain.NewValidationError("insurance can only change before the rental starts")
	}
	if b.paymentStatus == PaymentPaid {
		return domain.NewValidationError("insurance cannot change after payment")
	}
	if err := validatePricing(pricing); err != nil {
		return err
	}
	b.insurance = tier
	b.pricing = pricing
	b.lastModifiedBy = actor.ID
	b.updatedAt = time.Now().UTC()
	return nil
}

// Reprice replaces the breakdown, e.g. after a catalog correction.
func (b *Booking) Reprice(actor Actor, pricing PriceBreakdown) error {
	if !actor.IsAdmin {
		return domain.NewForbiddenError("admin privileges required")
	}
	if b.status.IsTerminal() || b.status == StatusCancelled {
		return domain.NewValidationError("cannot reprice a closed booking")
	}
	if err := validatePricing(pricing); err != nil {
		return err
	}
	b.pricing = pricing
	b.lastModifiedBy = actor.ID
	b.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// PendingChanges returns status changes not yet persisted.
func (b *Booking) PendingChanges() []StatusChange {
	return append([]StatusChange(nil), b.changes...)
}

// ClearChanges drops recorded changes once they are persisted.
func (b *Booking) ClearChanges() {
	b.changes = nil
}

// Snapshot captures the aggregate so a failed persist can be undone.
func (b *Booking) Snapshot() Booking {
	cp := *b
	cp.metadata = b.Metadata()
	cp.changes = b.PendingChanges()
	return cp
}

// Restore rolls the aggregate back to a snapshot.
func (b *Booking) Restore(s Booking) {
	*b = s
}

func (b *Booking) cancel(actor Actor, reason, notes string, now time.Time) (RefundQuote, error) {
	q := CalculateRefund(b.pricing.TotalCents, now, b.window.Start)
	at := now.UTC()
	if err := b.transition(StatusCancelled, actor, strings.TrimSpace(reason), notes, at); err != nil {
		return RefundQuote{}, err
	}

	b.cancellation.Reason = strings.TrimSpace(reason)
	b.cancellation.CancelledAt = &at
	b.cancellation.FeeCents = q.CancellationFeeCents
	b.cancellation.PolicyReason = q.Reason

	if b.paymentStatus == PaymentPaid && q.RefundCents > 0 {
		b.cancellation.RefundCents = q.RefundCents
		b.cancellation.RefundStatus = RefundPending
		b.paymentStatus = PaymentRefundPending
	} else {
		b.cancellation.RefundCents = 0
		b.cancellation.RefundStatus = RefundNone
		b.paymentStatus = PaymentCancelled
	}
	return q, nil
}

func (b *Booking) transition(to BookingStatus, actor Actor, reason, notes string, now time.Time) error {
	if !b.status.CanTransitionTo(to) {
		return domain.NewInvalidStateError(string(b.status), string(to))
	}
	from := b.status
	b.status = to
	b.lastModifiedBy = actor.ID
	b.updatedAt = now
	b.record(&from, to, actor.ID, reason, notes, now)
	return nil
}

func (b *Booking) record(from *BookingStatus, to BookingStatus, by uuid.UUID, reason, notes string, at time.Time) {
	b.changes = append(b.changes, StatusChange{
		ID:        uuid.New(),
		BookingID: b.id,
		OldStatus: from,
		NewStatus: to,
		ChangedBy: by,
		Reason:    reason,
		Notes:     notes,
		ChangedAt: at,
	})
}

func validateReason(reason string) error {
	if len(strings.TrimSpace(reason)) < MinReasonLength {
		return domain.NewValidationError(fmt.Sprintf("reason must be at least %d characters", MinReasonLength))
	}
	return nil
}

func validatePricing(p PriceBreakdown) error {
	if p.TotalCents < 0 || p.SubtotalCents < 0 {
		return domain.NewValidationError("price cannot be negative")
	}
	if p.TotalCents != p.SubtotalCents+p.PlatformFeeCents+p.TaxCents+p.InsuranceFeeCents {
		return domain.NewValidationError("price total does not match its components")
	}
	return nil
}
