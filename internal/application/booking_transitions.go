package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/domain/availability"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/lock"
	"github.com/rentora/service-booking/internal/platform/domain"
	"github.com/rentora/service-booking/internal/platform/events"
)

// apply loads a booking, runs fn against it and persists the result together with its
// history and any ledger change in one transaction. On failure the aggregate is rolled
// back and nothing is written.
func (s *BookingService) apply(ctx context.Context, bookingID uuid.UUID, fn func(bk *bookingDomain.Booking) error) (*bookingDomain.Booking, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	before := bk.Status()
	snapshot := bk.Snapshot()
	if err := fn(bk); err != nil {
		bk.Restore(snapshot)
		return nil, err
	}

	// A booking starting to hold dates competes with other bookings of the same product.
	if !before.BlocksCalendar() && bk.Status().BlocksCalendar() {
		lease, err := s.locker.TryAcquire(ctx, lock.LedgerKey(bk.ProductID()), s.opts.LockTTL)
		if errors.Is(err, lock.ErrNotAcquired) {
			bk.Restore(snapshot)
			return nil, domain.NewRetryableConflictError("the product calendar is being updated, please retry")
		}
		if err != nil {
			bk.Restore(snapshot)
			return nil, fmt.Errorf("failed to acquire ledger lock: %w", err)
		}
		defer s.release(ctx, lease)
	}

	bk.IncrementVersion()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.syncLedger(ctx, bk, before); err != nil {
			return err
		}
		return s.repo.Update(ctx, bk)
	})
	if err != nil {
		bk.Restore(snapshot)
		return nil, err
	}

	changes := bk.PendingChanges()
	bk.ClearChanges()

	s.invalidate(ctx, bk)
	s.pub.publishChanges(ctx, bk, changes)
	return bk, nil
}

// syncLedger blocks the booking's dates when it starts holding the calendar and frees
// them when it stops.
func (s *BookingService) syncLedger(ctx context.Context, bk *bookingDomain.Booking, before bookingDomain.BookingStatus) error {
	after := bk.Status()
	w := bk.Window()
	id := bk.ID()

	switch {
	case !before.BlocksCalendar() && after.BlocksCalendar():
		// Dates may have been booked or taken off the market since the request was made.
		if err := s.checkRangeFree(ctx, bk.ProductID(), w); err != nil {
			return err
		}
		return s.ledger.Block(ctx, availability.Block{
			ProductID: bk.ProductID(),
			Start:     w.Start,
			End:       w.End,
			Source:    availability.SourceBooking,
			BookingID: &id,
			Note:      availability.BookedNote(string(after)),
		})
	case before.BlocksCalendar() && after.BlocksCalendar() && before != after:
		return s.ledger.Block(ctx, availability.Block{
			ProductID: bk.ProductID(),
			Start:     w.Start,
			End:       w.End,
			Source:    availability.SourceBooking,
			BookingID: &id,
			Note:      availability.BookedNote(string(after)),
		})
	case before.BlocksCalendar() && !after.BlocksCalendar():
		return s.ledger.Free(ctx, bk.ProductID(), id, w.Start, w.End)
	}
	return nil
}

func (s *BookingService) result(bk *bookingDomain.Booking) *BookingDTO {
	dto := toBookingDTO(bk)
	return &dto
}

// ConfirmBooking accepts a pending booking on behalf of the owner and opens the
// payment window.
func (s *BookingService) ConfirmBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.Confirm(actor, s.now().Add(s.opts.PaymentWindow))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking confirmed",
		zap.String("booking_id", bk.ID().String()),
		zap.String("confirmed_by", actor.ID.String()),
	)
	s.pub.notify(ctx, TemplateBookingConfirmed, bk.RenterID(), bookingVars(bk))
	return s.result(bk), nil
}

// RejectBooking declines a pending booking.
func (s *BookingService) RejectBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.Reject(actor, reason)
	})
	if err != nil {
		return nil, err
	}

	vars := bookingVars(bk)
	vars["reason"] = bk.RejectionReason()
	s.pub.notify(ctx, TemplateBookingRejected, bk.RenterID(), vars)
	return s.result(bk), nil
}

// CheckIn marks the hand-over of the item.
func (s *BookingService) CheckIn(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.CheckIn(actor)
	})
	if err != nil {
		return nil, err
	}
	return s.result(bk), nil
}

// CheckOut marks the return of the item and completes the booking.
func (s *BookingService) CheckOut(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.CheckOut(actor)
	})
	if err != nil {
		return nil, err
	}
	return s.result(bk), nil
}

// CancelBooking is the self-service cancellation of a confirmed booking.
func (s *BookingService) CancelBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		_, err := bk.Cancel(actor, reason, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.result(s.settleRefund(ctx, bk)), nil
}

// RequestCancellation starts the two-step cancellation flow.
func (s *BookingService) RequestCancellation(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.RequestCancellation(actor, reason)
	})
	if err != nil {
		return nil, err
	}
	return s.result(bk), nil
}

// ReviewCancellation is the owner's decision on a cancellation request.
func (s *BookingService) ReviewCancellation(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, req ReviewCancellationRequest) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if req.Approve {
			_, err := bk.ApproveCancellation(actor, s.now())
			return err
		}
		return bk.RejectCancellation(actor, req.Reason)
	})
	if err != nil {
		return nil, err
	}
	if req.Approve {
		bk = s.settleRefund(ctx, bk)
	}
	return s.result(bk), nil
}

// AdminCancel force-cancels any non-terminal booking.
func (s *BookingService) AdminCancel(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, reason string) (*BookingDTO, error) {
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		_, err := bk.AdminCancel(actor, reason, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled by admin",
		zap.String("booking_id", bk.ID().String()),
		zap.String("admin_id", actor.ID.String()),
	)
	return s.result(s.settleRefund(ctx, bk)), nil
}

// UpdateInsurance switches the insurance tier and re-prices the booking.
func (s *BookingService) UpdateInsurance(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID, req UpdateInsuranceRequest) (*BookingDTO, error) {
	tier := bookingDomain.InsuranceTier(req.InsuranceTier)
	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		if !tier.IsValid() {
			return domain.NewValidationError(fmt.Sprintf("invalid insurance tier: %s", req.InsuranceTier))
		}
		return bk.UpdateInsurance(actor, tier, bk.Pricing().WithInsurance(tier))
	})
	if err != nil {
		return nil, err
	}
	return s.result(bk), nil
}

// RecalculatePricing re-runs the calculator against the current price record (admin).
func (s *BookingService) RecalculatePricing(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	if !actor.IsAdmin {
		return nil, domain.NewForbiddenError("admin privileges required")
	}
	current, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	product, err := s.catalog.GetProduct(ctx, current.ProductID())
	if err != nil {
		return nil, err
	}
	breakdown, err := s.quote(ctx, product, current.Window(), current.Insurance())
	if err != nil {
		return nil, err
	}

	bk, err := s.apply(ctx, bookingID, func(bk *bookingDomain.Booking) error {
		return bk.Reprice(actor, breakdown)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking repriced",
		zap.String("booking_id", bk.ID().String()),
		zap.Int64("old_total_cents", current.TotalCents()),
		zap.Int64("new_total_cents", bk.TotalCents()),
	)
	return s.result(bk), nil
}

// DeleteBooking hard-deletes a pending or cancelled booking with its history.
func (s *BookingService) DeleteBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) error {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := bk.CanDelete(actor); err != nil {
		return err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		w := bk.Window()
		if err := s.ledger.Free(ctx, bk.ProductID(), bk.ID(), w.Start, w.End); err != nil {
			return err
		}
		return s.repo.Delete(ctx, bk.ID())
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, bk)
	s.pub.publishEvent(ctx, events.TopicBookingEvents, events.BookingDeleted, bk.ID().String(), events.BookingStatusChangedEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		RenterID:      bk.RenterID(),
		OwnerID:       bk.OwnerID(),
		ProductID:     bk.ProductID(),
		OldStatus:     string(bk.Status()),
		NewStatus:     string(bookingDomain.StatusDeleted),
		ChangedBy:     actor.ID,
		StartAt:       bk.Window().Start,
		EndAt:         bk.Window().End,
		TotalCents:    bk.TotalCents(),
		Currency:      bk.Pricing().Currency,
		OccurredAt:    s.now(),
	})
	return nil
}

// ProcessRefund retries the refund of a cancelled booking (admin).
func (s *BookingService) ProcessRefund(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	if !actor.IsAdmin {
		return nil, domain.NewForbiddenError("admin privileges required")
	}
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.NeedsRefund() {
		return nil, domain.NewValidationError("booking has no outstanding refund")
	}
	return s.result(s.settleRefund(ctx, bk)), nil
}

// settleRefund moves the refund money once a cancellation has been committed. A failed
// refund never reverts the cancellation; it is flagged for manual follow-up.
func (s *BookingService) settleRefund(ctx context.Context, bk *bookingDomain.Booking) *bookingDomain.Booking {
	if !bk.NeedsRefund() || s.payments == nil {
		return bk
	}

	c := bk.Cancellation()
	res, err := s.payments.ProcessRefund(ctx, bk.PaymentTransactionID(), c.RefundCents, c.Reason)
	if err == nil && res.Success {
		updated, err := s.apply(ctx, bk.ID(), func(b *bookingDomain.Booking) error {
			return b.MarkRefunded(bookingDomain.SystemActor, res.TransactionID)
		})
		if err != nil {
			s.logger.Error("refund executed but booking could not be marked refunded",
				zap.String("booking_id", bk.ID().String()),
				zap.String("transaction_id", res.TransactionID),
				zap.Error(err),
			)
			return bk
		}
		return updated
	}

	note := "refund rejected by payment service"
	switch {
	case err != nil:
		note = err.Error()
	case res.Message != "":
		note = res.Message
	}
	s.logger.Error("refund failed, flagged for manual review",
		zap.String("booking_id", bk.ID().String()),
		zap.Int64("refund_cents", c.RefundCents),
		zap.String("reason", note),
	)

	updated, ferr := s.apply(ctx, bk.ID(), func(b *bookingDomain.Booking) error {
		b.FlagRefundForReview(note)
		return nil
	})
	if ferr != nil {
		s.logger.Error("failed to flag refund for review",
			zap.String("booking_id", bk.ID().String()),
			zap.Error(ferr),
		)
		return bk
	}
	return updated
}

// --- Payment events ---

// HandlePaymentCaptured records the renter's payment. Redelivered events are ignored.
func (s *BookingService) HandlePaymentCaptured(ctx context.Context, evt events.PaymentCapturedEvent) error {
	_, err := s.apply(ctx, evt.BookingID, func(bk *bookingDomain.Booking) error {
		if bk.PaymentStatus() != bookingDomain.PaymentPending {
			return errAlreadyApplied
		}
		return bk.MarkPaid(evt.TransactionID)
	})
	return ignoreApplied(err)
}

// HandleRefundCompleted settles a refund executed asynchronously by the payment service.
func (s *BookingService) HandleRefundCompleted(ctx context.Context, evt events.RefundResultEvent) error {
	_, err := s.apply(ctx, evt.BookingID, func(bk *bookingDomain.Booking) error {
		if bk.Status() == bookingDomain.StatusRefunded {
			return errAlreadyApplied
		}
		return bk.MarkRefunded(bookingDomain.SystemActor, evt.TransactionID)
	})
	return ignoreApplied(err)
}

// HandleRefundFailed flags a refund the payment service could not execute.
func (s *BookingService) HandleRefundFailed(ctx context.Context, evt events.RefundResultEvent) error {
	_, err := s.apply(ctx, evt.BookingID, func(bk *bookingDomain.Booking) error {
		if !bk.NeedsRefund() || bk.Cancellation().RefundStatus == bookingDomain.RefundManualReview {
			return errAlreadyApplied
		}
		bk.FlagRefundForReview(evt.FailureReason)
		return nil
	})
	if err == nil {
		s.logger.Error("refund failed at payment service, flagged for manual review",
			zap.String("booking_id", evt.BookingID.String()),
			zap.Int64("amount_cents", evt.AmountCents),
			zap.String("reason", evt.FailureReason),
		)
	}
	return ignoreApplied(err)
}

var errAlreadyApplied = errors.New("event already applied")

func ignoreApplied(err error) error {
	if errors.Is(err, errAlreadyApplied) {
		return nil
	}
	return err
}
