package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/cache"
	"github.com/rentora/service-booking/internal/domain/availability"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/lock"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// maxCalendarSpan bounds a single calendar read or owner removal.
const maxCalendarSpan = 366 * 24 * time.Hour

// DateRangeRequest selects an inclusive range of calendar dates (YYYY-MM-DD).
type DateRangeRequest struct {
	StartDate string `json:"start_date" form:"start_date" binding:"required"`
	EndDate   string `json:"end_date" form:"end_date" binding:"required"`
	Note      string `json:"note" form:"-"`
}

// AvailabilityDTO is one unavailable date of a product.
type AvailabilityDTO struct {
	Date      string     `json:"date"`
	Type      string     `json:"availability_type"`
	Source    string     `json:"source"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	Note      string     `json:"note,omitempty"`
}

// CalendarDTO is a product's unavailable dates within a range.
type CalendarDTO struct {
	ProductID   uuid.UUID         `json:"product_id"`
	StartDate   string            `json:"start_date"`
	EndDate     string            `json:"end_date"`
	Unavailable []AvailabilityDTO `json:"unavailable"`
}

// AvailabilityService exposes the ledger to owners and runs the past-date sweep.
type AvailabilityService struct {
	ledger   availability.Ledger
	catalog  ProductCatalog
	locker   lock.Locker
	tx       Transactor
	cache    cache.Cache
	cacheTTL time.Duration
	lockTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAvailabilityService creates a new AvailabilityService.
func NewAvailabilityService(ledger availability.Ledger, products ProductCatalog, locker lock.Locker, tx Transactor, c cache.Cache, opts BookingOptions, logger *zap.Logger) *AvailabilityService {
	if c == nil {
		c = cache.Noop{}
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	return &AvailabilityService{
		ledger:   ledger,
		catalog:  products,
		locker:   locker,
		tx:       tx,
		cache:    c,
		cacheTTL: opts.CacheTTL,
		lockTTL:  opts.LockTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Calendar returns the unavailable dates of a product.
func (s *AvailabilityService) Calendar(ctx context.Context, productID uuid.UUID, req DateRangeRequest) (*CalendarDTO, error) {
	start, end, err := parseDateRange(req)
	if err != nil {
		return nil, err
	}

	key := cache.ProductCalendarKey(productID, req.StartDate+":"+req.EndDate)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached CalendarDTO
		if json.Unmarshal(raw, &cached) == nil {
			return &cached, nil
		}
	}

	records, err := s.ledger.Calendar(ctx, productID, start, end)
	if err != nil {
		return nil, err
	}

	result := CalendarDTO{
		ProductID:   productID,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Unavailable: make([]AvailabilityDTO, len(records)),
	}
	for i, r := range records {
		result.Unavailable[i] = AvailabilityDTO{
			Date:      r.Date.Format(bookingDomain.DateLayout),
			Type:      string(r.Type),
			Source:    string(r.Source),
			BookingID: r.BookingID,
			Note:      r.Note,
		}
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.logger.Warn("failed to populate cache", zap.String("key", key), zap.Error(err))
		}
	}
	return &result, nil
}

// RemoveDates takes a range off the market on behalf of the owner. Dates already held
// by a booking cannot be removed.
func (s *AvailabilityService) RemoveDates(ctx context.Context, actor bookingDomain.Actor, productID uuid.UUID, req DateRangeRequest) error {
	start, end, err := parseDateRange(req)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, actor, productID); err != nil {
		return err
	}

	lease, err := s.locker.TryAcquire(ctx, lock.LedgerKey(productID), s.lockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return domain.NewRetryableConflictError("the product calendar is being updated, please retry")
	}
	if err != nil {
		return fmt.Errorf("failed to acquire ledger lock: %w", err)
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release ledger lock", zap.String("key", lease.Key()), zap.Error(err))
		}
	}()

	note := req.Note
	if note == "" {
		note = string(availability.SourceOwner)
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		free, err := s.ledger.IsRangeFree(ctx, productID, start, end)
		if err != nil {
			return err
		}
		if !free {
			return domain.NewConflictError("some of these dates are already booked")
		}
		return s.ledger.Block(ctx, availability.Block{
			ProductID: productID,
			Start:     start,
			End:       end,
			Source:    availability.SourceOwner,
			Note:      note,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("dates removed from market",
		zap.String("product_id", productID.String()),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	)
	s.invalidateProduct(ctx, productID)
	return nil
}

// RestoreDates returns owner-removed dates to the market.
func (s *AvailabilityService) RestoreDates(ctx context.Context, actor bookingDomain.Actor, productID uuid.UUID, req DateRangeRequest) (int64, error) {
	start, end, err := parseDateRange(req)
	if err != nil {
		return 0, err
	}
	if err := s.authorizeOwner(ctx, actor, productID); err != nil {
		return 0, err
	}

	n, err := s.ledger.Restore(ctx, productID, start, end)
	if err != nil {
		return 0, err
	}
	s.invalidateProduct(ctx, productID)
	return n, nil
}

// RestorePastDates clears every unavailable row dated before today.
func (s *AvailabilityService) RestorePastDates(ctx context.Context) (int64, error) {
	n, err := s.ledger.RestorePastDates(ctx, bookingDomain.TruncateDate(s.now()))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("restored past dates", zap.Int64("rows", n))
	}
	return n, nil
}

// RunSweeper calls RestorePastDates every interval until ctx is cancelled.
func (s *AvailabilityService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RestorePastDates(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("availability sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *AvailabilityService) authorizeOwner(ctx context.Context, actor bookingDomain.Actor, productID uuid.UUID) error {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin && product.OwnerID != actor.ID {
		return domain.NewForbiddenError("you do not own this product")
	}
	return nil
}

func (s *AvailabilityService) invalidateProduct(ctx context.Context, productID uuid.UUID) {
	if err := s.cache.InvalidatePrefix(ctx, cache.ProductPrefix(productID)); err != nil {
		s.logger.Warn("failed to invalidate cache",
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
	}
}

func parseDateRange(req DateRangeRequest) (time.Time, time.Time, error) {
	start, err := time.Parse(bookingDomain.DateLayout, req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError("invalid start_date, expected YYYY-MM-DD")
	}
	end, err := time.Parse(bookingDomain.DateLayout, req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, domain.NewValidationError("invalid end_date, expected YYYY-MM-DD")
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, domain.NewValidationError("end_date must not be before start_date")
	}
	if end.Sub(start) > maxCalendarSpan {
		return time.Time{}, time.Time{}, domain.NewValidationError("date range cannot exceed one year")
	}
	return start, end, nil
}
