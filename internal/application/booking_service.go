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
	"github.com/rentora/service-booking/internal/domain/catalog"
	"github.com/rentora/service-booking/internal/lock"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// BookingOptions tunes the reservation engine.
type BookingOptions struct {
	LockTTL       time.Duration
	CacheTTL      time.Duration
	PaymentWindow time.Duration
}

// BookingDeps groups the collaborators of BookingService.
type BookingDeps struct {
	Bookings bookingDomain.BookingRepository
	Ledger   availability.Ledger
	Prices   catalog.PriceRecordRepository
	Tx       Transactor
	Locker   lock.Locker
	Cache    cache.Cache
	Pricing  bookingDomain.PricingStrategy
	KYC      KYCVerifier
	Catalog  ProductCatalog
	Payments PaymentGateway
	Events   EventPublisher
}

// BookingService is the application service orchestrating booking use cases.
type BookingService struct {
	repo     bookingDomain.BookingRepository
	ledger   availability.Ledger
	prices   catalog.PriceRecordRepository
	tx       Transactor
	locker   lock.Locker
	cache    cache.Cache
	pricing  bookingDomain.PricingStrategy
	kyc      KYCVerifier
	catalog  ProductCatalog
	payments PaymentGateway
	pub      publisher
	opts     BookingOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewBookingService creates a new BookingService.
func NewBookingService(deps BookingDeps, opts BookingOptions, logger *zap.Logger) *BookingService {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.PaymentWindow <= 0 {
		opts.PaymentWindow = 24 * time.Hour
	}
	c := deps.Cache
	if c == nil {
		c = cache.Noop{}
	}
	return &BookingService{
		repo:     deps.Bookings,
		ledger:   deps.Ledger,
		prices:   deps.Prices,
		tx:       deps.Tx,
		locker:   deps.Locker,
		cache:    c,
		pricing:  deps.Pricing,
		kyc:      deps.KYC,
		catalog:  deps.Catalog,
		payments: deps.Payments,
		pub:      publisher{producer: deps.Events, logger: logger},
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking runs the reservation engine for a renter.
func (s *BookingService) CreateBooking(ctx context.Context, renterID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	return s.createBooking(ctx, renterID, req, nil)
}

// RepeatBooking books the product of a past booking again for a new window.
func (s *BookingService) RepeatBooking(ctx context.Context, renterID, originalID uuid.UUID, req RepeatBookingRequest) (*BookingDTO, error) {
	original, err := s.repo.FindByID(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if original.RenterID() != renterID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}

	tier := req.InsuranceTier
	if tier == "" {
		tier = string(original.Insurance())
	}
	parent := original.ID()
	return s.createBooking(ctx, renterID, CreateBookingRequest{
		ProductID:     original.ProductID(),
		StartDate:     req.StartDate,
		StartTime:     req.StartTime,
		EndDate:       req.EndDate,
		EndTime:       req.EndTime,
		InsuranceTier: tier,
		PaymentMethod: original.PaymentMethod(),
	}, &parent)
}

func (s *BookingService) createBooking(ctx context.Context, renterID uuid.UUID, req CreateBookingRequest, parentID *uuid.UUID) (*BookingDTO, error) {
	window, err := bookingDomain.ResolveWindow(req.StartDate, req.StartTime, req.EndDate, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !window.Start.After(s.now()) {
		return nil, domain.NewValidationError("start must be in the future")
	}
	tier := bookingDomain.InsuranceTier(req.InsuranceTier)
	if tier == "" {
		tier = bookingDomain.InsuranceNone
	}
	if !tier.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("invalid insurance tier: %s", req.InsuranceTier))
	}

	product, err := s.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, domain.NewValidationError("product is not available for rent")
	}
	if product.OwnerID == renterID {
		return nil, domain.NewForbiddenError("owners cannot book their own products")
	}

	verified, err := s.kyc.IsFullyVerified(ctx, renterID)
	if err != nil {
		return nil, err
	}
	if !verified {
		return nil, domain.NewForbiddenError("identity verification is required before booking")
	}

	if err := s.checkRangeFree(ctx, product.ID, window); err != nil {
		return nil, err
	}

	lease, err := s.locker.TryAcquire(ctx, lock.CreationKey(product.ID, window.Start, window.End), s.opts.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		return nil, domain.NewRetryableConflictError("a booking for these dates is already being processed, please retry")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	defer s.release(ctx, lease)

	breakdown, err := s.quote(ctx, product, window, tier)
	if err != nil {
		return nil, err
	}

	bk, err := bookingDomain.NewBooking(bookingDomain.NewBookingParams{
		RenterID:        renterID,
		OwnerID:         product.OwnerID,
		ProductID:       product.ID,
		ParentBookingID: parentID,
		Window:          window,
		Insurance:       tier,
		Pricing:         breakdown,
		PaymentMethod:   req.PaymentMethod,
		RiskScore:       bookingDomain.AssessRisk(window),
		Metadata:        req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, bk); err != nil {
		return nil, err
	}
	changes := bk.PendingChanges()
	bk.ClearChanges()

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("booking_number", bk.BookingNumber()),
		zap.String("product_id", product.ID.String()),
		zap.Int64("total_cents", bk.TotalCents()),
	)

	s.invalidate(ctx, bk)
	s.pub.publishChanges(ctx, bk, changes)
	s.pub.notify(ctx, TemplateBookingRequested, bk.OwnerID(), bookingVars(bk))

	result := toBookingDTO(bk)
	return &result, nil
}

// checkRangeFree rejects windows overlapping a booking, handover, return or an owner removal.
func (s *BookingService) checkRangeFree(ctx context.Context, productID uuid.UUID, w bookingDomain.Window) error {
	free, err := s.ledger.IsRangeFree(ctx, productID, w.Start, w.End)
	if err != nil {
		return err
	}
	if !free {
		return domain.NewConflictError("the product is already booked for the selected dates")
	}

	records, err := s.ledger.Calendar(ctx, productID, w.Start, w.End)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.Source == availability.SourceOwner {
			return domain.NewConflictError("the owner has removed these dates from the market")
		}
	}
	return nil
}

func (s *BookingService) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("failed to release booking lock",
			zap.String("key", lease.Key()),
			zap.Error(err),
		)
	}
}

// quote prices a window from the active price record, falling back to the
// product's base price when the catalog has no record.
func (s *BookingService) quote(ctx context.Context, product *catalog.Product, w bookingDomain.Window, tier bookingDomain.InsuranceTier) (bookingDomain.PriceBreakdown, error) {
	records, err := s.prices.FindByProduct(ctx, product.ID, product.CountryID)
	if err != nil {
		return bookingDomain.PriceBreakdown{}, err
	}

	params := bookingDomain.PricingParams{
		Currency:  product.Currency,
		Start:     w.Start,
		End:       w.End,
		Insurance: tier,
	}
	if rec := catalog.SelectActive(records, w.Start); rec != nil {
		params.Rates = rec.RateCard()
	} else {
		s.logger.Warn("no active price record, pricing from product base price",
			zap.String("product_id", product.ID.String()),
			zap.String("country_id", product.CountryID),
			zap.Int64("base_price_cents", product.BasePriceCents),
		)
		params.FallbackDailyCents = product.BasePriceCents
	}
	if params.Currency == "" {
		params.Currency = domain.CurrencyUSD
	}

	breakdown, err := s.pricing.Calculate(params)
	if err != nil {
		return bookingDomain.PriceBreakdown{}, domain.NewValidationError(fmt.Sprintf("pricing error: %v", err))
	}
	if breakdown.Currency == "" {
		breakdown.Currency = params.Currency
	}
	return breakdown, nil
}

// --- Reads ---

// GetBooking returns a booking visible to the actor. Cached copies are re-checked
// against the actor before being served.
func (s *BookingService) GetBooking(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	key := cache.BookingKey(bookingID)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached BookingDTO
		if json.Unmarshal(raw, &cached) == nil {
			if !cached.CanView(actor) {
				return nil, domain.NewForbiddenError("booking does not belong to this user")
			}
			return &cached, nil
		}
	}

	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.IsParty(actor) {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	result := toBookingDTO(bk)
	s.store(ctx, key, result)
	return &result, nil
}

// ListRole selects which side of the bookings a user lists.
type ListRole string

const (
	ListAsRenter ListRole = "renter"
	ListAsOwner  ListRole = "owner"
)

// ListBookings lists the actor's bookings as renter or owner.
func (s *BookingService) ListBookings(ctx context.Context, actor bookingDomain.Actor, role ListRole, filter bookingDomain.ListFilter, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	var key string
	switch role {
	case ListAsRenter:
		key = cache.RenterListKey(actor.ID, listVariant(filter, page, limit))
	case ListAsOwner:
		key = cache.OwnerListKey(actor.ID, listVariant(filter, page, limit))
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("invalid role: %s", role))
	}

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached domain.PaginatedResult[BookingDTO]
		if json.Unmarshal(raw, &cached) == nil && allVisible(cached.Items, actor) {
			return &cached, nil
		}
	}

	var (
		bookings []*bookingDomain.Booking
		total    int64
		err      error
	)
	if role == ListAsRenter {
		bookings, total, err = s.repo.FindByRenterID(ctx, actor.ID, filter, page, limit)
	} else {
		bookings, total, err = s.repo.FindByOwnerID(ctx, actor.ID, filter, page, limit)
	}
	if err != nil {
		return nil, err
	}

	result := domain.NewPaginatedResult(toBookingDTOs(bookings), total, page, limit)
	s.store(ctx, key, result)
	return &result, nil
}

// GetHistory returns the audit trail of a booking.
func (s *BookingService) GetHistory(ctx context.Context, actor bookingDomain.Actor, bookingID uuid.UUID) ([]StatusChangeDTO, error) {
	bk, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !bk.IsParty(actor) {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	changes, err := s.repo.History(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return toStatusChangeDTOs(changes), nil
}

// --- Admin reads ---

// ListAllBookings returns a paginated list of all bookings (admin).
func (s *BookingService) ListAllBookings(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]BookingDTO, int64, error) {
	bookings, total, err := s.repo.ListAll(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return toBookingDTOs(bookings), total, nil
}

// ListPendingRefunds returns cancelled bookings still owed a refund (admin).
func (s *BookingService) ListPendingRefunds(ctx context.Context, limit int) ([]BookingDTO, error) {
	bookings, err := s.repo.FindPendingRefunds(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toBookingDTOs(bookings), nil
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Cache helpers ---

func (s *BookingService) store(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.opts.CacheTTL); err != nil {
		s.logger.Warn("failed to populate cache", zap.String("key", key), zap.Error(err))
	}
}

// invalidate drops every cached read touching the booking's identifiers.
func (s *BookingService) invalidate(ctx context.Context, bk *bookingDomain.Booking) {
	prefixes := []string{
		cache.BookingKey(bk.ID()),
		cache.RenterPrefix(bk.RenterID()),
		cache.OwnerPrefix(bk.OwnerID()),
		cache.ProductPrefix(bk.ProductID()),
	}
	for _, p := range prefixes {
		if err := s.cache.InvalidatePrefix(ctx, p); err != nil {
			s.logger.Warn("failed to invalidate cache",
				zap.String("prefix", p),
				zap.Error(err),
			)
		}
	}
}

func listVariant(f bookingDomain.ListFilter, page, limit int) string {
	v := fmt.Sprintf("p%d:l%d", page, limit)
	if f.Status != nil {
		v += ":s=" + string(*f.Status)
	}
	if f.ProductID != nil {
		v += ":pr=" + f.ProductID.String()
	}
	if f.From != nil {
		v += ":f=" + f.From.UTC().Format(time.RFC3339)
	}
	if f.To != nil {
		v += ":t=" + f.To.UTC().Format(time.RFC3339)
	}
	return v
}

func allVisible(items []BookingDTO, actor bookingDomain.Actor) bool {
	for _, it := range items {
		if !it.CanView(actor) {
			return false
		}
	}
	return true
}
