package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/platform/domain"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID                  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber       string          `gorm:"uniqueIndex;not null;size:20"`
	RenterID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	OwnerID             uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductID           uuid.UUID       `gorm:"type:uuid;index;not null"`
	ParentBookingID     *uuid.UUID      `gorm:"type:uuid"`
	StartAt             time.Time       `gorm:"not null;index"`
	EndAt               time.Time       `gorm:"not null"`
	InsuranceTier       string          `gorm:"not null;size:20;default:'none'"`
	Pricing             json.RawMessage `gorm:"type:jsonb;not null"`
	BaseAmountCents     int64           `gorm:"not null"`
	TotalAmountCents    int64           `gorm:"not null"`
	SecurityDeposit     int64           `gorm:"not null;default:0"`
	Currency            string          `gorm:"not null;size:3;default:'USD'"`
	PaymentMethod       string          `gorm:"size:100"`
	PaymentStatus       string          `gorm:"not null;size:30"`
	PaymentDueAt        *time.Time      `gorm:""`
	RiskScore           float64         `gorm:"not null;default:0"`
	Status              string          `gorm:"not null;size:30;index"`
	OwnerConfirmation   string          `gorm:"not null;size:20"`
	RejectionReason     string          `gorm:"size:500"`
	CancellationReason  string          `gorm:"size:500"`
	CancelRequestedAt   *time.Time      `gorm:""`
	CancelApprovedAt    *time.Time      `gorm:""`
	CancelRejectedAt    *time.Time      `gorm:""`
	CancelledAt         *time.Time      `gorm:""`
	CancellationFee     int64           `gorm:"not null;default:0"`
	RefundAmountCents   int64           `gorm:"not null;default:0"`
	RefundPolicy        string          `gorm:"size:60"`
	RefundStatus        string          `gorm:"not null;size:20;default:'none';index"`
	RefundTransactionID string          `gorm:"size:100"`
	CheckedInAt         *time.Time      `gorm:""`
	CheckedOutAt        *time.Time      `gorm:""`
	Metadata            json.RawMessage `gorm:"type:jsonb"`
	CreatedBy           uuid.UUID       `gorm:"type:uuid;not null"`
	LastModifiedBy      uuid.UUID       `gorm:"type:uuid;not null"`
	Version             int64           `gorm:"not null;default:1"`
	CreatedAt           time.Time       `gorm:"not null"`
	UpdatedAt           time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// StatusHistoryModel is the GORM model for the booking_status_history table.
type StatusHistoryModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;index:idx_status_history_booking;not null"`
	OldStatus *string   `gorm:"size:30"`
	NewStatus string    `gorm:"not null;size:30"`
	ChangedBy uuid.UUID `gorm:"type:uuid;not null"`
	Reason    string    `gorm:"size:500"`
	Notes     string    `gorm:"size:1000"`
	ChangedAt time.Time `gorm:"not null;index:idx_status_history_booking"`
}

// TableName returns the table name for the GORM model.
func (StatusHistoryModel) TableName() string {
	return "booking_status_history"
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := dbFrom(ctx, r.db).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByRenterID retrieves bookings made by a renter with pagination.
func (r *GormBookingRepository) FindByRenterID(ctx context.Context, renterID uuid.UUID, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, dbFrom(ctx, r.db).Where("renter_id = ?", renterID), filter, page, limit)
}

// FindByOwnerID retrieves bookings on an owner's products with pagination.
func (r *GormBookingRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, dbFrom(ctx, r.db).Where("owner_id = ?", ownerID), filter, page, limit)
}

// ListAll retrieves all bookings with pagination (admin).
func (r *GormBookingRepository) ListAll(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.list(ctx, dbFrom(ctx, r.db), filter, page, limit)
}

// FindPendingRefunds returns cancelled bookings whose refund has not completed.
func (r *GormBookingRepository) FindPendingRefunds(ctx context.Context, limit int) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := dbFrom(ctx, r.db).
		Where("status = ? AND refund_status IN ? AND refund_amount_cents > 0",
			string(bookingDomain.StatusCancelled),
			[]string{string(bookingDomain.RefundPending), string(bookingDomain.RefundManualReview)}).
		Order("cancelled_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find pending refunds: %w", err)
	}
	return toDomainBookings(models)
}

func (r *GormBookingRepository) list(ctx context.Context, q *gorm.DB, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	q = applyFilter(q.Model(&BookingModel{}), filter)

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings, err := toDomainBookings(models)
	if err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

func applyFilter(q *gorm.DB, f bookingDomain.ListFilter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.From != nil {
		q = q.Where("end_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("start_at <= ?", *f.To)
	}
	return q
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := dbFrom(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// Save persists a new booking and its initial history in one transaction.
func (r *GormBookingRepository) Save(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	return dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.NewRetryableConflictError("booking number collision, please retry")
			}
			return fmt.Errorf("failed to save booking: %w", err)
		}
		return appendHistory(tx, bk.PendingChanges())
	})
}

// Update persists changes with optimistic locking and appends pending history.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	model, err := toBookingModel(bk)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	return dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		// Optimistic locking: IncrementVersion was called before Update.
		expectedVersion := bk.Version() - 1
		result := tx.Model(&BookingModel{}).
			Where("id = ? AND version = ?", model.ID, expectedVersion).
			Updates(map[string]interface{}{
				"insurance_tier":        model.InsuranceTier,
				"pricing":               model.Pricing,
				"base_amount_cents":     model.BaseAmountCents,
				"total_amount_cents":    model.TotalAmountCents,
				"security_deposit":      model.SecurityDeposit,
				"currency":              model.Currency,
				"payment_status":        model.PaymentStatus,
				"payment_due_at":        model.PaymentDueAt,
				"status":                model.Status,
				"owner_confirmation":    model.OwnerConfirmation,
				"rejection_reason":      model.RejectionReason,
				"cancellation_reason":   model.CancellationReason,
				"cancel_requested_at":   model.CancelRequestedAt,
				"cancel_approved_at":    model.CancelApprovedAt,
				"cancel_rejected_at":    model.CancelRejectedAt,
				"cancelled_at":          model.CancelledAt,
				"cancellation_fee":      model.CancellationFee,
				"refund_amount_cents":   model.RefundAmountCents,
				"refund_policy":         model.RefundPolicy,
				"refund_status":         model.RefundStatus,
				"refund_transaction_id": model.RefundTransactionID,
				"checked_in_at":         model.CheckedInAt,
				"checked_out_at":        model.CheckedOutAt,
				"metadata":              model.Metadata,
				"last_modified_by":      model.LastModifiedBy,
				"version":               model.Version,
				"updated_at":            model.UpdatedAt,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to update booking: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewConflictError("booking was modified by another transaction")
		}
		return appendHistory(tx, bk.PendingChanges())
	})
}

// Delete hard-deletes a booking and its history.
func (r *GormBookingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("booking_id = ?", id).Delete(&StatusHistoryModel{}).Error; err != nil {
			return fmt.Errorf("failed to delete booking history: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&BookingModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete booking: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return domain.NewNotFoundError("Booking", id.String())
		}
		return nil
	})
}

// History returns the status changes of a booking, oldest first.
func (r *GormBookingRepository) History(ctx context.Context, bookingID uuid.UUID) ([]bookingDomain.StatusChange, error) {
	var models []StatusHistoryModel
	if err := dbFrom(ctx, r.db).
		Where("booking_id = ?", bookingID).
		Order("changed_at ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}

	changes := make([]bookingDomain.StatusChange, len(models))
	for i, m := range models {
		var old *bookingDomain.BookingStatus
		if m.OldStatus != nil {
			s := bookingDomain.BookingStatus(*m.OldStatus)
			old = &s
		}
		changes[i] = bookingDomain.StatusChange{
			ID:        m.ID,
			BookingID: m.BookingID,
			OldStatus: old,
			NewStatus: bookingDomain.BookingStatus(m.NewStatus),
			ChangedBy: m.ChangedBy,
			Reason:    m.Reason,
			Notes:     m.Notes,
			ChangedAt: m.ChangedAt,
		}
	}
	return changes, nil
}

func appendHistory(tx *gorm.DB, changes []bookingDomain.StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	models := make([]StatusHistoryModel, len(changes))
	for i, c := range changes {
		var old *string
		if c.OldStatus != nil {
			s := string(*c.OldStatus)
			old = &s
		}
		models[i] = StatusHistoryModel{
			ID:        c.ID,
			BookingID: c.BookingID,
			OldStatus: old,
			NewStatus: string(c.NewStatus),
			ChangedBy: c.ChangedBy,
			Reason:    c.Reason,
			Notes:     c.Notes,
			ChangedAt: c.ChangedAt,
		}
	}
	if err := tx.Create(&models).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) (*BookingModel, error) {
	pricingJSON, err := json.Marshal(bk.Pricing())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pricing: %w", err)
	}
	metadataJSON, err := json.Marshal(bk.Metadata())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	p := bk.Pricing()
	c := bk.Cancellation()
	w := bk.Window()
	return &BookingModel{
		ID:                  bk.ID(),
		BookingNumber:       bk.BookingNumber(),
		RenterID:            bk.RenterID(),
		OwnerID:             bk.OwnerID(),
		ProductID:           bk.ProductID(),
		ParentBookingID:     bk.ParentBookingID(),
		StartAt:             w.Start,
		EndAt:               w.End,
		InsuranceTier:       string(bk.Insurance()),
		Pricing:             pricingJSON,
		BaseAmountCents:     p.SubtotalCents,
		TotalAmountCents:    p.TotalCents,
		SecurityDeposit:     p.SecurityDepositCents,
		Currency:            p.Currency,
		PaymentMethod:       bk.PaymentMethod(),
		PaymentStatus:       string(bk.PaymentStatus()),
		PaymentDueAt:        bk.PaymentDueAt(),
		RiskScore:           bk.RiskScore(),
		Status:              string(bk.Status()),
		OwnerConfirmation:   string(bk.OwnerConfirmation()),
		RejectionReason:     bk.RejectionReason(),
		CancellationReason:  c.Reason,
		CancelRequestedAt:   c.RequestedAt,
		CancelApprovedAt:    c.ApprovedAt,
		CancelRejectedAt:    c.RejectedAt,
		CancelledAt:         c.CancelledAt,
		CancellationFee:     c.FeeCents,
		RefundAmountCents:   c.RefundCents,
		RefundPolicy:        c.PolicyReason,
		RefundStatus:        string(c.RefundStatus),
		RefundTransactionID: c.RefundTransactionID,
		CheckedInAt:         bk.CheckedInAt(),
		CheckedOutAt:        bk.CheckedOutAt(),
		Metadata:            metadataJSON,
		CreatedBy:           bk.CreatedBy(),
		LastModifiedBy:      bk.LastModifiedBy(),
		Version:             bk.Version(),
		CreatedAt:           bk.CreatedAt(),
		UpdatedAt:           bk.UpdatedAt(),
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	var pricing bookingDomain.PriceBreakdown
	if err := json.Unmarshal(m.Pricing, &pricing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pricing: %w", err)
	}

	metadata := map[string]string{}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	status, err := bookingDomain.ParseBookingStatus(m.Status)
	if err != nil {
		return nil, err
	}

	return bookingDomain.ReconstructBooking(bookingDomain.ReconstructParams{
		ID:                m.ID,
		BookingNumber:     m.BookingNumber,
		RenterID:          m.RenterID,
		OwnerID:           m.OwnerID,
		ProductID:         m.ProductID,
		ParentBookingID:   m.ParentBookingID,
		Window:            bookingDomain.Window{Start: m.StartAt.UTC(), End: m.EndAt.UTC()},
		Insurance:         bookingDomain.InsuranceTier(m.InsuranceTier),
		Pricing:           pricing,
		PaymentMethod:     m.PaymentMethod,
		PaymentStatus:     bookingDomain.PaymentStatus(m.PaymentStatus),
		PaymentDueAt:      m.PaymentDueAt,
		RiskScore:         m.RiskScore,
		Status:            status,
		OwnerConfirmation: bookingDomain.OwnerConfirmation(m.OwnerConfirmation),
		RejectionReason:   m.RejectionReason,
		Cancellation: bookingDomain.Cancellation{
			Reason:              m.CancellationReason,
			RequestedAt:         m.CancelRequestedAt,
			ApprovedAt:          m.CancelApprovedAt,
			RejectedAt:          m.CancelRejectedAt,
			CancelledAt:         m.CancelledAt,
			FeeCents:            m.CancellationFee,
			RefundCents:         m.RefundAmountCents,
			PolicyReason:        m.RefundPolicy,
			RefundStatus:        bookingDomain.RefundStatus(m.RefundStatus),
			RefundTransactionID: m.RefundTransactionID,
		},
		CheckedInAt:    m.CheckedInAt,
		CheckedOutAt:   m.CheckedOutAt,
		Metadata:       metadata,
		CreatedBy:      m.CreatedBy,
		LastModifiedBy: m.LastModifiedBy,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}), nil
}

func toDomainBookings(models []BookingModel) ([]*bookingDomain.Booking, error) {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bk, err := toDomainBooking(&models[i])
		if err != nil {
			return nil, err
		}
		bookings[i] = bk
	}
	return bookings, nil
}
