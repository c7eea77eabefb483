package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rentora/service-booking/internal/cache"
	"github.com/rentora/service-booking/internal/clients"
	"github.com/rentora/service-booking/internal/domain/availability"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/domain/catalog"
	"github.com/rentora/service-booking/internal/domain/condition"
	"github.com/rentora/service-booking/internal/lock"
	"github.com/rentora/service-booking/internal/platform/domain"
	"github.com/rentora/service-booking/internal/platform/kafka"
)

// --- bookings ---

type fakeBookingRepo struct {
	mu         sync.Mutex
	bookings   map[uuid.UUID]bookingDomain.Booking
	history    map[uuid.UUID][]bookingDomain.StatusChange
	failUpdate error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings: make(map[uuid.UUID]bookingDomain.Booking),
		history:  make(map[uuid.UUID][]bookingDomain.StatusChange),
	}
}

func stored(bk *bookingDomain.Booking) bookingDomain.Booking {
	cp := bk.Snapshot()
	cp.ClearChanges()
	return cp
}

func (r *fakeBookingRepo) load(s bookingDomain.Booking) *bookingDomain.Booking {
	cp := s.Snapshot()
	return &cp
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return r.load(s), nil
}

func (r *fakeBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.bookings {
		if s.BookingNumber() == number {
			return r.load(s), nil
		}
	}
	return nil, domain.NewNotFoundError("Booking", number)
}

func (r *fakeBookingRepo) filter(match func(b *bookingDomain.Booking) bool, f bookingDomain.ListFilter) []*bookingDomain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, s := range r.bookings {
		b := r.load(s)
		if !match(b) {
			continue
		}
		if f.Status != nil && b.Status() != *f.Status {
			continue
		}
		if f.ProductID != nil && b.ProductID() != *f.ProductID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out
}

func paginate(all []*bookingDomain.Booking, page, limit int) ([]*bookingDomain.Booking, int64) {
	total := int64(len(all))
	from := (page - 1) * limit
	if from >= len(all) {
		return nil, total
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], total
}

func (r *fakeBookingRepo) FindByRenterID(_ context.Context, id uuid.UUID, f bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	all := r.filter(func(b *bookingDomain.Booking) bool { return b.RenterID() == id }, f)
	out, total := paginate(all, page, limit)
	return out, total, nil
}

func (r *fakeBookingRepo) FindByOwnerID(_ context.Context, id uuid.UUID, f bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	all := r.filter(func(b *bookingDomain.Booking) bool { return b.OwnerID() == id }, f)
	out, total := paginate(all, page, limit)
	return out, total, nil
}

func (r *fakeBookingRepo) FindPendingRefunds(_ context.Context, limit int) ([]*bookingDomain.Booking, error) {
	all := r.filter(func(b *bookingDomain.Booking) bool { return b.NeedsRefund() }, bookingDomain.ListFilter{})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *fakeBookingRepo) ListAll(_ context.Context, f bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	all := r.filter(func(*bookingDomain.Booking) bool { return true }, f)
	out, total := paginate(all, page, limit)
	return out, total, nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64)
	for _, s := range r.bookings {
		out[string(s.Status())]++
	}
	return out, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[bk.ID()] = stored(bk)
	r.history[bk.ID()] = append(r.history[bk.ID()], bk.PendingChanges()...)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	cur, ok := r.bookings[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if cur.Version() != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[bk.ID()] = stored(bk)
	r.history[bk.ID()] = append(r.history[bk.ID()], bk.PendingChanges()...)
	return nil
}

func (r *fakeBookingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bookings, id)
	delete(r.history, id)
	return nil
}

func (r *fakeBookingRepo) History(_ context.Context, id uuid.UUID) ([]bookingDomain.StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bookingDomain.StatusChange(nil), r.history[id]...), nil
}

func (r *fakeBookingRepo) historyLen(id uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history[id])
}

type bookingRepoState struct {
	bookings map[uuid.UUID]bookingDomain.Booking
	history  map[uuid.UUID][]bookingDomain.StatusChange
}

func (r *fakeBookingRepo) state() bookingRepoState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := bookingRepoState{
		bookings: make(map[uuid.UUID]bookingDomain.Booking, len(r.bookings)),
		history:  make(map[uuid.UUID][]bookingDomain.StatusChange, len(r.history)),
	}
	for k, v := range r.bookings {
		st.bookings[k] = v
	}
	for k, v := range r.history {
		st.history[k] = append([]bookingDomain.StatusChange(nil), v...)
	}
	return st
}

func (r *fakeBookingRepo) restore(st bookingRepoState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = st.bookings
	r.history = st.history
}

// --- ledger ---

type ledgerKey struct {
	product uuid.UUID
	date    string
}

type fakeLedger struct {
	mu   sync.Mutex
	rows map[ledgerKey]availability.Record
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{rows: make(map[ledgerKey]availability.Record)}
}

func keyOf(p uuid.UUID, d time.Time) ledgerKey {
	return ledgerKey{product: p, date: d.Format(bookingDomain.DateLayout)}
}

func (l *fakeLedger) IsRangeFree(_ context.Context, productID uuid.UUID, start, end time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range availability.DatesBetween(start, end) {
		if r, ok := l.rows[keyOf(productID, d)]; ok && r.Source.BlocksReservations() {
			return false, nil
		}
	}
	return true, nil
}

func (l *fakeLedger) Block(_ context.Context, b availability.Block) error {
	if err := b.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	records := b.Records(time.Now().UTC())
	if b.Source != availability.SourceOwner {
		for _, rec := range records {
			if r, ok := l.rows[keyOf(rec.ProductID, rec.Date)]; ok && r.Source == availability.SourceOwner {
				return domain.NewConflictError("the owner has removed some of these dates from the market")
			}
		}
	}
	for _, rec := range records {
		l.rows[keyOf(rec.ProductID, rec.Date)] = rec
	}
	return nil
}

func (l *fakeLedger) Free(_ context.Context, productID, bookingID uuid.UUID, start, end time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, d := range availability.DatesBetween(start, end) {
		k := keyOf(productID, d)
		if r, ok := l.rows[k]; ok && r.Source == availability.SourceBooking && r.BookingID != nil && *r.BookingID == bookingID {
			delete(l.rows, k)
		}
	}
	return nil
}

func (l *fakeLedger) Restore(_ context.Context, productID uuid.UUID, start, end time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, d := range availability.DatesBetween(start, end) {
		k := keyOf(productID, d)
		if r, ok := l.rows[k]; ok && r.Source == availability.SourceOwner {
			delete(l.rows, k)
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) RestorePastDates(_ context.Context, before time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, r := range l.rows {
		if r.Date.Before(before) {
			delete(l.rows, k)
			n++
		}
	}
	return n, nil
}

func (l *fakeLedger) Calendar(_ context.Context, productID uuid.UUID, start, end time.Time) ([]availability.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []availability.Record
	for _, d := range availability.DatesBetween(start, end) {
		if r, ok := l.rows[keyOf(productID, d)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *fakeLedger) blocked(productID uuid.UUID, d time.Time) (availability.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[keyOf(productID, d)]
	return r, ok
}

func (l *fakeLedger) state() map[ledgerKey]availability.Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make(map[ledgerKey]availability.Record, len(l.rows))
	for k, v := range l.rows {
		cp[k] = v
	}
	return cp
}

func (l *fakeLedger) restore(rows map[ledgerKey]availability.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = rows
}

// fakeTx rolls the in-memory stores back when fn fails.
type fakeTx struct {
	repo   *fakeBookingRepo
	ledger *fakeLedger
}

func (t *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	repoState := t.repo.state()
	ledgerState := t.ledger.state()
	if err := fn(ctx); err != nil {
		t.repo.restore(repoState)
		t.ledger.restore(ledgerState)
		return err
	}
	return nil
}

// --- price records ---

type fakePriceRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*catalog.PriceRecord
	onFind  func()
	findErr error
}

func newFakePriceRepo() *fakePriceRepo {
	return &fakePriceRepo{records: make(map[uuid.UUID]*catalog.PriceRecord)}
}

func (r *fakePriceRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.PriceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, domain.NewNotFoundError("PriceRecord", id.String())
	}
	return rec, nil
}

func (r *fakePriceRepo) FindByProduct(_ context.Context, productID uuid.UUID, countryID string) ([]*catalog.PriceRecord, error) {
	if r.onFind != nil {
		r.onFind()
	}
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*catalog.PriceRecord
	for _, rec := range r.records {
		if rec.ProductID() == productID && (countryID == "" || rec.CountryID() == countryID) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakePriceRepo) Save(_ context.Context, rec *catalog.PriceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID()] = rec
	return nil
}

func (r *fakePriceRepo) Update(ctx context.Context, rec *catalog.PriceRecord) error {
	return r.Save(ctx, rec)
}

// --- condition reports ---

type fakeReportRepo struct {
	mu      sync.Mutex
	reports []*condition.Report
}

func (r *fakeReportRepo) Save(_ context.Context, report *condition.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return nil
}

func (r *fakeReportRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*condition.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*condition.Report
	for _, rep := range r.reports {
		if rep.BookingID() == bookingID {
			out = append(out, rep)
		}
	}
	return out, nil
}

// --- collaborators ---

type fakeKYC struct {
	unverified map[uuid.UUID]bool
}

func (k *fakeKYC) IsFullyVerified(_ context.Context, userID uuid.UUID) (bool, error) {
	return !k.unverified[userID], nil
}

type fakeCatalog struct {
	products map[uuid.UUID]*catalog.Product
}

func (c *fakeCatalog) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, ok := c.products[id]
	if !ok {
		return nil, domain.NewNotFoundError("Product", id.String())
	}
	cp := *p
	return &cp, nil
}

type fakePayments struct {
	mu     sync.Mutex
	result *clients.RefundResult
	err    error
	calls  []int64
}

func (p *fakePayments) ProcessRefund(_ context.Context, _ string, amountCents int64, _ string) (*clients.RefundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, amountCents)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

type publishedEvent struct {
	topic string
	event kafka.CloudEvent
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic string, event kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, event: event})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.event.Type
	}
	return out
}

func (p *fakePublisher) notifications() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.topic == "notification.requests" {
			out = append(out, e)
		}
	}
	return out
}

// --- fixture ---

type fixture struct {
	svc      *BookingService
	avail    *AvailabilityService
	repo     *fakeBookingRepo
	ledger   *fakeLedger
	prices   *fakePriceRepo
	locker   *lock.MemoryLocker
	cache    *cache.MemoryCache
	kyc      *fakeKYC
	catalog  *fakeCatalog
	payments *fakePayments
	pub      *fakePublisher
	product  *catalog.Product
	owner    uuid.UUID
	renter   uuid.UUID
	logger   *zap.Logger
}

func int64Ptr(v int64) *int64 { return &v }

func newFixture(logger *zap.Logger) *fixture {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &fixture{
		repo:     newFakeBookingRepo(),
		ledger:   newFakeLedger(),
		prices:   newFakePriceRepo(),
		locker:   lock.NewMemoryLocker(),
		cache:    cache.NewMemoryCache(),
		kyc:      &fakeKYC{unverified: make(map[uuid.UUID]bool)},
		payments: &fakePayments{result: &clients.RefundResult{Success: true, TransactionID: "rf-1"}},
		pub:      &fakePublisher{},
		owner:    uuid.New(),
		renter:   uuid.New(),
		logger:   logger,
	}
	f.product = &catalog.Product{
		ID:             uuid.New(),
		OwnerID:        f.owner,
		CountryID:      "US",
		Title:          "Camera",
		BasePriceCents: 5000,
		Currency:       "USD",
		Active:         true,
	}
	f.catalog = &fakeCatalog{products: map[uuid.UUID]*catalog.Product{f.product.ID: f.product}}

	rec, err := catalog.NewPriceRecord(
		f.product.ID, "US",
		catalog.Rates{HourlyCents: int64Ptr(500), DailyCents: int64Ptr(4000)},
		1, 10000, "USD",
		time.Now().UTC().AddDate(0, 0, -1), nil, f.owner,
	)
	if err != nil {
		panic(err)
	}
	f.prices.records[rec.ID()] = rec

	tx := &fakeTx{repo: f.repo, ledger: f.ledger}
	opts := BookingOptions{LockTTL: time.Minute, CacheTTL: time.Minute, PaymentWindow: 24 * time.Hour}
	f.svc = NewBookingService(BookingDeps{
		Bookings: f.repo,
		Ledger:   f.ledger,
		Prices:   f.prices,
		Tx:       tx,
		Locker:   f.locker,
		Cache:    f.cache,
		Pricing:  bookingDomain.NewStandardPricingStrategy(),
		KYC:      f.kyc,
		Catalog:  f.catalog,
		Payments: f.payments,
		Events:   f.pub,
	}, opts, logger)
	f.avail = NewAvailabilityService(f.ledger, f.catalog, f.locker, tx, f.cache, opts, logger)
	return f
}

func (f *fixture) renterActor() bookingDomain.Actor { return bookingDomain.Actor{ID: f.renter} }
func (f *fixture) ownerActor() bookingDomain.Actor  { return bookingDomain.Actor{ID: f.owner} }

func adminActor() bookingDomain.Actor { return bookingDomain.Actor{ID: uuid.New(), IsAdmin: true} }

// requestInDays builds a request for a window starting days from now and lasting nights days.
func (f *fixture) requestInDays(days, nights int) CreateBookingRequest {
	start := time.Now().UTC().AddDate(0, 0, days)
	return CreateBookingRequest{
		ProductID:     f.product.ID,
		StartDate:     start.Format(bookingDomain.DateLayout),
		EndDate:       start.AddDate(0, 0, nights).Format(bookingDomain.DateLayout),
		InsuranceTier: "basic",
		PaymentMethod: "card",
	}
}
