//go:build integration

package main_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rentora/service-booking/internal/application"
	"github.com/rentora/service-booking/internal/cache"
	"github.com/rentora/service-booking/internal/clients"
	bookingDomain "github.com/rentora/service-booking/internal/domain/booking"
	"github.com/rentora/service-booking/internal/domain/catalog"
	bookingEvents "github.com/rentora/service-booking/internal/events"
	"github.com/rentora/service-booking/internal/lock"
	"github.com/rentora/service-booking/internal/platform/database"
	"github.com/rentora/service-booking/internal/platform/domain"
	"github.com/rentora/service-booking/internal/platform/events"
	"github.com/rentora/service-booking/internal/platform/kafka"
	"github.com/rentora/service-booking/internal/repository"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// bookingStack holds wired-up booking service components.
type bookingStack struct {
	Service         *application.BookingService
	Consumer        *bookingEvents.PaymentEventConsumer
	Product         *catalog.Product
	Payments        *stubPayments
	CleanupProducer func()
}

type stubKYC struct{}

func (stubKYC) IsFullyVerified(context.Context, uuid.UUID) (bool, error) { return true, nil }

type stubCatalog struct{ product *catalog.Product }

func (s stubCatalog) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	if id != s.product.ID {
		return nil, domain.NewNotFoundError("product", id.String())
	}
	p := *s.product
	return &p, nil
}

// stubPayments refunds successfully unless fail is set.
type stubPayments struct {
	mu   sync.Mutex
	fail bool
}

func (s *stubPayments) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *stubPayments) ProcessRefund(_ context.Context, txnID string, _ int64, _ string) (*clients.RefundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, domain.NewUpstreamError("payment", fmt.Errorf("gateway unavailable"))
	}
	return &clients.RefundResult{Success: true, TransactionID: "rf-" + txnID}, nil
}

// setupContainers starts PostgreSQL and Kafka testcontainers and applies the migrations.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_booking",
		SSLMode:  "disable",
	}

	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), "migrations", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, events.TopicBookingEvents, events.TopicPaymentEvents, events.TopicNotificationRequests)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupBookingStack wires the booking service against Postgres, Kafka and an in-memory Redis.
func setupBookingStack(t *testing.T, db *gorm.DB, brokers []string) *bookingStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	product := &catalog.Product{
		ID:             uuid.New(),
		OwnerID:        uuid.New(),
		CountryID:      "US",
		Title:          "Integration camera",
		BasePriceCents: 5000,
		Currency:       domain.CurrencyUSD,
		Active:         true,
	}
	payments := &stubPayments{}
	producer := kafka.NewProducer(brokers, logger)

	bookingSvc := application.NewBookingService(application.BookingDeps{
		Bookings: repository.NewGormBookingRepository(db),
		Ledger:   repository.NewGormAvailabilityLedger(db),
		Prices:   repository.NewGormPriceRecordRepository(db),
		Tx:       repository.NewGormTransactor(db),
		Locker:   lock.NewRedisLocker(rdb),
		Cache:    cache.NewRedisCache(rdb),
		Pricing:  bookingDomain.NewStandardPricingStrategy(),
		KYC:      stubKYC{},
		Catalog:  stubCatalog{product: product},
		Payments: payments,
		Events:   producer,
	}, application.BookingOptions{}, logger)

	groupID := fmt.Sprintf("test-booking-%s", uuid.New().String()[:8])
	consumer := bookingEvents.NewPaymentEventConsumer(brokers, groupID, bookingSvc, logger)

	return &bookingStack{
		Service:         bookingSvc,
		Consumer:        consumer,
		Product:         product,
		Payments:        payments,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// createConfirmedBooking books the stack's product days from now and has the owner confirm it.
func (s *bookingStack) createConfirmedBooking(t *testing.T, renterID uuid.UUID, days, nights int) *application.BookingDTO {
	t.Helper()
	ctx := context.Background()
	dto, err := s.Service.CreateBooking(ctx, renterID, bookingRequest(s.Product.ID, days, nights))
	require.NoError(t, err)

	dto, err = s.Service.ConfirmBooking(ctx, bookingDomain.Actor{ID: s.Product.OwnerID}, dto.ID)
	require.NoError(t, err)
	return dto
}

func bookingRequest(productID uuid.UUID, days, nights int) application.CreateBookingRequest {
	start := time.Now().UTC().AddDate(0, 0, days)
	return application.CreateBookingRequest{
		ProductID:     productID,
		StartDate:     start.Format(bookingDomain.DateLayout),
		EndDate:       start.AddDate(0, 0, nights).Format(bookingDomain.DateLayout),
		InsuranceTier: "basic",
		PaymentMethod: "card",
	}
}

// startConsumer runs the payment consumer until the test ends.
func (s *bookingStack) startConsumer(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = s.Consumer.Start(ctx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// waitForBooking polls the bookings table until match accepts the row.
func waitForBooking(t *testing.T, db *gorm.DB, bookingID uuid.UUID, timeout time.Duration, match func(repository.BookingModel) bool) repository.BookingModel {
	t.Helper()
	var result repository.BookingModel
	require.Eventually(t, func() bool {
		var model repository.BookingModel
		if err := db.Where("id = ?", bookingID).First(&model).Error; err != nil {
			return false
		}
		if match(model) {
			result = model
			return true
		}
		return false
	}, timeout, 200*time.Millisecond, "booking %s did not reach the expected state", bookingID)
	return result
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type for subject.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType, subject string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		if subject != "" && string(msg.Key) != subject {
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
