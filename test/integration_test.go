//go:build integration

package test

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/joao-fontenele/storefront/internal/auth"
	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/checkout"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/receipt"
	"github.com/joao-fontenele/storefront/internal/store"
	"github.com/joao-fontenele/storefront/internal/worker"
)

type StorefrontSuite struct {
	suite.Suite

	ctx      context.Context
	cancel   context.CancelFunc
	db       *sql.DB
	redis    *redis.Client
	brokers  []string
	logger   *slog.Logger
	cleanups []func()

	products *inventory.ProductRepository
	users    *auth.UserRepository
	orders   *orders.OrderRepository
	engine   *checkout.Engine
}

func TestStorefrontSuite(t *testing.T) {
	suite.Run(t, new(StorefrontSuite))
}

func (s *StorefrontSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	pg := SetupPostgres(s.ctx, s.T())
	s.cleanups = append(s.cleanups, pg.Cleanup)

	client, cleanupRedis := SetupRedis(s.ctx, s.T())
	s.redis = client
	s.cleanups = append(s.cleanups, cleanupRedis)

	brokers, cleanupKafka := SetupKafka(s.ctx, s.T())
	s.brokers = brokers
	s.cleanups = append(s.cleanups, cleanupKafka)

	db, err := store.Open(s.ctx, config.Database{URL: pg.ConnStr, MaxOpenConns: 20, MaxIdleConns: 5})
	s.Require().NoError(err)
	s.db = db

	s.products = inventory.NewProductRepository(db)
	s.users = auth.NewUserRepository(db)
	s.orders = orders.NewOrderRepository(db)

	s.engine, err = checkout.NewEngine(checkout.NewSQLStore(db), s.logger)
	s.Require().NoError(err)
}

func (s *StorefrontSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		s.cleanups[i]()
	}
	s.cancel()
}

func (s *StorefrontSuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, `
		TRUNCATE order_items, orders, cart_items, carts, products, users RESTART IDENTITY CASCADE
	`)
	s.Require().NoError(err)
	s.Require().NoError(s.redis.FlushAll(s.ctx).Err())
}

func (s *StorefrontSuite) seedProduct(name, price string, stock int) *domain.Product {
	p := &domain.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	s.Require().NoError(s.products.Create(s.ctx, p))
	return p
}

func (s *StorefrontSuite) seedUser(email string) *domain.User {
	u := &domain.User{Name: "Ada Lovelace", Email: email, PasswordHash: "x"}
	s.Require().NoError(s.users.Create(s.ctx, u))
	return u
}

func (s *StorefrontSuite) stockOf(id int64) int {
	p, err := s.products.GetByID(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(p)
	return p.Stock
}

func (s *StorefrontSuite) orderCount() int {
	var n int
	s.Require().NoError(s.db.QueryRowContext(s.ctx, `SELECT COUNT(*) FROM orders`).Scan(&n))
	return n
}

func (s *StorefrontSuite) TestCheckout_CommitsOrderAndClearsCart() {
	user := s.seedUser("ada@example.com")
	keyboard := s.seedProduct("Keyboard", "10.00", 5)
	mouse := s.seedProduct("Mouse", "2.50", 3)

	carts := cart.NewService(cart.NewSQLStore(s.db), s.products, s.logger)
	owner := domain.CartOwner{UserID: user.ID}
	_, err := carts.AddItem(s.ctx, owner, keyboard.ID, 2)
	s.Require().NoError(err)
	_, err = carts.AddItem(s.ctx, owner, mouse.ID, 1)
	s.Require().NoError(err)

	order, err := s.engine.Checkout(s.ctx, owner, []domain.CheckoutLine{
		{ProductID: keyboard.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
		{ProductID: mouse.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("2.50")},
	}, decimal.RequireFromString("22.50"))
	s.Require().NoError(err)

	s.Equal(3, s.stockOf(keyboard.ID))
	s.Equal(2, s.stockOf(mouse.ID))

	stored, err := s.orders.GetByID(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.True(stored.Total.Equal(decimal.RequireFromString("22.50")), "total %s", stored.Total)
	s.Require().Len(stored.Lines, 2)
	s.Equal("Keyboard", stored.Lines[0].ProductName)
	s.Require().NotNil(stored.UserID)
	s.Equal(user.ID, *stored.UserID)

	listed, err := s.orders.ListByUser(s.ctx, user.ID)
	s.Require().NoError(err)
	s.Len(listed, 1)

	c, err := carts.Get(s.ctx, owner)
	s.Require().NoError(err)
	s.Empty(c.Lines)
}

func (s *StorefrontSuite) TestCheckout_InsufficientStockLeavesNothingBehind() {
	plenty := s.seedProduct("Cable", "5.00", 10)
	scarce := s.seedProduct("Monitor", "100.00", 1)

	_, err := s.engine.Checkout(s.ctx, domain.CartOwner{CartID: uuid.NewString()}, []domain.CheckoutLine{
		{ProductID: plenty.ID, Quantity: 4, UnitPrice: decimal.RequireFromString("5.00")},
		{ProductID: scarce.ID, Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")},
	}, decimal.RequireFromString("220.00"))
	s.Require().ErrorIs(err, domain.ErrInsufficientStock)

	s.Equal(10, s.stockOf(plenty.ID))
	s.Equal(1, s.stockOf(scarce.ID))
	s.Zero(s.orderCount())
}

func (s *StorefrontSuite) TestCheckout_TotalMismatchKeepsCart() {
	product := s.seedProduct("Headset", "40.00", 5)
	owner := domain.CartOwner{CartID: uuid.NewString()}

	carts := cart.NewService(cart.NewSQLStore(s.db), s.products, s.logger)
	_, err := carts.AddItem(s.ctx, owner, product.ID, 1)
	s.Require().NoError(err)

	_, err = s.engine.Checkout(s.ctx, owner, []domain.CheckoutLine{
		{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("30.00")},
	}, decimal.RequireFromString("30.00"))
	s.Require().ErrorIs(err, domain.ErrTotalMismatch)

	s.Equal(5, s.stockOf(product.ID))
	s.Zero(s.orderCount())

	c, err := carts.Get(s.ctx, owner)
	s.Require().NoError(err)
	s.Len(c.Lines, 1)
}

func (s *StorefrontSuite) TestCheckout_LastUnitGoesToExactlyOneBuyer() {
	product := s.seedProduct("Laptop Stand", "39.50", 1)

	const buyers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.engine.Checkout(s.ctx, domain.CartOwner{CartID: uuid.NewString()}, []domain.CheckoutLine{
				{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("39.50")},
			}, decimal.RequireFromString("39.50"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected++
			default:
				s.T().Errorf("unexpected checkout error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(1, succeeded)
	s.Equal(buyers-1, rejected)
	s.Equal(0, s.stockOf(product.ID))
	s.Equal(1, s.orderCount())
}

func (s *StorefrontSuite) TestCheckout_ReversedCartsBothSucceed() {
	const rounds = 20
	mug := s.seedProduct("Mug", "5.00", 2*rounds)
	hat := s.seedProduct("Cap", "8.00", 2*rounds)

	forward := []domain.CheckoutLine{{ProductID: mug.ID, Quantity: 1}, {ProductID: hat.ID, Quantity: 1}}
	reversed := []domain.CheckoutLine{{ProductID: hat.ID, Quantity: 1}, {ProductID: mug.ID, Quantity: 1}}

	for range rounds {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, lines := range [][]domain.CheckoutLine{forward, reversed} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.engine.Checkout(s.ctx, domain.CartOwner{CartID: uuid.NewString()}, lines, decimal.RequireFromString("13.00"))
			}()
		}
		wg.Wait()

		for _, err := range errs {
			s.Require().NoError(err)
		}
	}

	s.Equal(0, s.stockOf(mug.ID))
	s.Equal(0, s.stockOf(hat.ID))
	s.Equal(2*rounds, s.orderCount())
}

func (s *StorefrontSuite) TestCheckout_GuestCustomerPersisted() {
	product := s.seedProduct("Poster", "15.00", 2)
	customer := domain.Customer{
		Name:       "Luis",
		Email:      "luis@example.com",
		Address:    "Calle 1",
		Phone:      "555-0101",
		City:       "Lima",
		PostalCode: "15001",
	}

	order, err := s.engine.Checkout(s.ctx, domain.CartOwner{CartID: uuid.NewString()}, []domain.CheckoutLine{
		{ProductID: product.ID, Quantity: 1},
	}, decimal.RequireFromString("15.00"), checkout.WithCustomer(customer))
	s.Require().NoError(err)

	stored, err := s.orders.GetByID(s.ctx, order.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored)
	s.Nil(stored.UserID)
	s.Require().NotNil(stored.Customer)
	s.Equal(customer, *stored.Customer)
}

func (s *StorefrontSuite) TestCart_GuestLifecycle() {
	product := s.seedProduct("Webcam", "25.00", 5)
	owner := domain.CartOwner{CartID: uuid.NewString()}
	carts := cart.NewService(cart.NewSQLStore(s.db), s.products, s.logger)

	_, err := carts.AddItem(s.ctx, owner, product.ID, 1)
	s.Require().NoError(err)
	c, err := carts.AddItem(s.ctx, owner, product.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(c.Lines, 1)
	s.Equal(3, c.Lines[0].Quantity)
	s.Equal(owner.CartID, c.ID)

	c, err = carts.UpdateQuantity(s.ctx, owner, product.ID, 5)
	s.Require().NoError(err)
	s.Equal(5, c.Lines[0].Quantity)
	s.True(c.Total().Equal(decimal.RequireFromString("125.00")))

	c, err = carts.RemoveItem(s.ctx, owner, product.ID)
	s.Require().NoError(err)
	s.Empty(c.Lines)

	_, err = carts.AddItem(s.ctx, owner, product.ID, 1)
	s.Require().NoError(err)
	s.Require().NoError(carts.Clear(s.ctx, owner))

	c, err = carts.Get(s.ctx, owner)
	s.Require().NoError(err)
	s.Empty(c.Lines)
}

func (s *StorefrontSuite) TestUsers_DuplicateEmailRejected() {
	s.seedUser("grace@example.com")

	err := s.users.Create(s.ctx, &domain.User{Name: "Grace", Email: "grace@example.com", PasswordHash: "y"})
	s.Require().ErrorIs(err, domain.ErrDuplicateAccount)
}

func (s *StorefrontSuite) TestProductCache_ServesUntilInvalidated() {
	product := s.seedProduct("Speaker", "60.00", 4)
	cache := inventory.NewCache(s.products, s.redis, time.Minute, s.logger)

	got, err := cache.GetByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(4, got.Stock)

	_, err = s.db.ExecContext(s.ctx, `UPDATE products SET stock = 1 WHERE id = $1`, product.ID)
	s.Require().NoError(err)

	got, err = cache.GetByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(4, got.Stock)

	cache.Invalidate(s.ctx, product.ID)

	got, err = cache.GetByID(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Equal(1, got.Stock)
}

func (s *StorefrontSuite) TestOrderPlaced_ReceiptMailedThroughKafka() {
	user := s.seedUser("linus@example.com")
	product := s.seedProduct("Notebook", "12.00", 3)

	order, err := s.engine.Checkout(s.ctx, domain.CartOwner{UserID: user.ID}, []domain.CheckoutLine{
		{ProductID: product.ID, Quantity: 1, UnitPrice: decimal.RequireFromString("12.00")},
	}, decimal.RequireFromString("12.00"))
	s.Require().NoError(err)

	mailbox := &emailCapture{}
	mailServer := httptest.NewServer(http.HandlerFunc(mailbox.handler))
	defer mailServer.Close()

	topic := "order.placed." + strings.ReplaceAll(uuid.NewString(), "-", "")
	producer := messaging.NewProducer(s.brokers, topic)
	defer func() { _ = producer.Close() }()

	s.Require().Eventually(func() bool {
		return producer.Publish(s.ctx, order.ID, domain.NewOrderPlacedEvent(order)) == nil
	}, 30*time.Second, 500*time.Millisecond)

	consumer := messaging.NewConsumer(s.brokers, topic, "receipt-worker-test", s.logger,
		messaging.WithStartOffset(kafkago.FirstOffset),
	)
	defer func() { _ = consumer.Close() }()

	receipts := worker.NewReceiptHandler(
		s.orders,
		s.users,
		receipt.PDFRenderer{StoreName: "Storefront"},
		email.NewClient(mailServer.URL, mailServer.Client()),
		s.logger,
	)

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(ctx, receipts.Handle) }()

	s.Require().Eventually(func() bool {
		return len(mailbox.messages()) == 1
	}, time.Minute, 250*time.Millisecond)

	cancel()
	s.ErrorIs(<-done, context.Canceled)

	msg := mailbox.messages()[0]
	s.Equal("linus@example.com", msg.To)
	s.Contains(msg.Subject, order.ID)
	s.Equal("receipt-"+order.ID+".pdf", msg.AttachmentName)

	pdf, err := base64.StdEncoding.DecodeString(msg.Attachment)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(string(pdf), "%PDF"))
}

type emailCapture struct {
	mu   sync.Mutex
	sent []email.Message
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var msg email.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.sent = append(e.sent, msg)
	e.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"ok":true}`)
}

func (e *emailCapture) messages() []email.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := make([]email.Message, len(e.sent))
	copy(result, e.sent)
	return result
}
