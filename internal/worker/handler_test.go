package worker

import (
	"context"
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

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/receipt"
)

type fakeOrders map[string]*domain.Order

func (f fakeOrders) GetByID(_ context.Context, id string) (*domain.Order, error) {
	return f[id], nil
}

type fakeUsers map[int64]*domain.User

func (f fakeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return f[id], nil
}

type emailCapture struct {
	mu       sync.Mutex
	messages []email.Message
	status   int
}

func (e *emailCapture) handler(w http.ResponseWriter, r *http.Request) {
	var msg email.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	e.mu.Lock()
	e.messages = append(e.messages, msg)
	e.mu.Unlock()

	status := e.status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (e *emailCapture) sent() []email.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]email.Message(nil), e.messages...)
}

const (
	orderID        = "6a0c8d1e-2f3b-4c5d-9e8f-7a6b5c4d3e2f"
	guestOrderID   = "1b2c3d4e-5f60-4718-9a0b-1c2d3e4f5a6b"
	noEmailOrderID = "9f8e7d6c-5b4a-4392-8170-6f5e4d3c2b1a"
	orphanOrderID  = "2a3b4c5d-6e7f-4081-9293-a4b5c6d7e8f9"
)

func fixture(t *testing.T, capture *emailCapture) *ReceiptHandler {
	t.Helper()

	userID := int64(5)
	deletedUserID := int64(6)
	lines := []domain.OrderLine{{ProductID: 1, ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")}}
	total := decimal.RequireFromString("20.00")
	orders := fakeOrders{
		orderID: {
			ID: orderID, UserID: &userID, Total: total, Lines: lines,
			Status: domain.OrderStatusCommitted, CreatedAt: time.Now(),
		},
		guestOrderID: {
			ID:        guestOrderID,
			Customer:  &domain.Customer{Name: "Luis", Email: "luis@example.com", Address: "Calle 1", City: "Lima"},
			Total:     total,
			Lines:     lines,
			Status:    domain.OrderStatusCommitted,
			CreatedAt: time.Now(),
		},
		noEmailOrderID: {
			ID: noEmailOrderID, Total: total, Lines: lines,
			Status: domain.OrderStatusCommitted, CreatedAt: time.Now(),
		},
		orphanOrderID: {
			ID: orphanOrderID, UserID: &deletedUserID, Total: total, Lines: lines,
			Status: domain.OrderStatusCommitted, CreatedAt: time.Now(),
		},
	}
	users := fakeUsers{userID: {ID: userID, Name: "Ana", Email: "ana@example.com"}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", capture.handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewReceiptHandler(orders, users, receipt.PDFRenderer{}, email.NewClient(server.URL, server.Client()),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func payload(t *testing.T, event domain.OrderPlacedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return data
}

func TestReceiptHandler_Handle(t *testing.T) {
	userID := int64(5)

	t.Run("mails the rendered receipt", func(t *testing.T) {
		capture := &emailCapture{}
		h := fixture(t, capture)

		if err := h.Handle(context.Background(), payload(t, domain.OrderPlacedEvent{OrderID: orderID, UserID: &userID})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sent := capture.sent()
		if len(sent) != 1 {
			t.Fatalf("expected 1 email, got %d", len(sent))
		}
		msg := sent[0]
		if msg.To != "ana@example.com" {
			t.Errorf("unexpected recipient %s", msg.To)
		}
		if !strings.Contains(msg.Subject, orderID) {
			t.Errorf("expected subject to contain order id, got %s", msg.Subject)
		}
		doc, err := base64.StdEncoding.DecodeString(msg.Attachment)
		if err != nil || !strings.HasPrefix(string(doc), "%PDF") {
			t.Errorf("expected base64 pdf attachment, got err=%v", err)
		}
	})

	t.Run("mails guest orders to the checkout customer", func(t *testing.T) {
		capture := &emailCapture{}
		h := fixture(t, capture)

		if err := h.Handle(context.Background(), payload(t, domain.OrderPlacedEvent{OrderID: guestOrderID})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sent := capture.sent()
		if len(sent) != 1 {
			t.Fatalf("expected 1 email, got %d", len(sent))
		}
		if sent[0].To != "luis@example.com" {
			t.Errorf("unexpected recipient %s", sent[0].To)
		}
		if !strings.Contains(sent[0].Body, "Luis") {
			t.Errorf("expected greeting by name, got %q", sent[0].Body)
		}
	})

	t.Run("skips orders without a contact email", func(t *testing.T) {
		capture := &emailCapture{}
		h := fixture(t, capture)

		if err := h.Handle(context.Background(), payload(t, domain.OrderPlacedEvent{OrderID: noEmailOrderID})); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := len(capture.sent()); n != 0 {
			t.Errorf("expected no email, got %d", n)
		}
	})

	t.Run("missing purchaser is permanent", func(t *testing.T) {
		h := fixture(t, &emailCapture{})

		err := h.Handle(context.Background(), payload(t, domain.OrderPlacedEvent{OrderID: orphanOrderID}))
		var permanent *messaging.PermanentError
		if !errors.As(err, &permanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
	})

	t.Run("malformed payload is permanent", func(t *testing.T) {
		h := fixture(t, &emailCapture{})

		err := h.Handle(context.Background(), []byte("{"))
		var permanent *messaging.PermanentError
		if !errors.As(err, &permanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
	})

	t.Run("unknown order is permanent", func(t *testing.T) {
		h := fixture(t, &emailCapture{})

		err := h.Handle(context.Background(), payload(t, domain.OrderPlacedEvent{OrderID: "missing", UserID: &userID}))
		var permanent *messaging.PermanentError
		if !errors.As(err, &permanent) {
			t.Errorf("expected permanent error, got %v", err)
		}
	})

	t.Run("email outage is retried", func(t *testing.T) {
		h := fixture(t, &emailCapture{status: http.StatusServiceUnavailable})

		err := h.Handle(context.Background(), payload(t, domain.OrderPlacedEvent{OrderID: orderID, UserID: &userID}))
		if err == nil {
			t.Fatal("expected error")
		}
		var permanent *messaging.PermanentError
		if errors.As(err, &permanent) {
			t.Errorf("expected transient error, got %v", err)
		}
	})
}
