package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/receipt"
)

type OrderReader interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
}

type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// ReceiptHandler mails a rendered receipt for every placed order whose
// purchaser left a contact email.
type ReceiptHandler struct {
	orders   OrderReader
	users    receipt.UserReader
	renderer receipt.Renderer
	mailer   Mailer
	logger   *slog.Logger
}

func NewReceiptHandler(orders OrderReader, users receipt.UserReader, renderer receipt.Renderer, mailer Mailer, logger *slog.Logger) *ReceiptHandler {
	return &ReceiptHandler{
		orders:   orders,
		users:    users,
		renderer: renderer,
		mailer:   mailer,
		logger:   logger,
	}
}

func (h *ReceiptHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return messaging.Permanent(fmt.Errorf("unmarshal order placed event: %w", err))
	}

	h.logger.InfoContext(ctx, "processing order placed event", "order_id", event.OrderID)

	order, err := h.orders.GetByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("load order %s: %w", event.OrderID, err)
	}
	if order == nil {
		return messaging.Permanent(&domain.NotFoundError{Entity: "order", ID: event.OrderID})
	}

	rcpt, err := receipt.Build(ctx, order, h.users)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return messaging.Permanent(err)
		}
		return err
	}
	if rcpt.PurchaserEmail == "" {
		h.logger.InfoContext(ctx, "skipping receipt for order without contact email", "order_id", order.ID)
		return nil
	}

	var doc bytes.Buffer
	if err := h.renderer.Render(&doc, rcpt); err != nil {
		return messaging.Permanent(fmt.Errorf("render receipt: %w", err))
	}

	msg := email.Message{
		To:             rcpt.PurchaserEmail,
		Subject:        "Your receipt for order " + order.ID,
		Body:           fmt.Sprintf("Hi %s, thanks for your purchase. Your total was %s.", rcpt.PurchaserName, order.Total.StringFixed(2)),
		Attachment:     base64.StdEncoding.EncodeToString(doc.Bytes()),
		AttachmentName: "receipt-" + order.ID + ".pdf",
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		var statusErr *email.StatusError
		if errors.As(err, &statusErr) && !statusErr.Retryable() {
			return messaging.Permanent(fmt.Errorf("send receipt: %w", err))
		}
		return fmt.Errorf("send receipt: %w", err)
	}

	h.logger.InfoContext(ctx, "receipt sent", "order_id", order.ID, "to", rcpt.PurchaserEmail)
	return nil
}
