package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/readmodel"
)

// Handler turns selected events into notifications on the configured sink.
type Handler struct {
	sink      Sink
	readStore store.ReadStoreInterface
}

func NewHandler(sink Sink, readStore store.ReadStoreInterface) *Handler {
	return &Handler{sink: sink, readStore: readStore}
}

// HandleEvent processes an event from Kafka. Delivery failures are logged
// and dropped.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	msg, ok := h.compose(event)
	if !ok {
		return nil
	}

	if msg.Email == "" {
		if u, found := h.user(msg.UserID); found {
			msg.Email = u.Email
		} else {
			log.Printf("[Notifier] No address for user %s, dropping %q", msg.UserID, msg.Subject)
			return nil
		}
	}

	if err := h.sink.Deliver(ctx, msg); err != nil {
		log.Printf("[Notifier] Failed to deliver %q to %s: %v", msg.Subject, msg.Email, err)
	}
	return nil
}

// compose maps an event to a message, reporting whether the event is one the
// notifier cares about.
func (h *Handler) compose(event store.Event) (Message, bool) {
	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return Message{}, false
		}
		return Message{
			Severity: SeverityInfo,
			UserID:   e.BuyerID,
			Subject:  fmt.Sprintf("Order %s received", shortID(e.OrderID)),
			Lines: []string{
				fmt.Sprintf("Thank you for your order of %d item(s).", len(e.Items)),
				fmt.Sprintf("Total: %d", e.TotalPrice),
			},
		}, true

	case order.EventStatusChanged:
		var e order.StatusChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return Message{}, false
		}
		severity, tell := statusSeverity(e.To)
		if !tell {
			return Message{}, false
		}
		o, found := h.order(e.OrderID)
		if !found {
			return Message{}, false
		}
		return Message{
			Severity: severity,
			UserID:   o.BuyerID,
			Subject:  fmt.Sprintf("Order %s is now %s", shortID(e.OrderID), e.To),
			Lines:    []string{fmt.Sprintf("Your order moved from %s to %s.", e.From, e.To)},
		}, true

	case returns.EventReturnResolved:
		var e returns.ReturnResolved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return Message{}, false
		}
		rm, found := h.returnRequest(e.ReturnID)
		if !found {
			return Message{}, false
		}
		verdict := "declined"
		if e.AcceptRefund {
			verdict = "accepted, a refund is on its way"
		}
		return Message{
			Severity: SeverityInfo,
			UserID:   rm.UserID,
			Subject:  fmt.Sprintf("Return request %s resolved", shortID(e.ReturnID)),
			Lines:    []string{fmt.Sprintf("Our staff reviewed your escalation: refund %s.", verdict)},
		}, true
	}

	return Message{}, false
}

// statusSeverity decides which status changes the buyer hears about.
func statusSeverity(s order.Status) (Severity, bool) {
	switch s {
	case order.StatusRejected, order.StatusCancelled:
		return SeverityWarning, true
	case order.StatusPaymentFailed:
		return SeverityCritical, true
	case order.StatusDelivered, order.StatusShipped, order.StatusRefunded:
		return SeverityInfo, true
	}
	return SeverityInfo, false
}

func (h *Handler) user(id string) (*readmodel.UserReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionUsers, id)
	if err != nil || !ok {
		return nil, false
	}
	u, ok := data.(*readmodel.UserReadModel)
	return u, ok
}

func (h *Handler) order(id string) (*readmodel.OrderReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionOrders, id)
	if err != nil || !ok {
		return nil, false
	}
	o, ok := data.(*readmodel.OrderReadModel)
	return o, ok
}

func (h *Handler) returnRequest(id string) (*readmodel.ReturnRequestReadModel, bool) {
	data, ok, err := h.readStore.Get(readmodel.CollectionReturns, id)
	if err != nil || !ok {
		return nil, false
	}
	r, ok := data.(*readmodel.ReturnRequestReadModel)
	return r, ok
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
