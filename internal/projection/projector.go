package projection

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/marketplace-engine/internal/domain/cart"
	"github.com/example/marketplace-engine/internal/domain/order"
	"github.com/example/marketplace-engine/internal/domain/returns"
	"github.com/example/marketplace-engine/internal/domain/user"
	"github.com/example/marketplace-engine/internal/infrastructure/store"
	"github.com/example/marketplace-engine/internal/readmodel"
)

// Projector folds the event stream into the read models served by the query
// handler.
type Projector struct {
	readStore store.ReadStoreInterface
}

func NewProjector(readStore store.ReadStoreInterface) *Projector {
	return &Projector{readStore: readStore}
}

// HandleEvent is the Kafka consumer entry point.
func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}

	log.Printf("[Projector] Received event: %s (aggregate: %s)", event.EventType, event.AggregateType)
	return p.Apply(event)
}

// Apply projects a single stored event. Used by HandleEvent and by replay.
func (p *Projector) Apply(event store.Event) error {
	switch event.AggregateType {
	case cart.AggregateType:
		return p.handleCartEvent(event)
	case order.AggregateType:
		return p.handleOrderEvent(event)
	case returns.AggregateType:
		return p.handleReturnEvent(event)
	case user.AggregateType:
		return p.handleUserEvent(event)
	}
	return nil
}

// Replay projects all events in order, rebuilding every read model.
func (p *Projector) Replay(events []store.Event) error {
	for _, event := range events {
		if err := p.Apply(event); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) handleCartEvent(event store.Event) error {
	switch event.EventType {
	case cart.EventLineAdded:
		var e cart.LineAdded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		line := readmodel.CartLineReadModel{
			LineID:    e.LineID,
			ProductID: e.ProductID,
			SellerID:  e.SellerID,
			Quantity:  e.Quantity,
			UnitPrice: e.UnitPrice,
		}

		updated, err := p.readStore.Update(readmodel.CollectionCarts, e.CartID, func(current any) any {
			model := current.(*readmodel.CartReadModel)
			model.Lines = append(model.Lines, line)
			model.Total = cartTotal(model.Lines)
			return model
		})
		if err != nil {
			return err
		}
		if !updated {
			return p.readStore.Set(readmodel.CollectionCarts, e.CartID, &readmodel.CartReadModel{
				ID:     e.CartID,
				UserID: e.UserID,
				Lines:  []readmodel.CartLineReadModel{line},
				Total:  line.Quantity * line.UnitPrice,
			})
		}

	case cart.EventLineQuantityChanged:
		var e cart.LineQuantityChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionCarts, e.CartID, func(current any) any {
			model := current.(*readmodel.CartReadModel)
			for i := range model.Lines {
				if model.Lines[i].LineID == e.LineID {
					model.Lines[i].Quantity = e.Quantity
					break
				}
			}
			model.Total = cartTotal(model.Lines)
			return model
		})
		return err

	case cart.EventLineRemoved:
		var e cart.LineRemoved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionCarts, e.CartID, func(current any) any {
			model := current.(*readmodel.CartReadModel)
			for i := range model.Lines {
				if model.Lines[i].LineID == e.LineID {
					model.Lines = append(model.Lines[:i], model.Lines[i+1:]...)
					break
				}
			}
			model.Total = cartTotal(model.Lines)
			return model
		})
		return err
	}

	return nil
}

func cartTotal(lines []readmodel.CartLineReadModel) int {
	total := 0
	for _, l := range lines {
		total += l.Quantity * l.UnitPrice
	}
	return total
}

func (p *Projector) handleOrderEvent(event store.Event) error {
	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		items := make([]readmodel.OrderItemReadModel, 0, len(e.Items))
		for _, item := range e.Items {
			items = append(items, readmodel.OrderItemReadModel{
				OrderItemID: item.OrderItemID,
				ProductID:   item.ProductID,
				SellerID:    item.SellerID,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Status:      string(order.StatusCreated),
			})
		}
		return p.readStore.Set(readmodel.CollectionOrders, e.OrderID, &readmodel.OrderReadModel{
			ID:               e.OrderID,
			BuyerID:          e.BuyerID,
			AddressID:        e.AddressID,
			PaymentMethod:    string(e.PaymentMethod),
			Status:           string(order.StatusCreated),
			ProductAmount:    e.ProductAmount,
			DeliveryAmount:   e.DeliveryAmount,
			ProductDiscount:  e.ProductDiscount,
			DeliveryDiscount: e.DeliveryDiscount,
			PointDiscount:    e.PointDiscount,
			TotalPrice:       e.TotalPrice,
			Items:            items,
			CreatedAt:        e.PlacedAt,
			UpdatedAt:        e.PlacedAt,
		})

	case order.EventStatusChanged:
		var e order.StatusChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionOrders, e.OrderID, func(current any) any {
			model := current.(*readmodel.OrderReadModel)
			model.Status = string(e.To)
			for i := range model.Items {
				if model.Items[i].Status == string(e.From) {
					model.Items[i].Status = string(e.To)
				}
			}
			refreshRatable(model)
			model.UpdatedAt = e.ChangedAt
			return model
		})
		return err

	case order.EventPaymentRecorded:
		var e order.PaymentRecorded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionOrders, e.OrderID, func(current any) any {
			model := current.(*readmodel.OrderReadModel)
			if e.Success {
				model.IsPaid = true
			}
			model.UpdatedAt = e.RecordedAt
			return model
		})
		return err

	case order.EventItemStatusChanged:
		var e order.ItemStatusChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionOrders, e.OrderID, func(current any) any {
			model := current.(*readmodel.OrderReadModel)
			for i := range model.Items {
				if model.Items[i].OrderItemID == e.OrderItemID {
					model.Items[i].Status = string(e.To)
					break
				}
			}
			refreshRatable(model)
			model.UpdatedAt = e.ChangedAt
			return model
		})
		return err
	}

	return nil
}

func refreshRatable(model *readmodel.OrderReadModel) {
	for i := range model.Items {
		model.Items[i].CanRate = order.CanRate(order.Status(model.Status), order.Item{
			Status: order.Status(model.Items[i].Status),
		})
	}
}

func (p *Projector) handleReturnEvent(event store.Event) error {
	switch event.EventType {
	case returns.EventReturnRequested:
		var e returns.ReturnRequested
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.readStore.Set(readmodel.CollectionReturns, e.ReturnID, &readmodel.ReturnRequestReadModel{
			ID:          e.ReturnID,
			OrderID:     e.OrderID,
			OrderItemID: e.OrderItemID,
			UserID:      e.UserID,
			SellerID:    e.SellerID,
			Reason:      string(e.Reason),
			Description: e.Description,
			ImageURL:    e.ImageURL,
			Status:      string(returns.StatusPending),
			RequestedAt: e.RequestedAt,
		})

	case returns.EventReturnApproved:
		var e returns.ReturnApproved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionReturns, e.ReturnID, func(current any) any {
			model := current.(*readmodel.ReturnRequestReadModel)
			model.Status = string(returns.StatusApproved)
			approvedAt := e.ApprovedAt
			model.ApprovedAt = &approvedAt
			return model
		})
		return err

	case returns.EventReturnRejected:
		var e returns.ReturnRejected
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionReturns, e.ReturnID, func(current any) any {
			model := current.(*readmodel.ReturnRequestReadModel)
			model.Status = string(returns.StatusRejected)
			model.RejectReason = string(e.RejectReason)
			return model
		})
		return err

	case returns.EventReturnEscalated:
		var e returns.ReturnEscalated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionReturns, e.ReturnID, func(current any) any {
			model := current.(*readmodel.ReturnRequestReadModel)
			model.Status = string(returns.StatusEscalated)
			model.EscalationReason = e.Reason
			return model
		})
		return err

	case returns.EventReturnResolved:
		var e returns.ReturnResolved
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionReturns, e.ReturnID, func(current any) any {
			model := current.(*readmodel.ReturnRequestReadModel)
			model.Status = string(returns.StatusResolved)
			model.AcceptRefund = e.AcceptRefund
			if e.AcceptRefund {
				model.IsRefunded = true
			}
			return model
		})
		return err

	case returns.EventReturnRefunded:
		var e returns.ReturnRefunded
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionReturns, e.ReturnID, func(current any) any {
			model := current.(*readmodel.ReturnRequestReadModel)
			model.Status = string(returns.StatusRefunded)
			model.IsRefunded = true
			return model
		})
		return err
	}

	return nil
}

func (p *Projector) handleUserEvent(event store.Event) error {
	switch event.EventType {
	case user.EventUserCreated:
		var e user.UserCreated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		return p.readStore.Set(readmodel.CollectionUsers, e.UserID, &readmodel.UserReadModel{
			ID:           e.UserID,
			Email:        e.Email,
			PasswordHash: e.PasswordHash,
			Name:         e.Name,
			Role:         string(e.Role),
			IsActive:     true,
			CreatedAt:    e.CreatedAt,
		})

	case user.EventUserUpdated:
		var e user.UserUpdated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionUsers, e.UserID, func(current any) any {
			model := current.(*readmodel.UserReadModel)
			model.Name = e.Name
			return model
		})
		return err

	case user.EventUserPasswordChanged:
		var e user.UserPasswordChanged
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionUsers, e.UserID, func(current any) any {
			model := current.(*readmodel.UserReadModel)
			model.PasswordHash = e.PasswordHash
			return model
		})
		return err

	case user.EventUserDeactivated:
		var e user.UserDeactivated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionUsers, e.UserID, func(current any) any {
			model := current.(*readmodel.UserReadModel)
			model.IsActive = false
			return model
		})
		return err

	case user.EventUserActivated:
		var e user.UserActivated
		if err := json.Unmarshal(event.Data, &e); err != nil {
			return err
		}
		_, err := p.readStore.Update(readmodel.CollectionUsers, e.UserID, func(current any) any {
			model := current.(*readmodel.UserReadModel)
			model.IsActive = true
			return model
		})
		return err
	}

	return nil
}
