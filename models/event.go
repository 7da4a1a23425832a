package models

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusUpdated = "order.status_updated"
	EventPaymentCheck       = "order.payment_check"
	CommandCartClear        = "cart.clear"
)

type OrderEvent struct {
	Type          string        `json:"type"`
	OrderID       string        `json:"orderId"`
	UserID        string        `json:"userId"`
	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Total         float64       `json:"total"`
	Occurred      time.Time     `json:"occurred"`
}

func NewOrderEvent(eventType string, o *Order) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       o.ID.Hex(),
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Total:         o.GrandTotal,
		Occurred:      time.Now(),
	}
}

// CartCommand asks the cart side to act on an owner's cart.
type CartCommand struct {
	Type     string    `json:"type"`
	UserID   string    `json:"userId"`
	OrderID  string    `json:"orderId,omitempty"`
	Occurred time.Time `json:"occurred"`
}
