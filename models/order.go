package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string
type PaymentStatus string
type PaymentMethod string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"

	PaymentMethodCOD        PaymentMethod = "COD"
	PaymentMethodCard       PaymentMethod = "CARD"
	PaymentMethodUPI        PaymentMethod = "UPI"
	PaymentMethodNetBanking PaymentMethod = "NETBANKING"
)

const MaxOrderNotesLength = 500

// EstimatedDeliveryDelay is added to the creation time for the naive delivery estimate.
const EstimatedDeliveryDelay = 3 * 24 * time.Hour

// funnel is the forward order of the non-terminal statuses.
var funnel = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusShipped,
	OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusCancelled || s.rank() >= 0
}

func (s OrderStatus) rank() int {
	for i, st := range funnel {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether an order may move from s to next: one step
// forward along the funnel, or cancellation from anything but delivered.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == OrderStatusCancelled || s == OrderStatusDelivered {
		return false
	}
	if next == OrderStatusCancelled {
		return s.Valid()
	}
	from, to := s.rank(), next.rank()
	return from >= 0 && to == from+1
}

// CustomerCancellable reports whether the owner may still cancel.
func (s OrderStatus) CustomerCancellable() bool {
	switch s {
	case OrderStatusPendingPayment, OrderStatusConfirmed, OrderStatusPreparing:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetBanking:
		return true
	}
	return false
}

func (m PaymentMethod) Online() bool {
	return m != PaymentMethodCOD
}

type OrderAddress struct {
	AddressID primitive.ObjectID `bson:"addressId" json:"addressId"`
	Details   string             `bson:"details" json:"details"`
}

// OrderItem is a frozen snapshot of the product at order time.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Image     string             `bson:"image" json:"image"`
	Variant   string             `bson:"variant" json:"variant"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

type Order struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID            string             `bson:"userId" json:"userId"`
	Address           OrderAddress       `bson:"address" json:"address"`
	Items             []OrderItem        `bson:"items" json:"items"`
	ItemsTotal        float64            `bson:"itemsTotal" json:"itemsTotal"`
	DeliveryCharge    float64            `bson:"deliveryCharge" json:"deliveryCharge"`
	HandlingCharge    float64            `bson:"handlingCharge" json:"handlingCharge"`
	TipAmount         float64            `bson:"tipAmount" json:"tipAmount"`
	DonationAmount    float64            `bson:"donationAmount" json:"donationAmount"`
	GrandTotal        float64            `bson:"grandTotal" json:"grandTotal"`
	PaymentMethod     PaymentMethod      `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus     PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	PaymentRef        string             `bson:"paymentRef,omitempty" json:"paymentRef,omitempty"`
	Status            OrderStatus        `bson:"status" json:"status"`
	OrderNotes        string             `bson:"orderNotes,omitempty" json:"orderNotes,omitempty"`
	CancelReason      string             `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	EstimatedDelivery time.Time          `bson:"estimatedDelivery" json:"estimatedDelivery"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// OrderChange is applied by a compare-and-set on the current status.
// Empty fields are left unchanged.
type OrderChange struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentRef    string
	CancelReason  string
}

type OrderFilter struct {
	UserID string
	Status OrderStatus
	Limit  int
}
