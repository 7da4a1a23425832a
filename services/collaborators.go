package services

import (
	"context"

	"grocery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductCatalog resolves live product data. FindByID returns nil, nil when
// the product does not exist.
type ProductCatalog interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
}

// AddressBook returns nil, nil unless the address exists and belongs to userID.
type AddressBook interface {
	FindOwnedByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Address, error)
}

// CartClearer empties an owner's cart after checkout.
type CartClearer interface {
	ClearCart(ctx context.Context, owner string) error
}

// CartReader exposes the stored cart for checkout.
type CartReader interface {
	StoredCart(ctx context.Context, owner string) (*models.Cart, error)
}

// PaymentScheduler arranges a later ExpirePendingPayment for an order.
type PaymentScheduler interface {
	SchedulePaymentCheck(ctx context.Context, orderID string) error
}
