package database

import (
	"context"
	"errors"
	"time"

	"grocery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrVersionConflict = errors.New("document was modified concurrently")
	ErrStatusConflict  = errors.New("order status changed concurrently")
)

type CartRepository interface {
	// FindByUser returns ErrNotFound when the owner has no cart.
	FindByUser(ctx context.Context, userID string) (*models.Cart, error)
	// Save inserts a cart with Version 0 or replaces the stored cart when its
	// version still matches, bumping cart.Version. A mismatch returns
	// ErrVersionConflict.
	Save(ctx context.Context, cart *models.Cart) error
	// DeleteByUser succeeds when there is nothing to delete.
	DeleteByUser(ctx context.Context, userID string) error
}

type ProductRepository interface {
	// FindByID returns nil, nil when the product does not exist.
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
}

type AddressRepository interface {
	// FindOwnedByID returns nil, nil unless the address exists and belongs to userID.
	FindOwnedByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Address, error)
	ListByUser(ctx context.Context, userID string) ([]models.Address, error)
	// Create returns ErrDuplicateKey when a second default would be stored.
	Create(ctx context.Context, a *models.Address) error
	// SetDefault clears the current default then flags id.
	SetDefault(ctx context.Context, userID string, id primitive.ObjectID) error
	DeleteOwned(ctx context.Context, userID string, id primitive.ObjectID) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindOwnedByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Order, error)
	// List returns newest first.
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	// UpdateIfStatus applies change only while the order is still in status
	// from, returning the updated order or ErrStatusConflict.
	UpdateIfStatus(ctx context.Context, id primitive.ObjectID, from models.OrderStatus, change models.OrderChange) (*models.Order, error)
}

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
}

type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, exp time.Time) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Store bundles every repository the service needs.
type Store struct {
	Carts     CartRepository
	Products  ProductRepository
	Addresses AddressRepository
	Orders    OrderRepository
	Users     UserRepository
	Tokens    TokenBlacklist
}
