package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection     = "users"
	ProductsCollection  = "products"
	OrdersCollection    = "orders"
	CartsCollection     = "carts"
	AddressesCollection = "addresses"
	BlacklistCollection = "blacklist_tokens"
)

type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

func ConnectMongo(ctx context.Context, uri, dbName string) (*Mongo, error) {
	if uri == "" || dbName == "" {
		return nil, fmt.Errorf("mongo uri and database name are required")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Mongo{Client: client, DB: client.Database(dbName)}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the invariants rely on: one cart per
// owner, one default address per user, unique emails and token expiry.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		CartsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_cart_owner")},
		},
		AddressesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("address_owner")},
			{
				Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isDefault", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("uniq_default_address").
					SetPartialFilterExpression(bson.M{"isDefault": true}),
			},
		},
		OrdersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("orders_by_owner")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("orders_by_status")},
		},
		ProductsCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("products_by_category")},
		},
		UsersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_email")},
		},
		BlacklistCollection: {
			{Keys: bson.D{{Key: "token", Value: 1}}, Options: options.Index().SetUnique(true).SetName("uniq_token")},
			{Keys: bson.D{{Key: "exp", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0).SetName("token_expiry")},
		},
	}

	for name, ims := range indexes {
		if _, err := m.DB.Collection(name).Indexes().CreateMany(ctx, ims); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

func (m *Mongo) Store() *Store {
	return &Store{
		Carts:     &MongoCartRepository{coll: m.DB.Collection(CartsCollection)},
		Products:  &MongoProductRepository{coll: m.DB.Collection(ProductsCollection)},
		Addresses: &MongoAddressRepository{coll: m.DB.Collection(AddressesCollection)},
		Orders:    &MongoOrderRepository{coll: m.DB.Collection(OrdersCollection)},
		Users:     &MongoUserRepository{coll: m.DB.Collection(UsersCollection)},
		Tokens:    &MongoTokenBlacklist{coll: m.DB.Collection(BlacklistCollection)},
	}
}
