package database

import (
	"context"
	"errors"
	"time"

	"grocery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoCartRepository struct {
	coll *mongo.Collection
}

func (r *MongoCartRepository) FindByUser(ctx context.Context, userID string) (*models.Cart, error) {
	var cart models.Cart
	err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *MongoCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	now := time.Now()
	next := *cart
	next.Version = cart.Version + 1
	next.UpdatedAt = now

	if cart.Version == 0 {
		next.ID = primitive.NewObjectID()
		next.CreatedAt = now
		if _, err := r.coll.InsertOne(ctx, next); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrVersionConflict
			}
			return err
		}
		*cart = next
		return nil
	}

	res, err := r.coll.ReplaceOne(ctx, bson.M{"userId": cart.UserID, "version": cart.Version}, next)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrVersionConflict
	}
	*cart = next
	return nil
}

func (r *MongoCartRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"userId": userID})
	return err
}
