package database

import (
	"context"
	"errors"
	"time"

	"grocery/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAddressRepository struct {
	coll *mongo.Collection
}

func (r *MongoAddressRepository) FindOwnedByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Address, error) {
	var addr models.Address
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "userId": userID}).Decode(&addr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func (r *MongoAddressRepository) ListByUser(ctx context.Context, userID string) ([]models.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "isDefault", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	addresses := []models.Address{}
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *MongoAddressRepository) Create(ctx context.Context, a *models.Address) error {
	a.ID = primitive.NewObjectID()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	if _, err := r.coll.InsertOne(ctx, a); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *MongoAddressRepository) SetDefault(ctx context.Context, userID string, id primitive.ObjectID) error {
	now := time.Now()
	if _, err := r.coll.UpdateMany(ctx,
		bson.M{"userId": userID, "isDefault": true, "_id": bson.M{"$ne": id}},
		bson.M{"$set": bson.M{"isDefault": false, "updatedAt": now}},
	); err != nil {
		return err
	}

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"isDefault": true, "updatedAt": now}},
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAddressRepository) DeleteOwned(ctx context.Context, userID string, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
