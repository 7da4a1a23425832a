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

type MongoUserRepository struct {
	coll *mongo.Collection
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.User) error {
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now()
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

type MongoTokenBlacklist struct {
	coll *mongo.Collection
}

func (b *MongoTokenBlacklist) Revoke(ctx context.Context, token string, exp time.Time) error {
	_, err := b.coll.InsertOne(ctx, bson.M{"token": token, "exp": exp})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (b *MongoTokenBlacklist) IsRevoked(ctx context.Context, token string) (bool, error) {
	err := b.coll.FindOne(ctx, bson.M{"token": token}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
