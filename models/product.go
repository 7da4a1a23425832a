package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name" binding:"required"`
	Description string             `bson:"description" json:"description"`
	Image       string             `bson:"image" json:"image"`
	Variant     string             `bson:"variant" json:"variant"`
	Category    string             `bson:"category" json:"category" binding:"required"`
	Price       float64            `bson:"price" json:"price" binding:"required,gt=0"`
	Stock       int                `bson:"stock" json:"stock" binding:"gte=0"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ProductUpdate carries a partial product edit; nil fields are left unchanged.
type ProductUpdate struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Image       *string  `json:"image"`
	Variant     *string  `json:"variant"`
	Category    *string  `json:"category"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	IsActive    *bool    `json:"isActive"`
}

type ProductFilter struct {
	Query      string
	Category   string
	ActiveOnly bool
	Limit      int
}
