package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxLineQuantity caps the quantity of a single cart or order line.
const MaxLineQuantity = 1000

type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Cart is the single mutable cart of an owner. UserID holds either a user id
// or a guest id issued with a guest token.
type Cart struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         string             `bson:"userId" json:"userId"`
	Guest          bool               `bson:"guest" json:"guest"`
	Products       []CartItem         `bson:"products" json:"products"`
	ItemsTotal     float64            `bson:"itemsTotal" json:"itemsTotal"`
	DeliveryCharge float64            `bson:"deliveryCharge" json:"deliveryCharge"`
	HandlingCharge float64            `bson:"handlingCharge" json:"handlingCharge"`
	TipAmount      float64            `bson:"tipAmount" json:"tipAmount"`
	DonationAmount float64            `bson:"donationAmount" json:"donationAmount"`
	GrandTotal     float64            `bson:"grandTotal" json:"grandTotal"`
	Version        int64              `bson:"version" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// SetQuantity upserts the line for productID, or removes it when quantity <= 0.
// New lines are appended so the cart keeps insertion order.
func (c *Cart) SetQuantity(productID primitive.ObjectID, quantity int) {
	for i, item := range c.Products {
		if item.ProductID != productID {
			continue
		}
		if quantity <= 0 {
			c.Products = append(c.Products[:i], c.Products[i+1:]...)
			return
		}
		c.Products[i].Quantity = quantity
		return
	}
	if quantity > 0 {
		c.Products = append(c.Products, CartItem{ProductID: productID, Quantity: quantity})
	}
}

// QuantityOf returns the stored quantity of productID, 0 when absent.
func (c *Cart) QuantityOf(productID primitive.ObjectID) int {
	for _, item := range c.Products {
		if item.ProductID == productID {
			return item.Quantity
		}
	}
	return 0
}

func (c *Cart) IsEmpty() bool {
	return len(c.Products) == 0
}
