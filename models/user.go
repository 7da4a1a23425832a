package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
	RoleGuest    = "guest"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	Role      string             `bson:"role" json:"role"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// GuestOwnerPrefix marks owner keys issued to guests.
const GuestOwnerPrefix = "guest_"

func IsGuestOwner(owner string) bool {
	return strings.HasPrefix(owner, GuestOwnerPrefix)
}
