package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddressType string

const (
	AddressTypeHome  AddressType = "Home"
	AddressTypeWork  AddressType = "Work"
	AddressTypeHotel AddressType = "Hotel"
	AddressTypeOther AddressType = "Other"
)

func (t AddressType) Valid() bool {
	switch t {
	case AddressTypeHome, AddressTypeWork, AddressTypeHotel, AddressTypeOther:
		return true
	}
	return false
}

type Address struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        string             `bson:"userId" json:"userId"`
	AddressType   AddressType        `bson:"addressType" json:"addressType"`
	CustomName    string             `bson:"customName,omitempty" json:"customName,omitempty"`
	ReceiverName  string             `bson:"receiverName" json:"receiverName"`
	ReceiverPhone string             `bson:"receiverPhone" json:"receiverPhone"`
	Line1         string             `bson:"line1" json:"line1"`
	Line2         string             `bson:"line2,omitempty" json:"line2,omitempty"`
	Landmark      string             `bson:"landmark,omitempty" json:"landmark,omitempty"`
	City          string             `bson:"city" json:"city"`
	State         string             `bson:"state" json:"state"`
	Pincode       string             `bson:"pincode" json:"pincode"`
	IsDefault     bool               `bson:"isDefault" json:"isDefault"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Label is the display name of the address type; Other uses its custom name.
func (a Address) Label() string {
	if a.AddressType == AddressTypeOther && a.CustomName != "" {
		return a.CustomName
	}
	return string(a.AddressType)
}

// Formatted renders the one-line snapshot stored on orders.
func (a Address) Formatted() string {
	parts := make([]string, 0, 6)
	for _, p := range []string{a.Line1, a.Line2, a.Landmark, a.City, a.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	s := a.Label() + ": " + strings.Join(parts, ", ")
	if a.Pincode != "" {
		s += " - " + a.Pincode
	}
	if a.ReceiverName != "" {
		s += " (" + a.ReceiverName
		if a.ReceiverPhone != "" {
			s += ", " + a.ReceiverPhone
		}
		s += ")"
	}
	return s
}
