package services

import (
	"context"
	"errors"
	"strings"

	"grocery/database"
	"grocery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AddressService struct {
	addresses database.AddressRepository
}

func NewAddressService(addresses database.AddressRepository) *AddressService {
	return &AddressService{addresses: addresses}
}

func validateAddress(a *models.Address) error {
	if !a.AddressType.Valid() {
		return NewValidation("addressType must be one of Home, Work, Hotel, Other")
	}
	a.CustomName = strings.TrimSpace(a.CustomName)
	if a.AddressType == models.AddressTypeOther && a.CustomName == "" {
		return NewValidation("customName is required for addressType Other")
	}
	if a.AddressType != models.AddressTypeOther {
		a.CustomName = ""
	}
	required := []struct{ field, value string }{
		{"receiverName", a.ReceiverName},
		{"receiverPhone", a.ReceiverPhone},
		{"line1", a.Line1},
		{"city", a.City},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationf("%s is required", r.field)
		}
	}
	return nil
}

func (s *AddressService) List(ctx context.Context, userID string) ([]models.Address, error) {
	addresses, err := s.addresses.ListByUser(ctx, userID)
	if err != nil {
		return nil, NewInternal(err)
	}
	return addresses, nil
}

// Create stores a new address. The first address a user saves becomes the
// default.
func (s *AddressService) Create(ctx context.Context, userID string, a *models.Address) error {
	if err := validateAddress(a); err != nil {
		return err
	}
	a.UserID = userID
	if !a.IsDefault {
		existing, err := s.addresses.ListByUser(ctx, userID)
		if err != nil {
			return NewInternal(err)
		}
		a.IsDefault = len(existing) == 0
	}

	err := s.addresses.Create(ctx, a)
	if errors.Is(err, database.ErrDuplicateKey) {
		return NewConflict("a default address already exists")
	}
	if err != nil {
		return NewInternal(err)
	}
	return nil
}

func (s *AddressService) SetDefault(ctx context.Context, userID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return NewValidation("invalid address id")
	}
	err = s.addresses.SetDefault(ctx, userID, oid)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return NewNotFound(ErrMsgAddressNotFound)
	case errors.Is(err, database.ErrDuplicateKey):
		return NewConflict("a default address already exists")
	case err != nil:
		return NewInternal(err)
	}
	return nil
}

func (s *AddressService) Delete(ctx context.Context, userID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return NewValidation("invalid address id")
	}
	err = s.addresses.DeleteOwned(ctx, userID, oid)
	if errors.Is(err, database.ErrNotFound) {
		return NewNotFound(ErrMsgAddressNotFound)
	}
	if err != nil {
		return NewInternal(err)
	}
	return nil
}
