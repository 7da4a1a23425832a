package services

import (
	"context"
	"errors"
	"strings"

	"grocery/database"
	"grocery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultProductLimit = 100

type ProductService struct {
	products database.ProductRepository
}

func NewProductService(products database.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

func parseProductID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, NewValidation("invalid product id")
	}
	return oid, nil
}

// Browse lists active products matching the query for shoppers.
func (s *ProductService) Browse(ctx context.Context, query, category string) ([]models.Product, error) {
	products, err := s.products.List(ctx, models.ProductFilter{
		Query:      strings.TrimSpace(query),
		Category:   strings.TrimSpace(category),
		ActiveOnly: true,
		Limit:      defaultProductLimit,
	})
	if err != nil {
		return nil, NewInternal(err)
	}
	return products, nil
}

// Get returns an active product. Admins use AdminGet to see inactive ones.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, NewNotFound(ErrMsgProductNotFound)
	}
	return p, nil
}

func (s *ProductService) AdminGet(ctx context.Context, id string) (*models.Product, error) {
	oid, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.products.FindByID(ctx, oid)
	if err != nil {
		return nil, NewInternal(err)
	}
	if p == nil {
		return nil, NewNotFound(ErrMsgProductNotFound)
	}
	return p, nil
}

func (s *ProductService) AdminList(ctx context.Context, query string) ([]models.Product, error) {
	products, err := s.products.List(ctx, models.ProductFilter{Query: strings.TrimSpace(query)})
	if err != nil {
		return nil, NewInternal(err)
	}
	return products, nil
}

func (s *ProductService) Create(ctx context.Context, p *models.Product) error {
	if p.Price <= 0 {
		return NewValidation("price must be greater than 0")
	}
	if p.Stock < 0 {
		return NewValidation("stock cannot be negative")
	}
	p.ID = primitive.NilObjectID
	if err := s.products.Create(ctx, p); err != nil {
		return NewInternal(err)
	}
	return nil
}

func (s *ProductService) Update(ctx context.Context, id string, u models.ProductUpdate) (*models.Product, error) {
	oid, err := parseProductID(id)
	if err != nil {
		return nil, err
	}
	if u.Price != nil && *u.Price <= 0 {
		return nil, NewValidation("price must be greater than 0")
	}
	if u.Stock != nil && *u.Stock < 0 {
		return nil, NewValidation("stock cannot be negative")
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, NewValidation("name cannot be empty")
	}
	p, err := s.products.Update(ctx, oid, u)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NewNotFound(ErrMsgProductNotFound)
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	return p, nil
}

// Delete removes the product. Carts holding it simply stop pricing the line.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	oid, err := parseProductID(id)
	if err != nil {
		return err
	}
	err = s.products.Delete(ctx, oid)
	if errors.Is(err, database.ErrNotFound) {
		return NewNotFound(ErrMsgProductNotFound)
	}
	if err != nil {
		return NewInternal(err)
	}
	return nil
}
