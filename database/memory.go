package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"grocery/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is a process-local Store with the same constraints as the Mongo
// indexes. It backs tests and STORE_DRIVER=memory.
type Memory struct {
	mu        sync.Mutex
	carts     map[string]models.Cart
	products  map[primitive.ObjectID]models.Product
	addresses map[primitive.ObjectID]models.Address
	orders    map[primitive.ObjectID]models.Order
	users     map[string]models.User
	tokens    map[string]time.Time
}

func NewMemory() *Memory {
	return &Memory{
		carts:     map[string]models.Cart{},
		products:  map[primitive.ObjectID]models.Product{},
		addresses: map[primitive.ObjectID]models.Address{},
		orders:    map[primitive.ObjectID]models.Order{},
		users:     map[string]models.User{},
		tokens:    map[string]time.Time{},
	}
}

func (m *Memory) Store() *Store {
	return &Store{
		Carts:     memoryCarts{m},
		Products:  memoryProducts{m},
		Addresses: memoryAddresses{m},
		Orders:    memoryOrders{m},
		Users:     memoryUsers{m},
		Tokens:    memoryTokens{m},
	}
}

func cloneCart(c models.Cart) models.Cart {
	c.Products = append([]models.CartItem(nil), c.Products...)
	return c
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	return o
}

type memoryCarts struct{ m *Memory }

func (r memoryCarts) FindByUser(_ context.Context, userID string) (*models.Cart, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cart, ok := r.m.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cart = cloneCart(cart)
	return &cart, nil
}

func (r memoryCarts) Save(_ context.Context, cart *models.Cart) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	stored, exists := r.m.carts[cart.UserID]
	if cart.Version == 0 && exists {
		return ErrVersionConflict
	}
	if cart.Version != 0 && (!exists || stored.Version != cart.Version) {
		return ErrVersionConflict
	}

	now := time.Now()
	next := cloneCart(*cart)
	next.Version++
	next.UpdatedAt = now
	if cart.Version == 0 {
		next.ID = primitive.NewObjectID()
		next.CreatedAt = now
	}
	r.m.carts[cart.UserID] = next
	*cart = cloneCart(next)
	return nil
}

func (r memoryCarts) DeleteByUser(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.carts, userID)
	return nil
}

type memoryProducts struct{ m *Memory }

func (r memoryProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memoryProducts) Create(_ context.Context, p *models.Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.m.products[p.ID] = *p
	return nil
}

func (r memoryProducts) Update(_ context.Context, id primitive.ObjectID, u models.ProductUpdate) (*models.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Variant != nil {
		p.Variant = *u.Variant
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	p.UpdatedAt = time.Now()
	r.m.products[id] = p
	return &p, nil
}

func (r memoryProducts) Delete(_ context.Context, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.products[id]; !ok {
		return ErrNotFound
	}
	delete(r.m.products, id)
	return nil
}

func (r memoryProducts) List(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	q := strings.ToLower(f.Query)
	products := []models.Product{}
	for _, p := range r.m.products {
		if f.ActiveOnly && !p.IsActive {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.Category), q) {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	if f.Limit > 0 && len(products) > f.Limit {
		products = products[:f.Limit]
	}
	return products, nil
}

type memoryAddresses struct{ m *Memory }

func (r memoryAddresses) FindOwnedByID(_ context.Context, userID string, id primitive.ObjectID) (*models.Address, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.addresses[id]
	if !ok || a.UserID != userID {
		return nil, nil
	}
	return &a, nil
}

func (r memoryAddresses) ListByUser(_ context.Context, userID string) ([]models.Address, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	addresses := []models.Address{}
	for _, a := range r.m.addresses {
		if a.UserID == userID {
			addresses = append(addresses, a)
		}
	}
	sort.Slice(addresses, func(i, j int) bool {
		if addresses[i].IsDefault != addresses[j].IsDefault {
			return addresses[i].IsDefault
		}
		return addresses[i].ID.Hex() > addresses[j].ID.Hex()
	})
	return addresses, nil
}

func (r memoryAddresses) hasDefault(userID string, except primitive.ObjectID) bool {
	for id, a := range r.m.addresses {
		if id != except && a.UserID == userID && a.IsDefault {
			return true
		}
	}
	return false
}

func (r memoryAddresses) Create(_ context.Context, a *models.Address) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if a.IsDefault && r.hasDefault(a.UserID, primitive.NilObjectID) {
		return ErrDuplicateKey
	}
	a.ID = primitive.NewObjectID()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.m.addresses[a.ID] = *a
	return nil
}

func (r memoryAddresses) SetDefault(_ context.Context, userID string, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	target, ok := r.m.addresses[id]
	if !ok || target.UserID != userID {
		return ErrNotFound
	}
	now := time.Now()
	for aid, a := range r.m.addresses {
		if a.UserID == userID && a.IsDefault && aid != id {
			a.IsDefault = false
			a.UpdatedAt = now
			r.m.addresses[aid] = a
		}
	}
	target.IsDefault = true
	target.UpdatedAt = now
	r.m.addresses[id] = target
	return nil
}

func (r memoryAddresses) DeleteOwned(_ context.Context, userID string, id primitive.ObjectID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.addresses[id]
	if !ok || a.UserID != userID {
		return ErrNotFound
	}
	delete(r.m.addresses, id)
	return nil
}

type memoryOrders struct{ m *Memory }

func (r memoryOrders) Create(_ context.Context, o *models.Order) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	r.m.orders[o.ID] = cloneOrder(*o)
	return nil
}

func (r memoryOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (r memoryOrders) FindOwnedByID(ctx context.Context, userID string, id primitive.ObjectID) (*models.Order, error) {
	o, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

func (r memoryOrders) List(_ context.Context, f models.OrderFilter) ([]models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	orders := []models.Order{}
	for _, o := range r.m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		orders = append(orders, cloneOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID.Hex() > orders[j].ID.Hex()
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if f.Limit > 0 && len(orders) > f.Limit {
		orders = orders[:f.Limit]
	}
	return orders, nil
}

func (r memoryOrders) UpdateIfStatus(_ context.Context, id primitive.ObjectID, from models.OrderStatus, change models.OrderChange) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	o, ok := r.m.orders[id]
	if !ok || o.Status != from {
		return nil, ErrStatusConflict
	}
	if change.Status != "" {
		o.Status = change.Status
	}
	if change.PaymentStatus != "" {
		o.PaymentStatus = change.PaymentStatus
	}
	if change.PaymentRef != "" {
		o.PaymentRef = change.PaymentRef
	}
	if change.CancelReason != "" {
		o.CancelReason = change.CancelReason
	}
	o.UpdatedAt = time.Now()
	r.m.orders[id] = o
	o = cloneOrder(o)
	return &o, nil
}

type memoryUsers struct{ m *Memory }

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r memoryUsers) Create(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[u.Email]; ok {
		return ErrDuplicateKey
	}
	u.ID = primitive.NewObjectID()
	u.CreatedAt = time.Now()
	r.m.users[u.Email] = *u
	return nil
}

type memoryTokens struct{ m *Memory }

func (r memoryTokens) Revoke(_ context.Context, token string, exp time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.tokens[token] = exp
	return nil
}

func (r memoryTokens) IsRevoked(_ context.Context, token string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	exp, ok := r.m.tokens[token]
	if !ok {
		return false, nil
	}
	if time.Now().After(exp) {
		delete(r.m.tokens, token)
		return false, nil
	}
	return true, nil
}
