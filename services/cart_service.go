package services

import (
	"context"
	"errors"

	"grocery/database"
	"grocery/models"
	"grocery/pricing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxSaveAttempts bounds the re-read and re-apply loop on version conflicts.
const maxSaveAttempts = 3

// catalogFanOut caps concurrent catalog lookups per cart.
const catalogFanOut = 8

// CartLine is a cart item priced from the live catalog.
type CartLine struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Variant   string  `json:"variant"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"lineTotal"`
}

// CartView is returned by every cart operation.
type CartView struct {
	UserID         string     `json:"userId"`
	Products       []CartLine `json:"products"`
	ItemsTotal     float64    `json:"itemsTotal"`
	DeliveryCharge float64    `json:"deliveryCharge"`
	HandlingCharge float64    `json:"handlingCharge"`
	TipAmount      float64    `json:"tipAmount"`
	DonationAmount float64    `json:"donationAmount"`
	GrandTotal     float64    `json:"grandTotal"`
}

type CartService struct {
	carts   database.CartRepository
	catalog ProductCatalog
	policy  pricing.Policy
	log     *zap.Logger
}

func NewCartService(carts database.CartRepository, catalog ProductCatalog, policy pricing.Policy, log *zap.Logger) *CartService {
	return &CartService{carts: carts, catalog: catalog, policy: policy, log: log}
}

// cartMutation edits cart in place and reports whether it must be persisted.
type cartMutation func(cart *models.Cart, stored bool) (bool, error)

func (s *CartService) newCart(owner string) *models.Cart {
	c := s.policy.CartDefaults()
	return &models.Cart{
		UserID:         owner,
		Guest:          models.IsGuestOwner(owner),
		Products:       []models.CartItem{},
		DeliveryCharge: c.DeliveryCharge,
		HandlingCharge: c.HandlingCharge,
		TipAmount:      c.TipAmount,
		DonationAmount: c.DonationAmount,
	}
}

func (s *CartService) load(ctx context.Context, owner string) (*models.Cart, bool, error) {
	cart, err := s.carts.FindByUser(ctx, owner)
	if errors.Is(err, database.ErrNotFound) {
		return s.newCart(owner), false, nil
	}
	if err != nil {
		return nil, false, NewInternal(err)
	}
	return cart, true, nil
}

// mutate runs fn against the freshest stored cart, recomputes totals and
// saves. Version conflicts re-read and re-apply fn.
func (s *CartService) mutate(ctx context.Context, owner string, fn cartMutation) (*CartView, error) {
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		cart, stored, err := s.load(ctx, owner)
		if err != nil {
			return nil, err
		}
		persist, err := fn(cart, stored)
		if err != nil {
			return nil, err
		}
		view := s.price(ctx, cart)
		if !persist {
			return view, nil
		}

		err = s.carts.Save(ctx, cart)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, database.ErrVersionConflict) {
			return nil, NewInternal(err)
		}
		s.log.Debug("cart version conflict, retrying",
			zap.String("owner", owner), zap.Int("attempt", attempt))
	}
	return nil, NewConflict(ErrMsgCartBusy)
}

// price resolves every line against the catalog, writes the derived totals
// onto cart and returns the view. Lines that cannot be resolved are left in
// the cart but skipped from totals and the view.
func (s *CartService) price(ctx context.Context, cart *models.Cart) *CartView {
	resolved := make([]*models.Product, len(cart.Products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFanOut)
	for i, item := range cart.Products {
		i, item := i, item
		g.Go(func() error {
			p, err := s.catalog.FindByID(gctx, item.ProductID)
			if err != nil {
				s.log.Warn("catalog lookup failed, skipping cart line",
					zap.String("owner", cart.UserID),
					zap.String("productId", item.ProductID.Hex()),
					zap.Error(err))
				return nil
			}
			if p != nil && p.IsActive {
				resolved[i] = p
			}
			return nil
		})
	}
	_ = g.Wait()

	lines := make([]CartLine, 0, len(cart.Products))
	priced := make([]pricing.Line, 0, len(cart.Products))
	for i, item := range cart.Products {
		p := resolved[i]
		if p == nil {
			continue
		}
		l := pricing.Line{UnitPrice: p.Price, Quantity: item.Quantity}
		priced = append(priced, l)
		lines = append(lines, CartLine{
			ProductID: item.ProductID.Hex(),
			Name:      p.Name,
			Image:     p.Image,
			Variant:   p.Variant,
			Price:     p.Price,
			Quantity:  item.Quantity,
			LineTotal: l.Total(),
		})
	}

	b := pricing.Compose(pricing.ItemsTotal(priced), cartCharges(cart))
	cart.ItemsTotal = b.ItemsTotal
	cart.DeliveryCharge = b.DeliveryCharge
	cart.HandlingCharge = b.HandlingCharge
	cart.TipAmount = b.TipAmount
	cart.DonationAmount = b.DonationAmount
	cart.GrandTotal = b.GrandTotal

	return &CartView{
		UserID:         cart.UserID,
		Products:       lines,
		ItemsTotal:     b.ItemsTotal,
		DeliveryCharge: b.DeliveryCharge,
		HandlingCharge: b.HandlingCharge,
		TipAmount:      b.TipAmount,
		DonationAmount: b.DonationAmount,
		GrandTotal:     b.GrandTotal,
	}
}

func cartCharges(cart *models.Cart) pricing.Charges {
	return pricing.Charges{
		DeliveryCharge: cart.DeliveryCharge,
		HandlingCharge: cart.HandlingCharge,
		TipAmount:      cart.TipAmount,
		DonationAmount: cart.DonationAmount,
	}
}

func setCartCharges(cart *models.Cart, c pricing.Charges) {
	cart.DeliveryCharge = c.DeliveryCharge
	cart.HandlingCharge = c.HandlingCharge
	cart.TipAmount = c.TipAmount
	cart.DonationAmount = c.DonationAmount
}

// SetItemQuantity upserts productID with quantity, or removes it when
// quantity <= 0. Adding requires the product to be active in the catalog.
func (s *CartService) SetItemQuantity(ctx context.Context, owner string, productID primitive.ObjectID, quantity int) (*CartView, error) {
	if quantity > models.MaxLineQuantity {
		return nil, NewValidation(ErrMsgQuantityTooLarge)
	}
	if quantity > 0 {
		p, err := s.catalog.FindByID(ctx, productID)
		if err != nil {
			return nil, NewUpstream("could not load product", err)
		}
		if p == nil || !p.IsActive {
			return nil, NewNotFound(ErrMsgProductNotFound)
		}
	}

	return s.mutate(ctx, owner, func(cart *models.Cart, stored bool) (bool, error) {
		if quantity <= 0 && cart.QuantityOf(productID) == 0 {
			return false, nil
		}
		cart.SetQuantity(productID, quantity)
		return true, nil
	})
}

// SetCharges applies a partial charges update, creating the cart if needed.
func (s *CartService) SetCharges(ctx context.Context, owner string, update pricing.ChargesUpdate) (*CartView, error) {
	if err := update.Validate(); err != nil {
		return nil, NewValidation(err.Error())
	}
	return s.mutate(ctx, owner, func(cart *models.Cart, stored bool) (bool, error) {
		setCartCharges(cart, cartCharges(cart).Apply(update))
		return true, nil
	})
}

// GetCart never fails with NotFound; a missing cart yields the default view.
func (s *CartService) GetCart(ctx context.Context, owner string) (*CartView, error) {
	cart, _, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, cart), nil
}

// StoredCart returns the persisted cart, or nil when the owner has none.
func (s *CartService) StoredCart(ctx context.Context, owner string) (*models.Cart, error) {
	cart, err := s.carts.FindByUser(ctx, owner)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	return cart, nil
}

func (s *CartService) ClearCart(ctx context.Context, owner string) error {
	if err := s.carts.DeleteByUser(ctx, owner); err != nil {
		return NewInternal(err)
	}
	return nil
}

// MergeGuestCart folds the guest's lines into the user's cart and deletes the
// guest cart. The user's charges are kept unless the user had no cart.
func (s *CartService) MergeGuestCart(ctx context.Context, guestOwner, userOwner string) (*CartView, error) {
	if guestOwner == userOwner {
		return s.GetCart(ctx, userOwner)
	}
	guest, err := s.StoredCart(ctx, guestOwner)
	if err != nil {
		return nil, err
	}
	if guest == nil || guest.IsEmpty() {
		if guest != nil {
			if err := s.ClearCart(ctx, guestOwner); err != nil {
				return nil, err
			}
		}
		return s.GetCart(ctx, userOwner)
	}

	view, err := s.mutate(ctx, userOwner, func(cart *models.Cart, stored bool) (bool, error) {
		if !stored {
			setCartCharges(cart, cartCharges(guest))
		}
		for _, item := range guest.Products {
			cart.SetQuantity(item.ProductID, mergedQuantity(cart.QuantityOf(item.ProductID), item.Quantity))
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.ClearCart(ctx, guestOwner); err != nil {
		s.log.Warn("failed to delete merged guest cart", zap.String("guest", guestOwner), zap.Error(err))
	}
	return view, nil
}

// mergedQuantity sums two stored quantities, clamped to MaxLineQuantity.
// Stored values are not trusted to be in range.
func mergedQuantity(a, b int) int {
	if a < 0 {
		a = 0
	}
	if b < 0 {
		b = 0
	}
	if a >= models.MaxLineQuantity || b >= models.MaxLineQuantity-a {
		return models.MaxLineQuantity
	}
	return a + b
}
