package services

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"grocery/database"
	"grocery/events"
	"grocery/models"
	"grocery/payment"
	"grocery/pricing"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	customerOrderLimit = 20
	adminOrderLimit    = 50
	maxAdminOrderLimit = 200
)

// ItemInput is a requested order line. Prices always come from the catalog.
type ItemInput struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	AddressID     string
	PaymentMethod models.PaymentMethod
	Items         []ItemInput
	FromCart      bool
	Charges       pricing.ChargesUpdate
	OrderNotes    string
}

type PlaceOrderResult struct {
	Order      *models.Order
	PaymentURL string
}

// PaymentResult is a settled payment reported by the gateway.
type PaymentResult struct {
	OrderID   string
	Reference string
	Status    string
}

type OrderServiceConfig struct {
	Orders    database.OrderRepository
	Catalog   ProductCatalog
	Addresses AddressBook
	Carts     CartReader
	Clearer   CartClearer
	Gateway   payment.Gateway
	Events    events.Publisher
	// Scheduler is optional; without it pending payments only expire when
	// ExpirePendingPayment is called directly.
	Scheduler      PaymentScheduler
	Policy         pricing.Policy
	PaymentTimeout time.Duration
	Currency       string
	Logger         *zap.Logger
}

type OrderService struct {
	orders         database.OrderRepository
	catalog        ProductCatalog
	addresses      AddressBook
	carts          CartReader
	clearer        CartClearer
	gateway        payment.Gateway
	events         events.Publisher
	scheduler      PaymentScheduler
	policy         pricing.Policy
	paymentTimeout time.Duration
	currency       string
	log            *zap.Logger
	now            func() time.Time
}

func NewOrderService(cfg OrderServiceConfig) *OrderService {
	s := &OrderService{
		orders:         cfg.Orders,
		catalog:        cfg.Catalog,
		addresses:      cfg.Addresses,
		carts:          cfg.Carts,
		clearer:        cfg.Clearer,
		gateway:        cfg.Gateway,
		events:         cfg.Events,
		scheduler:      cfg.Scheduler,
		policy:         cfg.Policy,
		paymentTimeout: cfg.PaymentTimeout,
		currency:       cfg.Currency,
		log:            cfg.Logger,
		now:            time.Now,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

type requestedLine struct {
	productID primitive.ObjectID
	quantity  int
}

// mergeItems validates the requested lines and sums duplicates, keeping the
// first-seen order.
func mergeItems(items []ItemInput) ([]requestedLine, error) {
	if len(items) == 0 {
		return nil, NewValidation(ErrMsgItemsRequired)
	}
	index := map[primitive.ObjectID]int{}
	var lines []requestedLine
	for _, it := range items {
		pid, err := primitive.ObjectIDFromHex(it.ProductID)
		if err != nil {
			return nil, NewValidationf("invalid product id %q", it.ProductID)
		}
		if it.Quantity < 1 {
			return nil, NewValidation(ErrMsgQuantityPositive)
		}
		if it.Quantity > models.MaxLineQuantity {
			return nil, NewValidation(ErrMsgQuantityTooLarge)
		}
		if i, ok := index[pid]; ok {
			// Both operands are capped, so the sum cannot overflow.
			lines[i].quantity += it.Quantity
			if lines[i].quantity > models.MaxLineQuantity {
				return nil, NewValidation(ErrMsgQuantityTooLarge)
			}
			continue
		}
		index[pid] = len(lines)
		lines = append(lines, requestedLine{productID: pid, quantity: it.Quantity})
	}
	return lines, nil
}

// resolveItems snapshots every line from the live catalog.
func (s *OrderService) resolveItems(ctx context.Context, lines []requestedLine) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, len(lines))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogFanOut)
	for i, l := range lines {
		i, l := i, l
		g.Go(func() error {
			p, err := s.catalog.FindByID(gctx, l.productID)
			if err != nil {
				return NewUpstream("could not verify product prices", err)
			}
			if p == nil || !p.IsActive {
				return NewNotFound(fmt.Sprintf("product %s not found", l.productID.Hex()))
			}
			items[i] = models.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Image:     p.Image,
				Variant:   p.Variant,
				Price:     p.Price,
				Quantity:  l.quantity,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// PlaceOrder validates the request, re-prices every line from the catalog,
// persists the order and, for online methods, opens a payment session.
func (s *OrderService) PlaceOrder(ctx context.Context, owner string, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if !in.PaymentMethod.Valid() {
		return nil, NewValidation(ErrMsgInvalidPayment)
	}
	if utf8.RuneCountInString(in.OrderNotes) > models.MaxOrderNotesLength {
		return nil, NewValidation(ErrMsgNotesTooLong)
	}
	if err := in.Charges.Validate(); err != nil {
		return nil, NewValidation(err.Error())
	}
	addressID, err := primitive.ObjectIDFromHex(in.AddressID)
	if err != nil {
		return nil, NewValidation("invalid address id")
	}

	var (
		lines []requestedLine
		cart  *models.Cart
	)
	if in.FromCart {
		cart, err = s.carts.StoredCart(ctx, owner)
		if err != nil {
			return nil, err
		}
		if cart == nil || cart.IsEmpty() {
			return nil, NewValidation(ErrMsgCartEmpty)
		}
		for _, item := range cart.Products {
			lines = append(lines, requestedLine{productID: item.ProductID, quantity: item.Quantity})
		}
	} else if lines, err = mergeItems(in.Items); err != nil {
		return nil, err
	}

	address, err := s.addresses.FindOwnedByID(ctx, owner, addressID)
	if err != nil {
		return nil, NewInternal(err)
	}
	if address == nil {
		return nil, NewNotFound(ErrMsgAddressNotFound)
	}

	items, err := s.resolveItems(ctx, lines)
	if err != nil {
		return nil, err
	}
	priced := make([]pricing.Line, len(items))
	for i, it := range items {
		priced[i] = pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity}
	}
	itemsTotal := pricing.ItemsTotal(priced)

	charges := s.policy.OrderDefaults(itemsTotal)
	if cart != nil {
		charges = charges.Apply(cartCharges(cart).AsUpdate())
	}
	charges = charges.Apply(in.Charges)
	b := pricing.Compose(itemsTotal, charges)

	now := s.now()
	order := &models.Order{
		ID:                primitive.NewObjectID(),
		UserID:            owner,
		Address:           models.OrderAddress{AddressID: address.ID, Details: address.Formatted()},
		Items:             items,
		ItemsTotal:        b.ItemsTotal,
		DeliveryCharge:    b.DeliveryCharge,
		HandlingCharge:    b.HandlingCharge,
		TipAmount:         b.TipAmount,
		DonationAmount:    b.DonationAmount,
		GrandTotal:        b.GrandTotal,
		PaymentMethod:     in.PaymentMethod,
		PaymentStatus:     models.PaymentStatusCompleted,
		Status:            models.OrderStatusConfirmed,
		OrderNotes:        in.OrderNotes,
		EstimatedDelivery: now.Add(models.EstimatedDeliveryDelay),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.PaymentMethod.Online() {
		order.Status = models.OrderStatusPendingPayment
		order.PaymentStatus = models.PaymentStatusPending
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, NewInternal(err)
	}

	result := &PlaceOrderResult{Order: order}
	if in.PaymentMethod.Online() {
		url, err := s.startPayment(ctx, order)
		if err != nil {
			return nil, err
		}
		result.PaymentURL = url
	}

	s.publish(ctx, models.EventOrderCreated, result.Order)
	if err := s.clearer.ClearCart(ctx, owner); err != nil {
		s.log.Warn("failed to clear cart after checkout",
			zap.String("owner", owner),
			zap.String("orderId", order.ID.Hex()),
			zap.Error(err))
	}
	return result, nil
}

// startPayment opens a gateway session for a pending order. A gateway
// failure cancels the order and is reported as an upstream error.
func (s *OrderService) startPayment(ctx context.Context, order *models.Order) (string, error) {
	session, err := s.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:     order.ID.Hex(),
		Amount:      order.GrandTotal,
		Currency:    s.currency,
		Method:      string(order.PaymentMethod),
		Description: fmt.Sprintf("Order %s", order.ID.Hex()),
	})
	if err != nil {
		s.log.Error("payment session failed", zap.String("orderId", order.ID.Hex()), zap.Error(err))
		if _, terr := s.transition(ctx, order, models.OrderChange{
			Status:        models.OrderStatusCancelled,
			PaymentStatus: models.PaymentStatusFailed,
			CancelReason:  ErrMsgPaymentInit,
		}); terr != nil {
			s.log.Error("failed to cancel order after payment failure", zap.String("orderId", order.ID.Hex()), zap.Error(terr))
		}
		return "", NewUpstream(ErrMsgPaymentInit, err)
	}

	updated, err := s.orders.UpdateIfStatus(ctx, order.ID, order.Status, models.OrderChange{PaymentRef: session.Reference})
	if err != nil {
		return "", NewInternal(err)
	}
	*order = *updated

	if s.scheduler != nil {
		if err := s.scheduler.SchedulePaymentCheck(ctx, order.ID.Hex()); err != nil {
			s.log.Warn("failed to schedule payment check", zap.String("orderId", order.ID.Hex()), zap.Error(err))
		}
	}
	return session.URL, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, o *models.Order) {
	if err := s.events.Publish(ctx, models.NewOrderEvent(eventType, o)); err != nil {
		s.log.Warn("failed to publish order event",
			zap.String("type", eventType),
			zap.String("orderId", o.ID.Hex()),
			zap.Error(err))
	}
}

// transition applies change only if the order still has the status it was
// read with, then publishes the new status.
func (s *OrderService) transition(ctx context.Context, o *models.Order, change models.OrderChange) (*models.Order, error) {
	updated, err := s.orders.UpdateIfStatus(ctx, o.ID, o.Status, change)
	if errors.Is(err, database.ErrStatusConflict) {
		return nil, NewConflict("order status changed concurrently, please retry")
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	s.publish(ctx, models.EventOrderStatusUpdated, updated)
	return updated, nil
}

func parseOrderID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, NewValidation("invalid order id")
	}
	return oid, nil
}

func (s *OrderService) GetOrder(ctx context.Context, owner, id string) (*models.Order, error) {
	oid, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindOwnedByID(ctx, owner, oid)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NewNotFound(ErrMsgOrderNotFound)
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	return order, nil
}

// ListOrders returns the owner's most recent orders.
func (s *OrderService) ListOrders(ctx context.Context, owner string) ([]models.Order, error) {
	orders, err := s.orders.List(ctx, models.OrderFilter{UserID: owner, Limit: customerOrderLimit})
	if err != nil {
		return nil, NewInternal(err)
	}
	return orders, nil
}

func refundOnCancel(o *models.Order, change *models.OrderChange) {
	if o.PaymentMethod.Online() && o.PaymentStatus == models.PaymentStatusCompleted {
		change.PaymentStatus = models.PaymentStatusRefunded
	}
}

func (s *OrderService) CancelOrder(ctx context.Context, owner, id, reason string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CustomerCancellable() {
		return nil, NewConflict(ErrMsgNotCancellable)
	}
	if reason == "" {
		reason = "cancelled by customer"
	}
	change := models.OrderChange{Status: models.OrderStatusCancelled, CancelReason: reason}
	refundOnCancel(order, &change)
	return s.transition(ctx, order, change)
}

func (s *OrderService) AdminListOrders(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	if status != "" && !status.Valid() {
		return nil, NewValidation("invalid order status")
	}
	if limit <= 0 {
		limit = adminOrderLimit
	}
	if limit > maxAdminOrderLimit {
		limit = maxAdminOrderLimit
	}
	orders, err := s.orders.List(ctx, models.OrderFilter{Status: status, Limit: limit})
	if err != nil {
		return nil, NewInternal(err)
	}
	return orders, nil
}

func (s *OrderService) AdminGetOrder(ctx context.Context, id string) (*models.Order, error) {
	oid, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.FindByID(ctx, oid)
	if errors.Is(err, database.ErrNotFound) {
		return nil, NewNotFound(ErrMsgOrderNotFound)
	}
	if err != nil {
		return nil, NewInternal(err)
	}
	return order, nil
}

// AdminUpdateStatus moves an order one step along the funnel or cancels it.
func (s *OrderService) AdminUpdateStatus(ctx context.Context, id string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, NewValidation("invalid order status")
	}
	order, err := s.AdminGetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.Status.CanTransition(next) {
		return nil, NewConflict(fmt.Sprintf("cannot move order from %s to %s", order.Status, next))
	}
	change := models.OrderChange{Status: next}
	if next == models.OrderStatusCancelled {
		change.CancelReason = "cancelled by store"
		refundOnCancel(order, &change)
	}
	return s.transition(ctx, order, change)
}

// OnPaymentCallback records the gateway outcome. Repeating an already
// applied outcome returns the order unchanged.
func (s *OrderService) OnPaymentCallback(ctx context.Context, res PaymentResult) (*models.Order, error) {
	order, err := s.AdminGetOrder(ctx, res.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentRef != "" && res.Reference != order.PaymentRef {
		return nil, NewValidation("payment reference mismatch")
	}

	pending := order.Status == models.OrderStatusPendingPayment && order.PaymentStatus == models.PaymentStatusPending
	switch res.Status {
	case payment.StatusSuccess:
		if order.PaymentStatus == models.PaymentStatusCompleted || order.PaymentStatus == models.PaymentStatusRefunded {
			return order, nil
		}
		if order.Status == models.OrderStatusCancelled {
			// Money was captured after the order ended; record it as owed back.
			s.log.Error("payment captured for cancelled order, refund required",
				zap.String("orderId", order.ID.Hex()),
				zap.String("reference", res.Reference),
				zap.Float64("amount", order.GrandTotal))
			return s.transition(ctx, order, models.OrderChange{
				PaymentStatus: models.PaymentStatusRefunded,
				PaymentRef:    res.Reference,
			})
		}
		if !pending {
			return nil, NewConflict("payment is no longer pending")
		}
		return s.transition(ctx, order, models.OrderChange{
			Status:        models.OrderStatusConfirmed,
			PaymentStatus: models.PaymentStatusCompleted,
			PaymentRef:    res.Reference,
		})
	case payment.StatusFailed:
		if order.PaymentStatus == models.PaymentStatusFailed {
			return order, nil
		}
		if !pending {
			return nil, NewConflict("payment is no longer pending")
		}
		return s.transition(ctx, order, models.OrderChange{
			Status:        models.OrderStatusCancelled,
			PaymentStatus: models.PaymentStatusFailed,
			PaymentRef:    res.Reference,
			CancelReason:  "payment failed",
		})
	case payment.StatusRefunded:
		if order.PaymentStatus == models.PaymentStatusRefunded {
			return order, nil
		}
		if order.PaymentStatus != models.PaymentStatusCompleted {
			return nil, NewConflict("only completed payments can be refunded")
		}
		return s.transition(ctx, order, models.OrderChange{PaymentStatus: models.PaymentStatusRefunded})
	}
	return nil, NewValidation("unknown payment status")
}

// ExpirePendingPayment cancels an online order whose payment is still
// pending once the payment timeout has passed. It reports whether the order
// was cancelled.
func (s *OrderService) ExpirePendingPayment(ctx context.Context, id string) (bool, error) {
	order, err := s.AdminGetOrder(ctx, id)
	if KindOf(err) == KindNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if order.Status != models.OrderStatusPendingPayment || order.PaymentStatus != models.PaymentStatusPending {
		return false, nil
	}
	if s.now().Sub(order.CreatedAt) < s.paymentTimeout {
		return false, nil
	}

	_, err = s.transition(ctx, order, models.OrderChange{
		Status:        models.OrderStatusCancelled,
		PaymentStatus: models.PaymentStatusFailed,
		CancelReason:  "payment timed out",
	})
	if KindOf(err) == KindConflict {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
