package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"grocery/models"
	"grocery/payment"
	"grocery/pricing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func placeCOD(t *testing.T, f *fixture, owner string, items ...ItemInput) *models.Order {
	t.Helper()
	res, err := f.orders.PlaceOrder(context.Background(), owner, PlaceOrderInput{
		AddressID:     f.addAddress(t, owner),
		PaymentMethod: models.PaymentMethodCOD,
		Items:         items,
	})
	require.NoError(t, err)
	return res.Order
}

func TestPlaceOrderUsesCatalogPrices(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct(t, "Paneer", 50)

	order := placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 2})
	assert.Equal(t, 100.0, order.ItemsTotal)
	assert.Equal(t, 2.0, order.HandlingCharge)
	assert.Equal(t, 102.0, order.GrandTotal)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Paneer", order.Items[0].Name)
	assert.Equal(t, 50.0, order.Items[0].Price)

	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)
	assert.Equal(t, order.CreatedAt.Add(72*time.Hour), order.EstimatedDelivery)
	assert.True(t, strings.HasPrefix(order.Address.Details, "Home: 12 Lake View"))
	assert.Equal(t, []string{models.EventOrderCreated}, f.events.Types())
	assert.Empty(t, f.gateway.calls)
}

func TestPlaceOrderMergesDuplicateItems(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct(t, "Curd", 25)

	order := placeCOD(t, f, "u1",
		ItemInput{ProductID: pid.Hex(), Quantity: 1},
		ItemInput{ProductID: pid.Hex(), Quantity: 3},
	)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 4, order.Items[0].Quantity)
	assert.Equal(t, 100.0, order.ItemsTotal)
}

func TestPlaceOrderRejectsOversizedQuantities(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Curd", 25).Hex()
	addressID := f.addAddress(t, "u1")

	for _, items := range [][]ItemInput{
		{{ProductID: pid, Quantity: math.MaxInt}, {ProductID: pid, Quantity: math.MaxInt}},
		{{ProductID: pid, Quantity: 600}, {ProductID: pid, Quantity: 600}},
		{{ProductID: pid, Quantity: models.MaxLineQuantity + 1}},
	} {
		_, err := f.orders.PlaceOrder(ctx, "u1", PlaceOrderInput{
			AddressID:     addressID,
			PaymentMethod: models.PaymentMethodCOD,
			Items:         items,
		})
		requireKind(t, err, KindValidation)
	}

	orders, err := f.orders.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	order := placeCOD(t, f, "u1",
		ItemInput{ProductID: pid, Quantity: 400},
		ItemInput{ProductID: pid, Quantity: 600},
	)
	assert.Equal(t, models.MaxLineQuantity, order.Items[0].Quantity)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct(t, "Salt", 20).Hex()
	address := f.addAddress(t, "u1")
	item := []ItemInput{{ProductID: pid, Quantity: 1}}

	cases := map[string]PlaceOrderInput{
		"payment method": {AddressID: address, PaymentMethod: "CHEQUE", Items: item},
		"notes":          {AddressID: address, PaymentMethod: models.PaymentMethodCOD, Items: item, OrderNotes: strings.Repeat("x", 501)},
		"no items":       {AddressID: address, PaymentMethod: models.PaymentMethodCOD},
		"zero quantity":  {AddressID: address, PaymentMethod: models.PaymentMethodCOD, Items: []ItemInput{{ProductID: pid, Quantity: 0}}},
		"product id":     {AddressID: address, PaymentMethod: models.PaymentMethodCOD, Items: []ItemInput{{ProductID: "nope", Quantity: 1}}},
		"address id":     {AddressID: "nope", PaymentMethod: models.PaymentMethodCOD, Items: item},
		"charges":        {AddressID: address, PaymentMethod: models.PaymentMethodCOD, Items: item, Charges: pricing.ChargesUpdate{TipAmount: float(-5)}},
		"empty cart":     {AddressID: address, PaymentMethod: models.PaymentMethodCOD, FromCart: true},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(context.Background(), "u1", in)
			requireKind(t, err, KindValidation)
		})
	}

	orders, err := f.orders.ListOrders(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrderNotesAtLimit(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct(t, "Salt", 20)

	_, err := f.orders.PlaceOrder(context.Background(), "u1", PlaceOrderInput{
		AddressID:     f.addAddress(t, "u1"),
		PaymentMethod: models.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: pid.Hex(), Quantity: 1}},
		OrderNotes:    strings.Repeat("é", models.MaxOrderNotesLength),
	})
	assert.NoError(t, err)
}

func TestPlaceOrderForeignAddress(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct(t, "Ghee", 500)
	foreign := f.addAddress(t, "someone-else")

	_, err := f.orders.PlaceOrder(context.Background(), "u1", PlaceOrderInput{
		AddressID:     foreign,
		PaymentMethod: models.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: pid.Hex(), Quantity: 1}},
	})
	requireKind(t, err, KindNotFound)
	assert.Empty(t, f.events.Events)
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	f := newFixture(t)
	missing := primitive.NewObjectID()

	_, err := f.orders.PlaceOrder(context.Background(), "u1", PlaceOrderInput{
		AddressID:     f.addAddress(t, "u1"),
		PaymentMethod: models.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: missing.Hex(), Quantity: 1}},
	})
	requireKind(t, err, KindNotFound)
	assert.Contains(t, err.Error(), missing.Hex())
}

func TestPlaceOrderCatalogFailure(t *testing.T) {
	store := newFixture(t).store
	pid := primitive.NewObjectID()
	f := newFixture(t, withCatalog(flakyCatalog{ProductCatalog: store.Products, broken: map[primitive.ObjectID]bool{pid: true}}))

	_, err := f.orders.PlaceOrder(context.Background(), "u1", PlaceOrderInput{
		AddressID:     f.addAddress(t, "u1"),
		PaymentMethod: models.PaymentMethodCOD,
		Items:         []ItemInput{{ProductID: pid.Hex(), Quantity: 1}},
	})
	requireKind(t, err, KindUpstream)
}

func TestPlaceOrderFromCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Atta", 49)
	_, err := f.carts.SetItemQuantity(ctx, "u1", pid, 2)
	require.NoError(t, err)
	_, err = f.carts.SetCharges(ctx, "u1", pricing.ChargesUpdate{TipAmount: float(20), DonationAmount: float(1)})
	require.NoError(t, err)

	res, err := f.orders.PlaceOrder(ctx, "u1", PlaceOrderInput{
		AddressID:     f.addAddress(t, "u1"),
		PaymentMethod: models.PaymentMethodCOD,
		FromCart:      true,
		Charges:       pricing.ChargesUpdate{DonationAmount: float(0)},
	})
	require.NoError(t, err)
	assert.Equal(t, 98.0, res.Order.ItemsTotal)
	assert.Equal(t, 20.0, res.Order.TipAmount)
	assert.Equal(t, 120.0, res.Order.GrandTotal)

	stored, err := f.carts.StoredCart(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestPlaceOrderClearFailureDoesNotFail(t *testing.T) {
	f := newFixture(t, withClearer(failingClearer{}))
	pid := f.addProduct(t, "Oil", 150)

	order := placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 1})
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
}

func TestDeliveryFeeWaivedAboveThreshold(t *testing.T) {
	f := newFixture(t, withPolicy(pricing.Policy{HandlingCharge: 2, DeliveryFee: 30, FreeDeliveryAbove: 200}))
	cheap := f.addProduct(t, "Chips", 20)
	pricey := f.addProduct(t, "Saffron", 250)

	order := placeCOD(t, f, "u1", ItemInput{ProductID: cheap.Hex(), Quantity: 1})
	assert.Equal(t, 30.0, order.DeliveryCharge)
	assert.Equal(t, 52.0, order.GrandTotal)

	order = placeCOD(t, f, "u1", ItemInput{ProductID: pricey.Hex(), Quantity: 1})
	assert.Equal(t, 0.0, order.DeliveryCharge)
	assert.Equal(t, 252.0, order.GrandTotal)
}

func placeOnline(t *testing.T, f *fixture, owner string, pid primitive.ObjectID) *PlaceOrderResult {
	t.Helper()
	res, err := f.orders.PlaceOrder(context.Background(), owner, PlaceOrderInput{
		AddressID:     f.addAddress(t, owner),
		PaymentMethod: models.PaymentMethodUPI,
		Items:         []ItemInput{{ProductID: pid.Hex(), Quantity: 1}},
	})
	require.NoError(t, err)
	return res
}

func TestPlaceOnlineOrder(t *testing.T) {
	f := newFixture(t)
	pid := f.addProduct(t, "Honey", 300)

	res := placeOnline(t, f, "u1", pid)
	id := res.Order.ID.Hex()
	assert.Equal(t, "https://pay.test/"+id, res.PaymentURL)
	assert.Equal(t, models.OrderStatusPendingPayment, res.Order.Status)
	assert.Equal(t, models.PaymentStatusPending, res.Order.PaymentStatus)
	assert.Equal(t, "ref-"+id, res.Order.PaymentRef)
	assert.Equal(t, []string{id}, f.scheduler.orderIDs)
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, 302.0, f.gateway.calls[0].Amount)
}

func TestGatewayFailureCancelsOrderAndKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.gateway.err = errors.New("connection refused")
	pid := f.addProduct(t, "Honey", 300)
	_, err := f.carts.SetItemQuantity(ctx, "u1", pid, 1)
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, "u1", PlaceOrderInput{
		AddressID:     f.addAddress(t, "u1"),
		PaymentMethod: models.PaymentMethodCard,
		FromCart:      true,
	})
	requireKind(t, err, KindUpstream)

	orders, err := f.orders.ListOrders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusCancelled, orders[0].Status)
	assert.Equal(t, models.PaymentStatusFailed, orders[0].PaymentStatus)
	assert.Equal(t, ErrMsgPaymentInit, orders[0].CancelReason)

	stored, err := f.carts.StoredCart(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.QuantityOf(pid))
	assert.NotContains(t, f.events.Types(), models.EventOrderCreated)
}

func TestGetOrderIsOwnerScoped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Rice", 60)
	order := placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 1})

	got, err := f.orders.GetOrder(ctx, "u1", order.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)

	_, err = f.orders.GetOrder(ctx, "u2", order.ID.Hex())
	requireKind(t, err, KindNotFound)
	_, err = f.orders.GetOrder(ctx, "u1", "bad")
	requireKind(t, err, KindValidation)
}

func TestListOrdersLimitsToRecent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < customerOrderLimit+2; i++ {
		require.NoError(t, f.store.Orders.Create(ctx, &models.Order{
			UserID:    "u1",
			Status:    models.OrderStatusConfirmed,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}
	orders, err := f.orders.ListOrders(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, orders, customerOrderLimit)
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Rice", 60)
	order := placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 1})

	cancelled, err := f.orders.CancelOrder(ctx, "u1", order.ID.Hex(), "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, models.PaymentStatusCompleted, cancelled.PaymentStatus)
	assert.Equal(t, "cancelled by customer", cancelled.CancelReason)

	_, err = f.orders.CancelOrder(ctx, "u1", order.ID.Hex(), "")
	requireKind(t, err, KindConflict)
}

func TestCancelAfterDeliveredRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Rice", 60)
	order := placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 1})

	for _, next := range []models.OrderStatus{models.OrderStatusPreparing, models.OrderStatusShipped, models.OrderStatusDelivered} {
		_, err := f.orders.AdminUpdateStatus(ctx, order.ID.Hex(), next)
		require.NoError(t, err)
	}

	_, err := f.orders.CancelOrder(ctx, "u1", order.ID.Hex(), "changed my mind")
	requireKind(t, err, KindConflict)
	_, err = f.orders.AdminUpdateStatus(ctx, order.ID.Hex(), models.OrderStatusCancelled)
	requireKind(t, err, KindConflict)
}

func TestCancelPaidOnlineOrderRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Honey", 300)
	res := placeOnline(t, f, "u1", pid)
	id := res.Order.ID.Hex()

	_, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: res.Order.PaymentRef, Status: payment.StatusSuccess})
	require.NoError(t, err)

	cancelled, err := f.orders.CancelOrder(ctx, "u1", id, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, cancelled.PaymentStatus)
}

func TestAdminUpdateStatusOneStep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Rice", 60)
	order := placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 1})

	_, err := f.orders.AdminUpdateStatus(ctx, order.ID.Hex(), models.OrderStatusShipped)
	requireKind(t, err, KindConflict)
	_, err = f.orders.AdminUpdateStatus(ctx, order.ID.Hex(), "lost")
	requireKind(t, err, KindValidation)

	updated, err := f.orders.AdminUpdateStatus(ctx, order.ID.Hex(), models.OrderStatusPreparing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPreparing, updated.Status)
	assert.Equal(t, models.EventOrderStatusUpdated, f.events.Events[len(f.events.Events)-1].Type)

	_, err = f.orders.AdminUpdateStatus(ctx, order.ID.Hex(), models.OrderStatusConfirmed)
	requireKind(t, err, KindConflict)
}

func TestAdminListOrdersByStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Rice", 60)
	placeCOD(t, f, "u1", ItemInput{ProductID: pid.Hex(), Quantity: 1})
	placeOnline(t, f, "u2", pid)

	pending, err := f.orders.AdminListOrders(ctx, models.OrderStatusPendingPayment, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u2", pending[0].UserID)

	all, err := f.orders.AdminListOrders(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.orders.AdminListOrders(ctx, "bogus", 0)
	requireKind(t, err, KindValidation)
}

func TestPaymentCallbackSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Honey", 300)
	res := placeOnline(t, f, "u1", pid)
	id, ref := res.Order.ID.Hex(), res.Order.PaymentRef

	_, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: "forged", Status: payment.StatusSuccess})
	requireKind(t, err, KindValidation)

	order, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: ref, Status: payment.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusCompleted, order.PaymentStatus)

	events := len(f.events.Events)
	again, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: ref, Status: payment.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, again.Status)
	assert.Len(t, f.events.Events, events)

	_, err = f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: ref, Status: payment.StatusFailed})
	requireKind(t, err, KindConflict)

	refunded, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: ref, Status: payment.StatusRefunded})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, refunded.PaymentStatus)
}

func TestPaymentCallbackFailureCancels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Honey", 300)
	res := placeOnline(t, f, "u1", pid)

	order, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: res.Order.ID.Hex(), Reference: res.Order.PaymentRef, Status: payment.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)

	late, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: res.Order.ID.Hex(), Reference: res.Order.PaymentRef, Status: payment.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, late.Status)
	assert.Equal(t, models.PaymentStatusRefunded, late.PaymentStatus)
}

func TestLatePaymentOnCustomerCancelledOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Honey", 300)
	res := placeOnline(t, f, "u1", pid)
	id, ref := res.Order.ID.Hex(), res.Order.PaymentRef

	cancelled, err := f.orders.CancelOrder(ctx, "u1", id, "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, cancelled.PaymentStatus)

	order, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: ref, Status: payment.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, models.PaymentStatusRefunded, order.PaymentStatus)

	again, err := f.orders.OnPaymentCallback(ctx, PaymentResult{OrderID: id, Reference: ref, Status: payment.StatusSuccess})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, again.PaymentStatus)
}

func TestExpirePendingPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pid := f.addProduct(t, "Honey", 300)
	res := placeOnline(t, f, "u1", pid)
	id := res.Order.ID.Hex()

	expired, err := f.orders.ExpirePendingPayment(ctx, id)
	require.NoError(t, err)
	assert.False(t, expired)

	f.orders.now = func() time.Time { return time.Now().Add(time.Hour) }
	expired, err = f.orders.ExpirePendingPayment(ctx, id)
	require.NoError(t, err)
	assert.True(t, expired)

	order, err := f.orders.AdminGetOrder(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, order.Status)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)

	expired, err = f.orders.ExpirePendingPayment(ctx, id)
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = f.orders.ExpirePendingPayment(ctx, primitive.NewObjectID().Hex())
	require.NoError(t, err)
	assert.False(t, expired)
}
