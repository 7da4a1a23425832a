package features

import (
	"context"
	"fmt"
	"testing"

	"grocery/database"
	"grocery/events"
	"grocery/models"
	"grocery/payment"
	"grocery/pricing"
	"grocery/services"

	"github.com/cucumber/godog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const owner = "shopper"

type pricingTestContext struct {
	store    *database.Store
	carts    *services.CartService
	orders   *services.OrderService
	products map[string]primitive.ObjectID
	address  string
	view     *services.CartView
	order    *models.Order
}

func (c *pricingTestContext) reset() {
	c.store = database.NewMemory().Store()
	c.carts = services.NewCartService(c.store.Carts, c.store.Products, pricing.DefaultPolicy(), zap.NewNop())
	c.orders = services.NewOrderService(services.OrderServiceConfig{
		Orders:    c.store.Orders,
		Catalog:   c.store.Products,
		Addresses: c.store.Addresses,
		Carts:     c.carts,
		Clearer:   c.carts,
		Gateway:   payment.Sandbox{ReturnURL: "http://localhost/orders"},
		Events:    events.Nop{},
		Policy:    pricing.DefaultPolicy(),
	})
	c.products = map[string]primitive.ObjectID{}
	c.address = ""
	c.view = nil
	c.order = nil
}

func (c *pricingTestContext) aProductPricedAt(name string, price float64) error {
	p := &models.Product{Name: name, Category: "grocery", Price: price, IsActive: true}
	if err := c.store.Products.Create(context.Background(), p); err != nil {
		return err
	}
	c.products[name] = p.ID
	return nil
}

func (c *pricingTestContext) iHaveASavedAddress() error {
	a := &models.Address{
		UserID:        owner,
		AddressType:   models.AddressTypeHome,
		ReceiverName:  "Asha",
		ReceiverPhone: "9876543210",
		Line1:         "12 Lake View",
		City:          "Pune",
	}
	if err := c.store.Addresses.Create(context.Background(), a); err != nil {
		return err
	}
	c.address = a.ID.Hex()
	return nil
}

func (c *pricingTestContext) iViewMyCart() (err error) {
	c.view, err = c.carts.GetCart(context.Background(), owner)
	return err
}

func (c *pricingTestContext) iSetTheQuantityOfTo(name string, quantity int) (err error) {
	pid, ok := c.products[name]
	if !ok {
		return fmt.Errorf("unknown product %q", name)
	}
	c.view, err = c.carts.SetItemQuantity(context.Background(), owner, pid, quantity)
	return err
}

func (c *pricingTestContext) iSetTheTipAndDonation(tip, donation float64) (err error) {
	c.view, err = c.carts.SetCharges(context.Background(), owner, pricing.ChargesUpdate{TipAmount: &tip, DonationAmount: &donation})
	return err
}

func (c *pricingTestContext) iSetTheDonationTo(donation float64) (err error) {
	c.view, err = c.carts.SetCharges(context.Background(), owner, pricing.ChargesUpdate{DonationAmount: &donation})
	return err
}

func expectAmount(label string, want, got float64) error {
	if want != got {
		return fmt.Errorf("expected %s %v, got %v", label, want, got)
	}
	return nil
}

func (c *pricingTestContext) theItemsTotalIs(want float64) error {
	return expectAmount("items total", want, c.view.ItemsTotal)
}

func (c *pricingTestContext) theGrandTotalIs(want float64) error {
	if err := expectAmount("grand total", want, c.view.GrandTotal); err != nil {
		return err
	}
	sum := pricing.Round(c.view.ItemsTotal + c.view.DeliveryCharge + c.view.HandlingCharge + c.view.TipAmount + c.view.DonationAmount)
	return expectAmount("sum of components", c.view.GrandTotal, sum)
}

func (c *pricingTestContext) myCartDoesNotContain(name string) error {
	for _, line := range c.view.Products {
		if line.ProductID == c.products[name].Hex() {
			return fmt.Errorf("cart still contains %q", name)
		}
	}
	return nil
}

func (c *pricingTestContext) iOrderOfPaying(quantity int, name, method string) error {
	res, err := c.orders.PlaceOrder(context.Background(), owner, services.PlaceOrderInput{
		AddressID:     c.address,
		PaymentMethod: models.PaymentMethod(method),
		Items:         []services.ItemInput{{ProductID: c.products[name].Hex(), Quantity: quantity}},
	})
	if err != nil {
		return err
	}
	c.order = res.Order
	return nil
}

func (c *pricingTestContext) theOrderItemsTotalIs(want float64) error {
	return expectAmount("order items total", want, c.order.ItemsTotal)
}

func (c *pricingTestContext) theOrderGrandTotalIs(want float64) error {
	return expectAmount("order grand total", want, c.order.GrandTotal)
}

func (c *pricingTestContext) theOrderStatusIs(want string) error {
	if string(c.order.Status) != want {
		return fmt.Errorf("expected status %s, got %s", want, c.order.Status)
	}
	return nil
}

func (c *pricingTestContext) theStoreMovesTheOrderTo(status string) (err error) {
	c.order, err = c.orders.AdminUpdateStatus(context.Background(), c.order.ID.Hex(), models.OrderStatus(status))
	return err
}

func (c *pricingTestContext) cancellingTheOrderFailsWith(kind string) error {
	_, err := c.orders.CancelOrder(context.Background(), owner, c.order.ID.Hex(), "")
	if err == nil {
		return fmt.Errorf("expected cancel to fail")
	}
	if got := services.KindOf(err).String(); got != kind {
		return fmt.Errorf("expected %s, got %s (%v)", kind, got, err)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &pricingTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a product "([^"]*)" priced at (\d+(?:\.\d+)?)$`, tc.aProductPricedAt)
	ctx.Step(`^I have a saved address$`, tc.iHaveASavedAddress)

	// When steps
	ctx.Step(`^I view my cart$`, tc.iViewMyCart)
	ctx.Step(`^I set the quantity of "([^"]*)" to (-?\d+)$`, tc.iSetTheQuantityOfTo)
	ctx.Step(`^I set the tip to (\d+(?:\.\d+)?) and the donation to (\d+(?:\.\d+)?)$`, tc.iSetTheTipAndDonation)
	ctx.Step(`^I set the donation to (\d+(?:\.\d+)?)$`, tc.iSetTheDonationTo)
	ctx.Step(`^I order (\d+) of "([^"]*)" paying "([^"]*)"$`, tc.iOrderOfPaying)
	ctx.Step(`^the store moves the order to "([^"]*)"$`, tc.theStoreMovesTheOrderTo)

	// Then steps
	ctx.Step(`^the items total is (\d+(?:\.\d+)?)$`, tc.theItemsTotalIs)
	ctx.Step(`^the grand total is (\d+(?:\.\d+)?)$`, tc.theGrandTotalIs)
	ctx.Step(`^my cart does not contain "([^"]*)"$`, tc.myCartDoesNotContain)
	ctx.Step(`^the order items total is (\d+(?:\.\d+)?)$`, tc.theOrderItemsTotalIs)
	ctx.Step(`^the order grand total is (\d+(?:\.\d+)?)$`, tc.theOrderGrandTotalIs)
	ctx.Step(`^the order status is "([^"]*)"$`, tc.theOrderStatusIs)
	ctx.Step(`^cancelling the order fails with "([^"]*)"$`, tc.cancellingTheOrderFailsWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"cart_pricing.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
