package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/http"
	"github.com/wesleyorama2/gabsload/internal/journey"
	"github.com/wesleyorama2/gabsload/internal/metrics"
)

// customerJourney: login, browse vendors, view a menu, fill the cart,
// review it, place the order, and track it.
func (s *session) customerJourney() *journey.Journey {
	return &journey.Journey{
		Kind: actor.Customer,
		Steps: []journey.Step{
			{Name: "login", Critical: true, Think: journey.Seconds(3, 8), Run: s.login},
			{Name: "browse", Critical: true, Think: journey.Seconds(2, 5), Run: s.browseVendors},
			{Name: "menu", Critical: true, Think: journey.Seconds(3, 8), Run: s.viewMenu},
			{Name: "cart", Critical: true, Think: journey.Seconds(2, 4), Run: s.buildCart},
			{Name: "cart_review", Critical: true, Think: journey.Seconds(2, 5), Run: s.reviewCart},
			{Name: "order", Critical: true, Think: journey.Seconds(3, 6), Run: s.placeOrder},
			{Name: "tracking", Critical: true, Think: journey.Seconds(2, 4), Run: s.trackOrder},
			{Name: "tracking_experience", Run: s.trackingExperience},
		},
	}
}

func (s *session) browseVendors(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	req := http.Get("/restaurants/get-restaurants").
		Named("browse_vendors").
		WithQueryParam("page", "1").
		WithQueryParam("limit", "20")
	resp, out, ok := s.send(ctx, req)
	if resp != nil {
		s.env.Metrics.AddDuration(metrics.VendorBrowseTime, resp.Duration())
	}
	if !ok {
		return out
	}
	s.env.Metrics.Inc(metrics.VendorBrowses)

	if !s.checkSchema("vendor list has vendors", vendorListSchema, resp) {
		return journey.Fail("no vendors found")
	}

	vendors := resp.JSON("vendors").Array()
	s.vendorID = vendors[s.env.intn(len(vendors))].Get("id").String()
	return journey.OK()
}

func (s *session) viewMenu(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	req := http.Get("/restaurants/details/" + s.vendorID).Named("vendor_menu")
	resp, out, ok := s.send(ctx, req)
	if resp != nil {
		s.env.Metrics.AddDuration(metrics.MenuLoadTime, resp.Duration())
	}
	if !ok {
		return out
	}
	s.env.Metrics.Inc(metrics.MenuViews)

	if !s.checkSchema("menu has items", menuSchema, resp) {
		return journey.Fail("menu is empty")
	}

	s.menu = s.menu[:0]
	resp.JSON("menu").ForEach(func(_, item gjson.Result) bool {
		if item.Get("available").Exists() && !item.Get("available").Bool() {
			return true
		}
		s.menu = append(s.menu, menuItem{
			ID:    item.Get("id").String(),
			Name:  item.Get("name").String(),
			Price: item.Get("price").Float(),
		})
		return true
	})
	if len(s.menu) == 0 {
		return journey.Fail("no available menu items")
	}
	return journey.OK()
}

// buildCart adds 1-3 items. It succeeds when at least one add succeeds.
func (s *session) buildCart(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	s.cartItems = s.cartItems[:0]
	var last journey.Outcome
	for _, item := range s.env.pickItems(s.menu) {
		req := http.Post("/customer/cart/add").
			Named("cart_add").
			WithBody(map[string]interface{}{
				"menuItemId": item.MenuItemID,
				"vendorId":   s.vendorID,
				"name":       item.Name,
				"price":      item.Price,
				"quantity":   item.Quantity,
			})
		resp, out, ok := s.send(ctx, req)
		if !ok {
			last = out
			continue
		}
		s.check("cart item added", resp.JSON("cartItem.id").Exists(), "")
		s.cartItems = append(s.cartItems, item)
	}

	if len(s.cartItems) == 0 {
		if last.Reason == "" {
			return journey.Fail("no items added to cart")
		}
		return last
	}
	return journey.OK()
}

func (s *session) reviewCart(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	resp, out, ok := s.send(ctx, http.Get("/customer/cart/list").Named("cart_list"))
	if !ok {
		return out
	}
	s.check("cart has items", resp.JSON("cart.items.#").Int() > 0, "")
	s.check("cart has total", resp.JSON("cart.total").Exists(), "")
	return journey.OK()
}

func (s *session) placeOrder(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	body := map[string]interface{}{
		"vendorId":        s.vendorID,
		"customerId":      s.userID,
		"items":           s.cartItems,
		"deliveryAddress": s.env.address(),
		"paymentMethod":   "credit_card",
	}
	if s.env.intn(5) == 0 {
		body["specialInstructions"] = "Please ring doorbell"
	}

	req := http.Post("/customer/order/place").Named("place_order").WithBody(body)
	resp, out, ok := s.send(ctx, req)

	m := s.env.Metrics
	m.AddRate(metrics.OrderSuccessRate, ok)
	if resp != nil {
		m.AddDuration(metrics.OrderPlacementTime, resp.Duration())
		s.check("order placement response time < 5000ms", resp.Duration() < 5*time.Second, resp.Duration().String())
	}
	if !ok {
		return out
	}
	m.Inc(metrics.OrdersPlaced)

	s.checkSchema("order has required fields", orderSchema, resp)
	s.check("order status is pending", resp.JSON("order.status").String() == "pending", resp.JSON("order.status").String())

	s.orderID = resp.JSON("order.id").String()
	s.orderTotal = resp.JSON("order.total").Float()
	if s.orderID == "" {
		return journey.Fail("order response has no id")
	}
	return journey.OK()
}

func (s *session) trackOrder(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	req := http.Get("/customer/order/track").
		Named("track_order").
		WithQueryParam("order_id", s.orderID)
	resp, out, ok := s.send(ctx, req)
	if resp != nil {
		s.env.Metrics.AddDuration(metrics.OrderTrackingTime, resp.Duration())
	}
	if !ok {
		return out
	}

	s.checkSchema("tracking has status", trackingSchema, resp)
	s.check("tracking matches order", resp.JSON("tracking.orderId").String() == s.orderID, "")
	return journey.OK()
}

// trackingExperience polls history, courier location and notifications.
// Every call runs; the first failure is reported.
func (s *session) trackingExperience(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	calls := []*http.Request{
		http.Get(fmt.Sprintf("/orders/%s/status-history", s.orderID)).Named("order_status_history"),
		http.Get(fmt.Sprintf("/orders/%s/track/location", s.orderID)).Named("order_location"),
		http.Get("/notifications/delivery").Named("delivery_notifications"),
	}

	result := journey.OK()
	for _, req := range calls {
		if _, out, ok := s.send(ctx, req); !ok && result.Success {
			result = out
		}
	}
	return result
}
