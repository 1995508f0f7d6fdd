package scenario

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/http"
	"github.com/wesleyorama2/gabsload/internal/journey"
	"github.com/wesleyorama2/gabsload/internal/metrics"
)

// vendorJourney: login, find an order, inspect it, and move it through the
// kitchen states.
func (s *session) vendorJourney() *journey.Journey {
	return &journey.Journey{
		Kind: actor.Vendor,
		Steps: []journey.Step{
			{Name: "login", Critical: true, Think: journey.Seconds(2, 5), Run: s.login},
			{Name: "view_orders", Critical: true, Think: journey.Seconds(2, 4), Run: s.viewOrders},
			{Name: "order_details", Critical: true, Think: journey.Seconds(1, 3), Run: s.orderDetails},
			{Name: "process_order", Critical: true, Think: journey.Seconds(1, 2), Run: s.processOrder},
			{Name: "view_updated_orders", Think: journey.Seconds(2, 4), Run: s.viewUpdatedOrders},
			{Name: "view_menu", Run: s.viewVendorMenu},
		},
	}
}

// listOrders returns the orders array of GET /vendor/orders.
func (s *session) listOrders(ctx context.Context, status string) ([]gjson.Result, journey.Outcome, bool) {
	req := http.Get("/vendor/orders").Named("vendor_orders")
	if status != "" {
		req.WithQueryParam("status", status)
	}
	resp, out, ok := s.send(ctx, req)
	if !ok {
		return nil, out, false
	}
	s.check("vendor orders listed", resp.JSON("orders").IsArray(), "")
	return resp.JSON("orders").Array(), out, true
}

// viewOrders prefers pending orders and falls back to any order. With no
// orders at all the journey ends successfully.
func (s *session) viewOrders(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	orders, out, ok := s.listOrders(ctx, "pending")
	if !ok {
		return out
	}
	if len(orders) == 0 {
		if orders, out, ok = s.listOrders(ctx, ""); !ok {
			return out
		}
	}
	if len(orders) == 0 {
		return journey.Done("no_orders")
	}

	picked := orders[s.env.intn(len(orders))]
	s.vendorOrderID = picked.Get("id").String()
	s.vendorOrderStatus = picked.Get("status").String()
	if s.vendorOrderID == "" {
		return journey.Fail("order has no id")
	}
	return journey.OK()
}

func (s *session) orderDetails(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	resp, out, ok := s.send(ctx, http.Get("/vendor/orders/"+s.vendorOrderID).Named("vendor_order_details"))
	if !ok {
		return out
	}
	s.checkSchema("order details have required fields", orderSchema, resp)
	if st := resp.JSON("order.status").String(); st != "" {
		s.vendorOrderStatus = st
	}
	return journey.OK()
}

// processOrder accepts the order and, when it was still pending, moves it
// to preparing and then ready_for_pickup.
func (s *session) processOrder(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	wasPending := s.vendorOrderStatus == "pending"

	req := http.Post("/vendor/orders/" + s.vendorOrderID + "/accept").Named("vendor_accept_order")
	_, out, ok := s.send(ctx, req)
	s.env.Metrics.AddRate(metrics.OrderSuccessRate, ok)
	if !ok {
		return out
	}
	s.env.Metrics.Inc(metrics.OrdersAccepted)

	if !wasPending {
		return journey.OK()
	}

	for _, status := range []string{"preparing", "ready_for_pickup"} {
		req := http.Patch("/vendor/orders/" + s.vendorOrderID + "/status").
			Named("vendor_update_status").
			WithBody(map[string]string{"status": status})
		resp, out, ok := s.send(ctx, req)
		if !ok {
			return out
		}
		s.check("order moved to "+status, resp.JSON("order.status").String() == status, "")
	}
	return journey.OK()
}

func (s *session) viewUpdatedOrders(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	_, out, _ := s.listOrders(ctx, "")
	return out
}

func (s *session) viewVendorMenu(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	resp, out, ok := s.send(ctx, http.Get("/vendor/menu").Named("vendor_menu_manage"))
	if ok {
		s.check("vendor menu listed", resp.JSON("menu").Exists(), "")
	}
	return out
}
