package testserver

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Order statuses in lifecycle order.
var statusFlow = []string{
	"pending",
	"accepted",
	"preparing",
	"ready_for_pickup",
	"picked_up",
	"in_transit",
	"delivered",
}

func statusRank(status string) int {
	for i, st := range statusFlow {
		if st == status {
			return i
		}
	}
	return -1
}

// CartItem is a line in a customer's cart.
type CartItem struct {
	ID         string  `json:"id"`
	MenuItemID string  `json:"menuItemId"`
	VendorID   string  `json:"vendorId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// OrderItem is a line of a placed order.
type OrderItem struct {
	MenuItemID string  `json:"menuItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// StatusChange is one entry of an order's history.
type StatusChange struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// Order is a placed order.
type Order struct {
	ID              string         `json:"id"`
	CustomerID      string         `json:"customerId"`
	VendorID        string         `json:"vendorId"`
	Status          string         `json:"status"`
	Items           []OrderItem    `json:"items"`
	Subtotal        float64        `json:"subtotal"`
	Tax             float64        `json:"tax"`
	DeliveryFee     float64        `json:"deliveryFee"`
	Total           float64        `json:"total"`
	DeliveryAddress string         `json:"deliveryAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
	CreatedAt       time.Time      `json:"createdAt"`
	AcceptedAt      *time.Time     `json:"acceptedAt,omitempty"`
	History         []StatusChange `json:"-"`
}

func (o *Order) advance(status string) bool {
	if statusRank(status) <= statusRank(o.Status) {
		return false
	}
	now := time.Now().UTC()
	o.Status = status
	if status == "accepted" {
		o.AcceptedAt = &now
	}
	o.History = append(o.History, StatusChange{
		Status:      status,
		Timestamp:   now,
		Description: "Order " + status,
	})
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Server) listVendors(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	s.mu.Lock()
	total := len(s.vendors)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := append([]Vendor(nil), s.vendors[start:end]...)
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vendors":    out,
		"totalCount": total,
		"page":       page,
	})
}

func (s *Server) vendorDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	menu, ok := s.menus[id]
	var vendor Vendor
	for _, v := range s.vendors {
		if v.ID == id {
			vendor = v
		}
	}
	menu = append([]MenuItem(nil), menu...)
	s.mu.Unlock()

	if !ok {
		s.respondError(w, http.StatusNotFound, "vendor not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"vendor": vendor,
		"menu":   menu,
	})
}

func cartView(items []CartItem) map[string]interface{} {
	subtotal := 0.0
	for _, it := range items {
		subtotal += it.Price * float64(it.Quantity)
	}
	if items == nil {
		items = []CartItem{}
	}
	return map[string]interface{}{
		"items":    items,
		"subtotal": round2(subtotal),
		"total":    round2(subtotal*1.08 + 3.99),
	}
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	uid := claimsFrom(r).Subject

	s.mu.Lock()
	items := append([]CartItem(nil), s.carts[uid]...)
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"cart": cartView(items)})
}

func (s *Server) addToCart(w http.ResponseWriter, r *http.Request) {
	var body CartItem
	if err := decode(r, &body); err != nil || body.MenuItemID == "" || body.Quantity < 1 {
		s.respondError(w, http.StatusBadRequest, "menuItemId and a positive quantity are required")
		return
	}

	body.ID = uuid.NewString()
	uid := claimsFrom(r).Subject

	s.mu.Lock()
	s.carts[uid] = append(s.carts[uid], body)
	s.mu.Unlock()

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"cartItem": body})
}

func (s *Server) updateCartItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := decode(r, &body); err != nil || body.Quantity < 1 {
		s.respondError(w, http.StatusBadRequest, "positive quantity required")
		return
	}

	uid := claimsFrom(r).Subject
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.carts[uid] {
		if s.carts[uid][i].ID == id {
			s.carts[uid][i].Quantity = body.Quantity
			s.respondJSON(w, http.StatusOK, map[string]interface{}{"cartItem": s.carts[uid][i]})
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "cart item not found")
}

func (s *Server) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	uid := claimsFrom(r).Subject

	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[uid]
	for i := range items {
		if items[i].ID == id {
			s.carts[uid] = append(items[:i], items[i+1:]...)
			s.respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
			return
		}
	}
	s.respondError(w, http.StatusNotFound, "cart item not found")
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VendorID        string      `json:"vendorId"`
		Items           []OrderItem `json:"items"`
		DeliveryAddress string      `json:"deliveryAddress"`
		PaymentMethod   string      `json:"paymentMethod"`
	}
	if err := decode(r, &body); err != nil || body.VendorID == "" || len(body.Items) == 0 {
		s.respondError(w, http.StatusBadRequest, "vendorId and at least one item are required")
		return
	}

	subtotal := 0.0
	for _, it := range body.Items {
		subtotal += it.Price * float64(it.Quantity)
	}

	uid := claimsFrom(r).Subject
	now := time.Now().UTC()
	order := &Order{
		ID:              uuid.NewString(),
		CustomerID:      uid,
		VendorID:        body.VendorID,
		Status:          "pending",
		Items:           body.Items,
		Subtotal:        round2(subtotal),
		Tax:             round2(subtotal * 0.08),
		DeliveryFee:     3.99,
		Total:           round2(subtotal*1.08 + 3.99),
		DeliveryAddress: body.DeliveryAddress,
		PaymentMethod:   body.PaymentMethod,
		CreatedAt:       now,
		History:         []StatusChange{{Status: "pending", Timestamp: now, Description: "Order placed"}},
	}

	assignment := &Assignment{
		ID:               uuid.NewString(),
		OrderID:          order.ID,
		Status:           "available",
		PickupLocation:   Location{Latitude: 40.7128, Longitude: -74.0060},
		DeliveryLocation: Location{Latitude: 40.7306, Longitude: -73.9866},
		CreatedAt:        now,
	}

	s.mu.Lock()
	s.orders[order.ID] = order
	s.orderIDs = append(s.orderIDs, order.ID)
	s.assignments[assignment.ID] = assignment
	s.assignmentIDs = append(s.assignmentIDs, assignment.ID)
	delete(s.carts, uid)
	s.mu.Unlock()
	s.placed.Add(1)

	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"order": order})
}

func (s *Server) customerOrders(w http.ResponseWriter, r *http.Request) {
	uid := claimsFrom(r).Subject

	s.mu.Lock()
	out := make([]Order, 0)
	for _, id := range s.orderIDs {
		if o := s.orders[id]; o.CustomerID == uid {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"orders": out, "totalCount": len(out)})
}

// lookupOrder returns a copy of the order, or false.
func (s *Server) lookupOrder(id string) (Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Order{}, false
	}
	cp := *o
	cp.History = append([]StatusChange(nil), o.History...)
	return cp, true
}

func (s *Server) trackOrder(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("order_id")
	o, ok := s.lookupOrder(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "order not found")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"tracking": map[string]interface{}{
			"orderId":               o.ID,
			"status":                o.Status,
			"estimatedDeliveryTime": o.CreatedAt.Add(40 * time.Minute),
		},
	})
}

func (s *Server) statusHistory(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookupOrder(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "order not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"statusHistory": o.History})
}

func (s *Server) orderLocation(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookupOrder(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "order not found")
		return
	}

	s.mu.Lock()
	loc := Location{Latitude: 40.7128, Longitude: -74.0060}
	for _, a := range s.assignments {
		if a.OrderID == o.ID && a.Current != nil {
			loc = *a.Current
		}
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"location": loc,
		"orderId":  o.ID,
	})
}

func (s *Server) notifications(w http.ResponseWriter, r *http.Request) {
	uid := claimsFrom(r).Subject

	s.mu.Lock()
	out := make([]map[string]string, 0)
	for _, id := range s.orderIDs {
		o := s.orders[id]
		if o.CustomerID != uid {
			continue
		}
		out = append(out, map[string]string{
			"orderId": o.ID,
			"message": fmt.Sprintf("Your order is %s", o.Status),
		})
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": out})
}

func (s *Server) vendorOrders(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	out := make([]Order, 0)
	for _, id := range s.orderIDs {
		o := s.orders[id]
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"orders": out, "totalCount": len(out)})
}

func (s *Server) vendorOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.lookupOrder(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "order not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"order": o})
}

// vendorAccept is idempotent for orders already past pending.
func (s *Server) vendorAccept(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	o, ok := s.orders[id]
	var accepted bool
	var out Order
	if ok {
		accepted = o.advance("accepted")
		out = *o
	}
	s.mu.Unlock()

	if !ok {
		s.respondError(w, http.StatusNotFound, "order not found")
		return
	}
	if accepted {
		s.accepted.Add(1)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"order": out})
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request, allowed map[string]bool) {
	id := chi.URLParam(r, "id")
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(r, &body); err != nil || !allowed[body.Status] {
		s.respondError(w, http.StatusBadRequest, "invalid status")
		return
	}

	s.mu.Lock()
	o, ok := s.orders[id]
	var advanced bool
	var out Order
	if ok {
		advanced = o.advance(body.Status)
		out = *o
	}
	s.mu.Unlock()

	switch {
	case !ok:
		s.respondError(w, http.StatusNotFound, "order not found")
	case !advanced:
		s.respondError(w, http.StatusConflict, fmt.Sprintf("cannot move order from %s to %s", out.Status, body.Status))
	default:
		if body.Status == "delivered" {
			s.delivered.Add(1)
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"order": out})
	}
}

func (s *Server) vendorStatus(w http.ResponseWriter, r *http.Request) {
	s.updateStatus(w, r, map[string]bool{"preparing": true, "ready_for_pickup": true})
}

func (s *Server) vendorMenu(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var menu []MenuItem
	if len(s.vendors) > 0 {
		menu = append(menu, s.menus[s.vendors[0].ID]...)
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"menu": menu})
}
