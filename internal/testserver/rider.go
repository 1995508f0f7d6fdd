package testserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Location is a coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Assignment is a delivery offered to riders. Status is available,
// active or completed.
type Assignment struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"orderId"`
	RiderID          string    `json:"riderId,omitempty"`
	Status           string    `json:"status"`
	PickupLocation   Location  `json:"pickupLocation"`
	DeliveryLocation Location  `json:"deliveryLocation"`
	Current          *Location `json:"currentLocation,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	out := make([]Assignment, 0)
	for _, id := range s.assignmentIDs {
		if a := s.assignments[id]; status == "" || a.Status == status {
			out = append(out, *a)
		}
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{"assignments": out, "totalCount": len(out)})
}

// findAssignment matches by assignment id or order id. Caller holds mu.
func (s *Server) findAssignment(id string) *Assignment {
	if a, ok := s.assignments[id]; ok {
		return a
	}
	for _, a := range s.assignments {
		if a.OrderID == id {
			return a
		}
	}
	return nil
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	a := s.findAssignment(chi.URLParam(r, "id"))
	var out Assignment
	if a != nil {
		out = *a
	}
	s.mu.Unlock()

	if a == nil {
		s.respondError(w, http.StatusNotFound, "assignment not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"assignment": out})
}

func (s *Server) acceptAssignment(w http.ResponseWriter, r *http.Request) {
	rider := claimsFrom(r).Subject

	s.mu.Lock()
	a := s.findAssignment(chi.URLParam(r, "id"))
	var out Assignment
	conflict := false
	if a != nil {
		switch {
		case a.Status == "available":
			a.Status = "active"
			a.RiderID = rider
		case a.RiderID != rider:
			conflict = true
		}
		out = *a
	}
	s.mu.Unlock()

	switch {
	case a == nil:
		s.respondError(w, http.StatusNotFound, "assignment not found")
	case conflict:
		s.respondError(w, http.StatusConflict, "assignment taken by another rider")
	default:
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"assignment": out})
	}
}

func (s *Server) riderStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if a := s.findAssignment(chi.URLParam(r, "id")); a != nil {
		if o, ok := s.orders[a.OrderID]; ok && statusRank(o.Status) < statusRank("ready_for_pickup") {
			// riders may collect before the kitchen reports ready
			o.advance("ready_for_pickup")
		}
	}
	s.mu.Unlock()

	s.updateStatus(w, r, map[string]bool{"picked_up": true, "in_transit": true, "delivered": true})

	s.mu.Lock()
	if a := s.findAssignment(chi.URLParam(r, "id")); a != nil {
		if o, ok := s.orders[a.OrderID]; ok && o.Status == "delivered" {
			a.Status = "completed"
		}
	}
	s.mu.Unlock()
}

func (s *Server) riderLocation(w http.ResponseWriter, r *http.Request) {
	var loc Location
	if err := decode(r, &loc); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid location")
		return
	}

	rider := claimsFrom(r).Subject
	s.mu.Lock()
	for _, a := range s.assignments {
		if a.RiderID == rider && a.Status == "active" {
			l := loc
			a.Current = &l
		}
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"location":  loc,
		"updatedAt": time.Now().UTC(),
	})
}
