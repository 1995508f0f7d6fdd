package scenario

import (
	"context"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/http"
	"github.com/wesleyorama2/gabsload/internal/journey"
	"github.com/wesleyorama2/gabsload/internal/metrics"
)

// riderJourney: login, find an assignment, inspect it, deliver it, and
// report a location.
func (s *session) riderJourney() *journey.Journey {
	return &journey.Journey{
		Kind: actor.Rider,
		Steps: []journey.Step{
			{Name: "login", Critical: true, Think: journey.Seconds(2, 5), Run: s.login},
			{Name: "view_assignments", Critical: true, Think: journey.Seconds(2, 4), Run: s.viewAssignments},
			{Name: "assignment_details", Critical: true, Think: journey.Seconds(1, 3), Run: s.assignmentDetails},
			{Name: "delivery_flow", Critical: true, Think: journey.Seconds(1, 2), Run: s.deliveryFlow},
			{Name: "update_location", Run: s.updateLocation},
		},
	}
}

func (s *session) listAssignments(ctx context.Context, status string) ([]gjson.Result, journey.Outcome, bool) {
	req := http.Get("/rider/assignments").Named("rider_assignments")
	if status != "" {
		req.WithQueryParam("status", status)
	}
	resp, out, ok := s.send(ctx, req)
	if !ok {
		return nil, out, false
	}
	s.check("rider assignments listed", resp.JSON("assignments").IsArray(), "")
	return resp.JSON("assignments").Array(), out, true
}

// viewAssignments prefers available assignments and falls back to any.
// With none at all the journey ends successfully.
func (s *session) viewAssignments(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	assignments, out, ok := s.listAssignments(ctx, "available")
	if !ok {
		return out
	}
	if len(assignments) == 0 {
		if assignments, out, ok = s.listAssignments(ctx, ""); !ok {
			return out
		}
	}
	if len(assignments) == 0 {
		return journey.Done("no_assignments")
	}

	picked := assignments[s.env.intn(len(assignments))]
	s.assignmentID = picked.Get("id").String()
	s.assignmentOrder = picked.Get("orderId").String()
	s.assignmentStatus = picked.Get("status").String()
	if s.assignmentID == "" {
		return journey.Fail("assignment has no id")
	}
	return journey.OK()
}

func (s *session) assignmentDetails(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	resp, out, ok := s.send(ctx, http.Get("/rider/assignments/"+s.assignmentID).Named("rider_assignment_details"))
	if !ok {
		return out
	}
	s.checkSchema("assignment has required fields", assignmentSchema, resp)
	if st := resp.JSON("assignment.status").String(); st != "" {
		s.assignmentStatus = st
	}
	if id := resp.JSON("assignment.orderId").String(); id != "" {
		s.assignmentOrder = id
	}
	return journey.OK()
}

// deliveryFlow accepts the assignment and, when it was available, carries
// the order through pickup to delivery.
func (s *session) deliveryFlow(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	wasAvailable := s.assignmentStatus == "available"

	req := http.Post("/rider/assignments/" + s.assignmentID + "/accept").Named("rider_accept_assignment")
	if _, out, ok := s.send(ctx, req); !ok {
		return out
	}
	if !wasAvailable {
		return journey.OK()
	}

	result := journey.OK()
	for _, status := range []string{"picked_up", "in_transit", "delivered"} {
		req := http.Patch("/rider/orders/" + s.assignmentOrder + "/status").
			Named("rider_update_status").
			WithBody(map[string]string{"status": status})
		if _, out, ok := s.send(ctx, req); !ok {
			result = out
			break
		}
	}

	s.env.Metrics.AddRate(metrics.DeliveryCompletionRate, result.Success)
	if result.Success {
		s.env.Metrics.Inc(metrics.DeliveriesCompleted)
	}
	return result
}

func (s *session) updateLocation(ctx context.Context) journey.Outcome {
	s.authorize(ctx)

	req := http.Post("/rider/location").Named("rider_location").WithBody(s.env.location())
	_, out, _ := s.send(ctx, req)
	return out
}
