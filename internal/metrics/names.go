package metrics

// Well-known series recorded by the HTTP adapter, the scenarios and the
// runner. Trend values are milliseconds.
const (
	HTTPReqs        = "http_reqs"
	HTTPReqDuration = "http_req_duration"
	HTTPReqFailed   = "http_req_failed"

	Checks             = "checks"
	Iterations         = "iterations"
	IterationsFailed   = "iterations_failed"
	JourneySuccessRate = "journey_success_rate"

	OrderSuccessRate       = "order_success_rate"
	LoginSuccessRate       = "login_success_rate"
	DeliveryCompletionRate = "delivery_completion_rate"

	CustomerJourneyTime = "customer_journey_time"
	VendorJourneyTime   = "vendor_journey_time"
	RiderJourneyTime    = "rider_journey_time"
	AuthResponseTime    = "auth_response_time"
	VendorBrowseTime    = "vendor_browse_time"
	MenuLoadTime        = "menu_load_time"
	OrderPlacementTime  = "order_placement_time"
	OrderTrackingTime   = "order_tracking_time"

	OrdersPlaced        = "orders_placed"
	OrdersAccepted      = "orders_accepted"
	DeliveriesCompleted = "deliveries_completed"
	MenuViews           = "menu_views"
	VendorBrowses       = "vendor_browses"
)

// WellKnown maps every predefined series to its kind.
var WellKnown = map[string]Kind{
	HTTPReqs:        KindCounter,
	HTTPReqDuration: KindTrend,
	HTTPReqFailed:   KindRate,

	Checks:             KindRate,
	Iterations:         KindCounter,
	IterationsFailed:   KindCounter,
	JourneySuccessRate: KindRate,

	OrderSuccessRate:       KindRate,
	LoginSuccessRate:       KindRate,
	DeliveryCompletionRate: KindRate,

	CustomerJourneyTime: KindTrend,
	VendorJourneyTime:   KindTrend,
	RiderJourneyTime:    KindTrend,
	AuthResponseTime:    KindTrend,
	VendorBrowseTime:    KindTrend,
	MenuLoadTime:        KindTrend,
	OrderPlacementTime:  KindTrend,
	OrderTrackingTime:   KindTrend,

	OrdersPlaced:        KindCounter,
	OrdersAccepted:      KindCounter,
	DeliveriesCompleted: KindCounter,
	MenuViews:           KindCounter,
	VendorBrowses:       KindCounter,
}
