package report

// Measure names one input of the grade.
type Measure string

// Grade inputs. Percentages are 0-100, times are milliseconds.
const (
	ErrorPercent      Measure = "error_percent"
	P95Latency        Measure = "p95_ms"
	OrderPercent      Measure = "order_success_percent"
	LoginPercent      Measure = "login_success_percent"
	DeliveryPercent   Measure = "delivery_completion_percent"
	CustomerJourneyMs Measure = "customer_journey_avg_ms"
	VendorJourneyMs   Measure = "vendor_journey_avg_ms"
	RiderJourneyMs    Measure = "rider_journey_avg_ms"
)

// Measures holds observed inputs. A missing measure had no samples and is
// skipped by every rule.
type Measures map[Measure]float64

// Tier deducts Points when the measure crosses Limit.
type Tier struct {
	Limit  float64 `json:"limit" yaml:"limit"`
	Points int     `json:"points" yaml:"points"`
}

// Rule deducts for one measure. Tiers are ordered most severe first and
// only the first crossed tier applies. Below flips the comparison so the
// rule fires when the measure is under the limit.
type Rule struct {
	Measure Measure `json:"measure" yaml:"measure"`
	Below   bool    `json:"below,omitempty" yaml:"below,omitempty"`
	Tiers   []Tier  `json:"tiers" yaml:"tiers"`
}

func crosses(v, limit float64, below bool) bool {
	if below {
		return v < limit
	}
	return v > limit
}

// Deduction returns the points this rule takes from m.
func (r Rule) Deduction(m Measures) int {
	v, ok := m[r.Measure]
	if !ok {
		return 0
	}
	for _, t := range r.Tiers {
		if crosses(v, t.Limit, r.Below) {
			return t.Points
		}
	}
	return 0
}

// Band maps a minimum score to a letter.
type Band struct {
	Min   int    `json:"min" yaml:"min"`
	Grade string `json:"grade" yaml:"grade"`
}

// Advice is a recommendation emitted when its measure crosses Limit.
type Advice struct {
	Measure Measure `json:"measure" yaml:"measure"`
	Below   bool    `json:"below,omitempty" yaml:"below,omitempty"`
	Limit   float64 `json:"limit" yaml:"limit"`
	Text    string  `json:"text" yaml:"text"`
}

// GradeScheme turns measures into a score, a letter and recommendations.
type GradeScheme struct {
	Rules []Rule `json:"rules" yaml:"rules"`

	// Bands ordered by descending Min.
	Bands    []Band   `json:"bands" yaml:"bands"`
	Fallback string   `json:"fallback" yaml:"fallback"`
	Advice   []Advice `json:"advice" yaml:"advice"`
	AllClear string   `json:"allClear" yaml:"allClear"`
}

// DefaultGradeScheme returns the standard deduction table.
func DefaultGradeScheme() *GradeScheme {
	return &GradeScheme{
		Rules: []Rule{
			{Measure: ErrorPercent, Tiers: []Tier{{5, 20}, {2, 10}}},
			{Measure: P95Latency, Tiers: []Tier{{5000, 20}, {3000, 10}}},
			{Measure: OrderPercent, Below: true, Tiers: []Tier{{90, 15}}},
			{Measure: LoginPercent, Below: true, Tiers: []Tier{{95, 10}}},
			{Measure: DeliveryPercent, Below: true, Tiers: []Tier{{85, 10}}},
			{Measure: CustomerJourneyMs, Tiers: []Tier{{45000, 10}}},
			{Measure: VendorJourneyMs, Tiers: []Tier{{20000, 5}}},
			{Measure: RiderJourneyMs, Tiers: []Tier{{25000, 5}}},
		},
		Bands: []Band{
			{Min: 90, Grade: "A"},
			{Min: 80, Grade: "B"},
			{Min: 70, Grade: "C"},
			{Min: 60, Grade: "D"},
		},
		Fallback: "F",
		Advice: []Advice{
			{Measure: ErrorPercent, Limit: 5, Text: "High error rate detected. Investigate server errors and API failures."},
			{Measure: P95Latency, Limit: 5000, Text: "Slow response times detected. Consider database optimization and caching."},
			{Measure: OrderPercent, Below: true, Limit: 90, Text: "Low order success rate. Review order placement flow and payment processing."},
			{Measure: LoginPercent, Below: true, Limit: 95, Text: "Authentication issues detected. Review login flow and token management."},
			{Measure: CustomerJourneyMs, Limit: 45000, Text: "Customer journey is too slow. Optimize UI/UX and reduce API calls."},
		},
		AllClear: "Performance is within acceptable limits. Continue monitoring.",
	}
}

// Score starts at 100 and applies every rule. It never goes below zero.
func (g *GradeScheme) Score(m Measures) int {
	score := 100
	for _, r := range g.Rules {
		score -= r.Deduction(m)
	}
	if score < 0 {
		return 0
	}
	return score
}

// Grade maps a score to its letter.
func (g *GradeScheme) Grade(score int) string {
	for _, b := range g.Bands {
		if score >= b.Min {
			return b.Grade
		}
	}
	return g.Fallback
}

// Recommend lists the advice whose condition holds, in declared order.
func (g *GradeScheme) Recommend(m Measures) []string {
	var out []string
	for _, a := range g.Advice {
		if v, ok := m[a.Measure]; ok && crosses(v, a.Limit, a.Below) {
			out = append(out, a.Text)
		}
	}
	if len(out) == 0 && g.AllClear != "" {
		out = append(out, g.AllClear)
	}
	return out
}
