package scenario

import (
	"fmt"
	"strings"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/auth"
)

// Pool holds the test accounts per actor kind.
type Pool map[actor.Kind][]auth.Credentials

// Pick returns a random account for kind, falling back to the built-in
// accounts when the pool has none.
func (p Pool) Pick(kind actor.Kind, intn func(int) int) auth.Credentials {
	accounts := p[kind]
	if len(accounts) == 0 {
		accounts = DefaultPool()[kind]
	}
	if len(accounts) == 1 {
		return accounts[0]
	}
	return accounts[intn(len(accounts))]
}

var (
	firstNames  = []string{"john", "jane", "mike", "sarah", "david", "lisa", "tom", "emma"}
	lastNames   = []string{"smith", "johnson", "williams", "brown", "jones", "garcia", "miller", "davis"}
	restaurants = []string{"Pizza Palace", "Burger House", "Sushi Express", "Taco Town", "Pasta Paradise"}
	riderNames  = []string{"alex.wilson", "jordan.anderson", "casey.taylor", "morgan.white", "riley.harris"}
)

// DefaultPool returns a small set of generated accounts per kind.
func DefaultPool() Pool {
	pool := make(Pool, len(actor.All))
	for i := range firstNames {
		pool[actor.Customer] = append(pool[actor.Customer], auth.Credentials{
			Email:    fmt.Sprintf("%s.%s@example.com", firstNames[i], lastNames[i]),
			Password: "TestPass123!",
		})
	}
	for _, name := range restaurants {
		pool[actor.Vendor] = append(pool[actor.Vendor], auth.Credentials{
			Email:    strings.ToLower(strings.ReplaceAll(name, " ", "")) + "@restaurant.com",
			Password: "VendorPass123!",
		})
	}
	for _, name := range riderNames {
		pool[actor.Rider] = append(pool[actor.Rider], auth.Credentials{
			Email:    name + "@rider.com",
			Password: "RiderPass123!",
		})
	}
	return pool
}

var (
	streets = []string{"Main St", "Oak Ave", "Pine Rd", "Elm St", "Maple Dr", "Cedar Ln", "Birch Way", "Willow Ct"}
	cities  = []struct{ city, state string }{
		{"New York", "NY"}, {"Los Angeles", "CA"}, {"Chicago", "IL"}, {"Houston", "TX"},
		{"Phoenix", "AZ"}, {"Philadelphia", "PA"}, {"Miami", "FL"}, {"Columbus", "OH"},
	}
)

func (e *Env) address() string {
	c := cities[e.intn(len(cities))]
	return fmt.Sprintf("%d %s, %s, %s %d",
		e.between(1, 9999), streets[e.intn(len(streets))], c.city, c.state, e.between(10000, 99999))
}

// location returns a point within roughly 5km of central New York.
func (e *Env) location() map[string]float64 {
	jitter := func() float64 { return float64(e.between(-500, 500)) / 10000 }
	return map[string]float64{
		"latitude":  40.7128 + jitter(),
		"longitude": -74.0060 + jitter(),
		"accuracy":  float64(e.between(5, 20)),
	}
}

type menuItem struct {
	ID    string
	Name  string
	Price float64
}

type orderItem struct {
	MenuItemID string  `json:"menuItemId"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
}

// pickItems draws 1-3 distinct menu items with quantities of 1-3.
func (e *Env) pickItems(menu []menuItem) []orderItem {
	n := e.between(1, 3)
	if n > len(menu) {
		n = len(menu)
	}

	order := make([]int, len(menu))
	for i := range order {
		order[i] = i
	}
	for i := len(order) - 1; i > 0; i-- {
		j := e.intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	items := make([]orderItem, 0, n)
	for _, idx := range order[:n] {
		m := menu[idx]
		items = append(items, orderItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			Price:      m.Price,
			Quantity:   e.between(1, 3),
		})
	}
	return items
}
