package testserver

import (
	"fmt"

	"github.com/google/uuid"
)

// Vendor is a restaurant listed by the fake API.
type Vendor struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Cuisine string  `json:"cuisine"`
	Rating  float64 `json:"rating"`
	Address string  `json:"address"`
	IsOpen  bool    `json:"isOpen"`
}

// MenuItem is one dish on a vendor's menu.
type MenuItem struct {
	ID              string  `json:"id"`
	VendorID        string  `json:"vendorId"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	Category        string  `json:"category"`
	PreparationTime int     `json:"preparationTime"`
	Available       bool    `json:"available"`
}

type dish struct {
	name        string
	description string
	price       float64
}

var cuisines = []struct {
	restaurant string
	cuisine    string
	dishes     []dish
}{
	{"Pizza Palace", "Italian", []dish{
		{"Margherita Pizza", "Classic tomato and mozzarella", 15.99},
		{"Spaghetti Carbonara", "Pasta with eggs and bacon", 18.99},
		{"Lasagna", "Layered pasta with meat sauce", 22.99},
	}},
	{"Burger House", "American", []dish{
		{"Classic Burger", "Beef burger with lettuce and tomato", 12.99},
		{"Chicken Wings", "Crispy wings with hot sauce", 14.99},
		{"BBQ Ribs", "Slow-cooked ribs with BBQ sauce", 24.99},
	}},
	{"Sushi Express", "Japanese", []dish{
		{"California Roll", "Crab, avocado, and cucumber", 8.99},
		{"Teriyaki Chicken", "Grilled chicken with teriyaki sauce", 16.99},
		{"Miso Soup", "Traditional Japanese soup", 4.99},
	}},
	{"Taco Town", "Mexican", []dish{
		{"Tacos al Pastor", "Pork tacos with pineapple", 11.99},
		{"Enchiladas", "Corn tortillas with cheese and sauce", 13.99},
		{"Guacamole", "Fresh avocado dip", 6.99},
	}},
}

var streets = []string{"Main St", "Oak Ave", "Pine Rd", "Elm St", "Maple Dr", "Cedar Ln"}

// buildCatalog creates n vendors cycling through the cuisine table, each
// with its full dish list.
func buildCatalog(n int) ([]Vendor, map[string][]MenuItem) {
	vendors := make([]Vendor, 0, n)
	menus := make(map[string][]MenuItem, n)

	for i := 0; i < n; i++ {
		c := cuisines[i%len(cuisines)]
		name := c.restaurant
		if i >= len(cuisines) {
			name = fmt.Sprintf("%s #%d", c.restaurant, i/len(cuisines)+1)
		}

		v := Vendor{
			ID:      uuid.NewString(),
			Name:    name,
			Cuisine: c.cuisine,
			Rating:  3.5 + float64(i%4)*0.5,
			Address: fmt.Sprintf("%d %s, New York, NY", 100+i*7, streets[i%len(streets)]),
			IsOpen:  true,
		}
		vendors = append(vendors, v)

		items := make([]MenuItem, 0, len(c.dishes))
		for j, d := range c.dishes {
			items = append(items, MenuItem{
				ID:              uuid.NewString(),
				VendorID:        v.ID,
				Name:            d.name,
				Description:     d.description,
				Price:           d.price,
				Category:        c.cuisine,
				PreparationTime: 10 + j*5,
				Available:       true,
			})
		}
		menus[v.ID] = items
	}

	return vendors, menus
}
