// Package actor defines the kinds of simulated users that drive the target API.
package actor

import (
	"fmt"
	"strings"
)

// Kind identifies which side of the marketplace a virtual user plays.
type Kind string

const (
	Customer Kind = "customer"
	Vendor   Kind = "vendor"
	Rider    Kind = "rider"
)

// All lists every kind in a stable order.
var All = []Kind{Customer, Vendor, Rider}

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case Customer, Vendor, Rider:
		return true
	}
	return false
}

// Parse converts a case-insensitive name into a Kind.
func Parse(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown actor kind %q", name)
	}
	return k, nil
}
