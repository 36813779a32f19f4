package entities

import (
	"github.com/shopspring/decimal"
)

// RouteType identifies one of the three execution paths
type RouteType string

const (
	RouteDirect    RouteType = "direct"
	RouteDelegated RouteType = "delegated"
	RouteAlternate RouteType = "alternate"
)

// Valid reports whether t names a known route type
func (t RouteType) Valid() bool {
	switch t {
	case RouteDirect, RouteDelegated, RouteAlternate:
		return true
	default:
		return false
	}
}

// RouteOption is a priced, timed description of one way to execute a swap.
// Options are rebuilt every cycle and never patched in place.
type RouteOption struct {
	Type                 RouteType        `json:"type"`
	Label                string           `json:"label"`
	EstimatedTimeSeconds int              `json:"estimatedTimeSeconds"`
	TotalFeeUSD          decimal.Decimal  `json:"totalFeeUsd"`
	NetOutputUSD         decimal.Decimal  `json:"netOutputUsd"`
	Steps                []string         `json:"steps"`
	Recommended          bool             `json:"recommended"`
	SavingsUSD           *decimal.Decimal `json:"savingsUsd,omitempty"`

	// GasUSD is the gas the user pays (direct) or the platform absorbs (delegated)
	GasUSD decimal.Decimal `json:"gasUsd"`
	// Venue names the exchange used by the alternate route
	Venue string `json:"venue,omitempty"`
}

// RouteSet is the routes computed for one cycle
type RouteSet []RouteOption

// Find returns the option of the given type
func (s RouteSet) Find(t RouteType) (RouteOption, bool) {
	for _, r := range s {
		if r.Type == t {
			return r, true
		}
	}
	return RouteOption{}, false
}

// Recommended returns the recommended option, if any
func (s RouteSet) Recommended() (RouteOption, bool) {
	for _, r := range s {
		if r.Recommended {
			return r, true
		}
	}
	return RouteOption{}, false
}

// RecommendedCount counts options flagged as recommended
func (s RouteSet) RecommendedCount() int {
	n := 0
	for _, r := range s {
		if r.Recommended {
			n++
		}
	}
	return n
}

// Types lists the route types in the set, in order
func (s RouteSet) Types() []RouteType {
	out := make([]RouteType, 0, len(s))
	for _, r := range s {
		out = append(out, r.Type)
	}
	return out
}
