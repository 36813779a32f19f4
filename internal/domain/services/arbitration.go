package services

import "github.com/Chrissou78/omniswap-sub002/internal/domain/entities"

// Arbitrate marks exactly one route as recommended and returns a new set.
// A restricted pair keeps Direct only, recommended regardless of cost.
// Otherwise Alternate wins when its comparison beat Direct, then Delegated
// when its gas saving beat its fee, else Direct.
func Arbitrate(routes entities.RouteSet, restricted bool) entities.RouteSet {
	if restricted {
		if direct, ok := routes.Find(entities.RouteDirect); ok {
			direct.Recommended = true
			return entities.RouteSet{direct}
		}
		return entities.RouteSet{}
	}

	out := make(entities.RouteSet, len(routes))
	copy(out, routes)
	if len(out) == 0 {
		return out
	}

	winner := entities.RouteDirect
	switch {
	case provisional(out, entities.RouteAlternate):
		winner = entities.RouteAlternate
	case provisional(out, entities.RouteDelegated):
		winner = entities.RouteDelegated
	}
	if _, ok := out.Find(winner); !ok {
		winner = out[0].Type
	}

	for i := range out {
		out[i].Recommended = out[i].Type == winner
	}
	return out
}

func provisional(routes entities.RouteSet, t entities.RouteType) bool {
	r, ok := routes.Find(t)
	return ok && r.Recommended
}
