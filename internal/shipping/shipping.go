// Package shipping computes shipping fees. Geocoding and routing providers are
// consumed through interfaces; no concrete provider ships with the module.
package shipping

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Route is the result of a routing query.
type Route struct {
	DistanceMeters int           `json:"distance_meters"`
	Duration       time.Duration `json:"duration"`
}

// Geocoder resolves a free-form address.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// Router computes a driving route between two points.
type Router interface {
	Route(ctx context.Context, origin, dest Coordinates) (Route, error)
}

var (
	// ErrGeocodingFailed wraps provider failures while resolving an address.
	ErrGeocodingFailed = shared.NewError(7001, http.StatusBadGateway, "geocoding failed")
	// ErrRouteCalculationFailed wraps provider failures while computing a route.
	ErrRouteCalculationFailed = shared.NewError(7002, http.StatusBadGateway, "route calculation failed")
	// ErrAddressRequired is returned for deliveries without an address.
	ErrAddressRequired = shared.NewError(7003, http.StatusBadRequest, "delivery address is required")
)

// Policy prices a shipment. Pickup is free, so is any subtotal at or above
// FreeThreshold when the threshold is positive. With a Geocoder and Router set,
// PerKm is charged for every started kilometre from Origin.
type Policy struct {
	BaseFee       decimal.Decimal
	FreeThreshold decimal.Decimal
	PerKm         decimal.Decimal
	Origin        Coordinates
	Geocoder      Geocoder
	Router        Router
}

// Quote is a priced shipment.
type Quote struct {
	Fee            decimal.Decimal `json:"fee"`
	DistanceMeters int             `json:"distance_meters,omitempty"`
	Free           bool            `json:"free"`
}

// Fee prices a shipment of subtotal to address. pickup skips delivery entirely.
func (p Policy) Fee(ctx context.Context, subtotal decimal.Decimal, pickup bool, address string) (Quote, error) {
	if pickup {
		return Quote{Fee: decimal.Zero, Free: true}, nil
	}
	if strings.TrimSpace(address) == "" {
		return Quote{}, ErrAddressRequired
	}
	if p.FreeThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeThreshold) {
		return Quote{Fee: decimal.Zero, Free: true}, nil
	}
	quote := Quote{Fee: shared.RoundMoney(p.BaseFee)}
	if p.Geocoder == nil || p.Router == nil || !p.PerKm.IsPositive() {
		return quote, nil
	}
	dest, err := p.Geocoder.Geocode(ctx, address)
	if err != nil {
		return Quote{}, fmt.Errorf("shipping: %q: %v: %w", address, err, ErrGeocodingFailed)
	}
	route, err := p.Router.Route(ctx, p.Origin, dest)
	if err != nil {
		return Quote{}, fmt.Errorf("shipping: route: %v: %w", err, ErrRouteCalculationFailed)
	}
	km := (route.DistanceMeters + 999) / 1000
	quote.DistanceMeters = route.DistanceMeters
	quote.Fee = shared.RoundMoney(quote.Fee.Add(p.PerKm.Mul(decimal.NewFromInt(int64(km)))))
	return quote, nil
}
