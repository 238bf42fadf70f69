package shipping

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubGeocoder struct {
	err error
}

func (s stubGeocoder) Geocode(context.Context, string) (Coordinates, error) {
	return Coordinates{Lat: 10.77, Lng: 106.70}, s.err
}

type stubRouter struct {
	meters int
	err    error
}

func (s stubRouter) Route(context.Context, Coordinates, Coordinates) (Route, error) {
	return Route{DistanceMeters: s.meters}, s.err
}

func TestFlatPolicy(t *testing.T) {
	p := Policy{BaseFee: decimal.NewFromInt(30000), FreeThreshold: decimal.NewFromInt(500000)}
	ctx := context.Background()

	q, err := p.Fee(ctx, decimal.NewFromInt(100000), false, "12 Main St")
	require.NoError(t, err)
	require.Equal(t, "30000", q.Fee.String())

	q, err = p.Fee(ctx, decimal.NewFromInt(500000), false, "12 Main St")
	require.NoError(t, err)
	require.True(t, q.Free)
	require.True(t, q.Fee.IsZero())

	q, err = p.Fee(ctx, decimal.NewFromInt(1), true, "")
	require.NoError(t, err)
	require.True(t, q.Fee.IsZero())

	_, err = p.Fee(ctx, decimal.NewFromInt(1), false, "  ")
	require.ErrorIs(t, err, ErrAddressRequired)
}

func TestDistancePolicy(t *testing.T) {
	p := Policy{
		BaseFee:  decimal.NewFromInt(15000),
		PerKm:    decimal.NewFromInt(2000),
		Geocoder: stubGeocoder{},
		Router:   stubRouter{meters: 4200},
	}
	q, err := p.Fee(context.Background(), decimal.NewFromInt(100000), false, "District 1")
	require.NoError(t, err)
	require.Equal(t, "25000", q.Fee.String())
	require.Equal(t, 4200, q.DistanceMeters)
}

func TestProviderFailuresAreCategorised(t *testing.T) {
	p := Policy{BaseFee: decimal.NewFromInt(1), PerKm: decimal.NewFromInt(1), Geocoder: stubGeocoder{err: errors.New("quota")}, Router: stubRouter{}}
	_, err := p.Fee(context.Background(), decimal.Zero, false, "x")
	require.ErrorIs(t, err, ErrGeocodingFailed)

	p.Geocoder = stubGeocoder{}
	p.Router = stubRouter{err: errors.New("timeout")}
	_, err = p.Fee(context.Background(), decimal.Zero, false, "x")
	require.ErrorIs(t, err, ErrRouteCalculationFailed)
}
