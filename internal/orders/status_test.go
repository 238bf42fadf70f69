package orders

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTransitionTableIsExhaustive(t *testing.T) {
	confirmed := Status{Payment: PaymentPending, Fulfillment: FulfillmentShipping, Order: OrderConfirmed}

	payments := []PaymentStatus{PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded}
	allowedPayment := map[[2]PaymentStatus]bool{
		{PaymentPending, PaymentPaid}:   true,
		{PaymentPending, PaymentFailed}: true,
		{PaymentFailed, PaymentPending}: true,
		{PaymentPaid, PaymentRefunded}:  true,
	}
	for _, from := range payments {
		for _, to := range payments {
			current := confirmed
			current.Payment = from
			_, err := Next(current, Change{Axis: AxisPayment, To: string(to)})
			if allowedPayment[[2]PaymentStatus{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
			} else {
				require.ErrorIs(t, err, ErrInvalidStatusTransition, "%s -> %s", from, to)
			}
		}
	}

	fulfillments := []FulfillmentStatus{FulfillmentShipping, FulfillmentPickup, FulfillmentDelivered, FulfillmentReturned}
	allowedFulfillment := map[[2]FulfillmentStatus]bool{
		{FulfillmentShipping, FulfillmentDelivered}: true,
		{FulfillmentShipping, FulfillmentReturned}:  true,
		{FulfillmentPickup, FulfillmentDelivered}:   true,
		{FulfillmentPickup, FulfillmentReturned}:    true,
		{FulfillmentDelivered, FulfillmentReturned}: true,
	}
	for _, from := range fulfillments {
		for _, to := range fulfillments {
			current := confirmed
			current.Fulfillment = from
			_, err := Next(current, Change{Axis: AxisFulfillment, To: string(to)})
			if allowedFulfillment[[2]FulfillmentStatus{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
			} else {
				require.ErrorIs(t, err, ErrInvalidStatusTransition, "%s -> %s", from, to)
			}
		}
	}

	statuses := []OrderStatus{OrderConfirmed, OrderCancelled, OrderClosed}
	allowedOrder := map[[2]OrderStatus]bool{
		{OrderConfirmed, OrderCancelled}: true,
		{OrderConfirmed, OrderClosed}:    true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			current := confirmed
			current.Order = from
			_, err := Next(current, Change{Axis: AxisOrder, To: string(to)})
			if allowedOrder[[2]OrderStatus{from, to}] {
				require.NoError(t, err, "%s -> %s", from, to)
			} else {
				require.ErrorIs(t, err, ErrInvalidStatusTransition, "%s -> %s", from, to)
			}
		}
	}
}

func TestClosedToConfirmedNamesBothStates(t *testing.T) {
	current := Status{Payment: PaymentPaid, Fulfillment: FulfillmentDelivered, Order: OrderClosed}
	_, err := Next(current, Change{Axis: AxisOrder, To: string(OrderConfirmed)})

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "closed", te.From)
	require.Equal(t, "confirmed", te.To)
	require.True(t, IsTransitionError(err))
}

func TestTerminalOrderAxisRules(t *testing.T) {
	cancelledPaid := Status{Payment: PaymentPaid, Fulfillment: FulfillmentShipping, Order: OrderCancelled}
	next, err := Next(cancelledPaid, Change{Axis: AxisPayment, To: string(PaymentRefunded)})
	require.NoError(t, err)
	require.Equal(t, PaymentRefunded, next.Payment)
	require.Equal(t, OrderCancelled, next.Order)

	closedPaid := Status{Payment: PaymentPaid, Fulfillment: FulfillmentDelivered, Order: OrderClosed}
	_, err = Next(closedPaid, Change{Axis: AxisPayment, To: string(PaymentRefunded)})
	require.ErrorIs(t, err, ErrInvalidStatusTransition)

	cancelledPending := Status{Payment: PaymentPending, Fulfillment: FulfillmentShipping, Order: OrderCancelled}
	_, err = Next(cancelledPending, Change{Axis: AxisPayment, To: string(PaymentPaid)})
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	_, err = Next(cancelledPending, Change{Axis: AxisFulfillment, To: string(FulfillmentDelivered)})
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
}

func TestUnknownAxisRejected(t *testing.T) {
	_, err := Next(InitialStatus(FulfillmentMethodDelivery), Change{Axis: "shipping", To: "paid"})
	require.ErrorIs(t, err, ErrInvalidStatusTransition)
	require.False(t, CanTransition(InitialStatus(FulfillmentMethodDelivery), Change{Axis: AxisOrder, To: "archived"}))
}

func TestInitialStatusFollowsFulfillmentMethod(t *testing.T) {
	require.Equal(t, FulfillmentShipping, InitialStatus(FulfillmentMethodDelivery).Fulfillment)
	require.Equal(t, FulfillmentPickup, InitialStatus(FulfillmentMethodPickup).Fulfillment)
	require.Equal(t, PaymentPending, InitialStatus(FulfillmentMethodPickup).Payment)
	require.Equal(t, OrderConfirmed, InitialStatus(FulfillmentMethodPickup).Order)
}

func TestBuildKeepsTotalInvariant(t *testing.T) {
	order, err := Build(Draft{
		UserID: 7,
		Items: []Item{
			{ProductID: 1, ProductTitle: "Go in Action", UnitPrice: decimal.RequireFromString("125000.50"), Quantity: 2},
			{ProductID: 2, ProductTitle: "SICP", UnitPrice: decimal.RequireFromString("99000"), Quantity: 1},
		},
		Discount:      decimal.RequireFromString("15000"),
		ShippingFee:   decimal.RequireFromString("30000"),
		PaymentMethod: PaymentMethodCOD,
	})
	require.NoError(t, err)
	require.True(t, order.Subtotal.Equal(decimal.RequireFromString("349001")))
	require.True(t, order.Total.Equal(decimal.RequireFromString("364001")))
	require.True(t, order.TotalConsistent())
	require.True(t, order.Items[0].LineTotal.Equal(decimal.RequireFromString("250001")))
	require.Equal(t, FulfillmentMethodDelivery, order.FulfillmentMethod)
	require.Equal(t, InitialStatus(FulfillmentMethodDelivery), order.Status)

	order.Total = order.Total.Add(decimal.NewFromInt(1))
	require.False(t, order.TotalConsistent())
}

func TestBuildRejectsInconsistentDrafts(t *testing.T) {
	_, err := Build(Draft{UserID: 1})
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = Build(Draft{UserID: 1, Items: []Item{{ProductID: 1, UnitPrice: decimal.NewFromInt(10), Quantity: 0}}})
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = Build(Draft{
		UserID:   1,
		Items:    []Item{{ProductID: 1, UnitPrice: decimal.NewFromInt(10), Quantity: 1}},
		Discount: decimal.NewFromInt(11),
	})
	require.ErrorIs(t, err, ErrInvalidOrder)
}
