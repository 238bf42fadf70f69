package orders

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bookhaven/bookhaven/internal/shared"
)

// Axis names one of the three independent order status dimensions.
type Axis string

const (
	AxisPayment     Axis = "payment"
	AxisFulfillment Axis = "fulfillment"
	AxisOrder       Axis = "order"
)

// PaymentStatus tracks money movement.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// FulfillmentStatus tracks goods movement.
type FulfillmentStatus string

const (
	FulfillmentShipping  FulfillmentStatus = "shipping"
	FulfillmentPickup    FulfillmentStatus = "pickup"
	FulfillmentDelivered FulfillmentStatus = "delivered"
	FulfillmentReturned  FulfillmentStatus = "returned"
)

// OrderStatus is the lifecycle of the order itself.
type OrderStatus string

const (
	OrderConfirmed OrderStatus = "confirmed"
	OrderCancelled OrderStatus = "cancelled"
	OrderClosed    OrderStatus = "closed"
)

// Terminal reports whether no further order-axis transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderCancelled || s == OrderClosed
}

// Status is the product of the three axes. There is no combined enum.
type Status struct {
	Payment     PaymentStatus     `json:"payment_status"`
	Fulfillment FulfillmentStatus `json:"fulfillment_status"`
	Order       OrderStatus       `json:"order_status"`
}

// InitialStatus is the state an order is created in.
func InitialStatus(method FulfillmentMethod) Status {
	fulfillment := FulfillmentShipping
	if method == FulfillmentMethodPickup {
		fulfillment = FulfillmentPickup
	}
	return Status{Payment: PaymentPending, Fulfillment: fulfillment, Order: OrderConfirmed}
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentFailed:   {PaymentPending},
	PaymentPaid:     {PaymentRefunded},
	PaymentRefunded: {},
}

var fulfillmentTransitions = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentShipping:  {FulfillmentDelivered, FulfillmentReturned},
	FulfillmentPickup:    {FulfillmentDelivered, FulfillmentReturned},
	FulfillmentDelivered: {FulfillmentReturned},
	FulfillmentReturned:  {},
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderConfirmed: {OrderCancelled, OrderClosed},
	OrderCancelled: {},
	OrderClosed:    {},
}

// ErrInvalidStatusTransition is the catalog entry behind every TransitionError.
var ErrInvalidStatusTransition = shared.NewError(4002, http.StatusConflict, "invalid status transition")

// TransitionError names the rejected move.
type TransitionError struct {
	Axis Axis
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition: %s -> %s", e.Axis, e.From, e.To)
}

// Unwrap lets errors.Is match ErrInvalidStatusTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}

// IsTransitionError reports whether err is a rejected transition.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// Change requests a single-axis move.
type Change struct {
	Axis Axis   `json:"axis" validate:"required,oneof=payment fulfillment order"`
	To   string `json:"to" validate:"required"`
	Note string `json:"note" validate:"max=500"`
}

// CanTransition reports whether the change is allowed from current.
func CanTransition(current Status, change Change) bool {
	_, err := Next(current, change)
	return err == nil
}

// Next returns the status after applying change, or a TransitionError.
func Next(current Status, change Change) (Status, error) {
	next := current
	switch change.Axis {
	case AxisPayment:
		from, to := current.Payment, PaymentStatus(change.To)
		if !contains(paymentTransitions[from], to) {
			return current, &TransitionError{Axis: AxisPayment, From: string(from), To: change.To}
		}
		if to == PaymentRefunded && current.Order == OrderClosed {
			return current, &TransitionError{Axis: AxisPayment, From: string(from), To: change.To}
		}
		if current.Order.Terminal() && to != PaymentRefunded {
			return current, &TransitionError{Axis: AxisPayment, From: string(from), To: change.To}
		}
		next.Payment = to
	case AxisFulfillment:
		from, to := current.Fulfillment, FulfillmentStatus(change.To)
		if current.Order.Terminal() || !contains(fulfillmentTransitions[from], to) {
			return current, &TransitionError{Axis: AxisFulfillment, From: string(from), To: change.To}
		}
		next.Fulfillment = to
	case AxisOrder:
		from, to := current.Order, OrderStatus(change.To)
		if !contains(orderTransitions[from], to) {
			return current, &TransitionError{Axis: AxisOrder, From: string(from), To: change.To}
		}
		next.Order = to
	default:
		return current, &TransitionError{Axis: change.Axis, To: change.To}
	}
	return next, nil
}

// From returns the current value of the changed axis.
func (c Change) From(s Status) string {
	switch c.Axis {
	case AxisPayment:
		return string(s.Payment)
	case AxisFulfillment:
		return string(s.Fulfillment)
	case AxisOrder:
		return string(s.Order)
	}
	return ""
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
