package shared

import "context"

// Role enumerates principal roles.
type Role string

const (
	// RoleCustomer is a registered shopper.
	RoleCustomer Role = "CUSTOMER"
	// RoleAdmin manages catalog, vouchers, inventory and orders.
	RoleAdmin Role = "ADMIN"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Email  string
	Role   Role
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
