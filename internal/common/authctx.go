package common

import "context"

type ctxKey string

const (
	operatorIDKey   ctxKey = "auth/operator-id"
	operatorRoleKey ctxKey = "auth/operator-role"
)

// WithOperator stores the authenticated operator identifier and role on the context.
func WithOperator(ctx context.Context, id, role string) context.Context {
	ctx = context.WithValue(ctx, operatorIDKey, id)
	return context.WithValue(ctx, operatorRoleKey, role)
}

// OperatorID extracts the authenticated operator identifier from the context if present.
func OperatorID(ctx context.Context) (string, bool) {
	v := ctx.Value(operatorIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// OperatorRole extracts the authenticated operator role from the context if present.
func OperatorRole(ctx context.Context) (string, bool) {
	v := ctx.Value(operatorRoleKey)
	if v == nil {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
