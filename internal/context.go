package internal

import (
	"context"
	"time"
)

type ctxKey string

const (
	ContextActorKey          ctxKey = "actorMemberID"
	ContextCredentialDeptKey ctxKey = "credentialDepartmentID"
)

// ActorFromContext returns the acting member's id, or 0 when the request
// carries no authenticated actor (webhook and credential-key paths).
func ActorFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if actorID, ok := ctx.Value(ContextActorKey).(int64); ok {
		return actorID
	}
	return 0
}

func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, ContextActorKey, actorID)
}

// CredentialDepartmentFromContext returns the department an API credential is
// scoped to, or 0 when the request was not credential-authenticated.
func CredentialDepartmentFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if departmentID, ok := ctx.Value(ContextCredentialDeptKey).(int64); ok {
		return departmentID
	}
	return 0
}

func ContextWithCredentialDepartment(ctx context.Context, departmentID int64) context.Context {
	return context.WithValue(ctx, ContextCredentialDeptKey, departmentID)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
