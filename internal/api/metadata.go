package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/booking-core/internal/identity"
)

const (
	RequestIDMetadataKey = "x-request-id"
	UserIDMetadataKey    = "x-user-id"
	UserRolesMetadataKey = "x-user-roles"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
)

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func NewRequestID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func firstValue(md metadata.MD, key string) string {
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// callerFromContext достаёт вызывающего из метаданных. Аутентификацию делает
// шлюз перед ядром, сюда приходят уже проверенные id и роли.
func callerFromContext(ctx context.Context) (identity.Caller, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return identity.Caller{}, status.Error(codes.Unauthenticated, "missing metadata")
	}
	userID := firstValue(md, UserIDMetadataKey)
	if userID == "" {
		return identity.Caller{}, status.Error(codes.Unauthenticated, "missing "+UserIDMetadataKey)
	}
	caller, err := identity.ParseCaller(userID, firstValue(md, UserRolesMetadataKey))
	if err != nil {
		return identity.Caller{}, status.Error(codes.Unauthenticated, err.Error())
	}
	return caller, nil
}
