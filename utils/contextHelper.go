package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/stockroom_backend/appctx"
)

// Alias the shared context key type so existing code keeps working.
type contextKey = appctx.ContextKey

var (
	ContextKeyToken         = appctx.ContextKeyToken
	ContextKeyBusinessId    = appctx.ContextKeyBusinessId
	ContextKeyUsername      = appctx.ContextKeyUsername
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserName      = appctx.ContextKeyUserName
	ContextKeyUserEmail     = appctx.ContextKeyUserEmail
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

func GetTokenFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyToken)
}

func GetBusinessIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyBusinessId)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserName)
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserEmail)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTokenInContext(ctx context.Context, token string) context.Context {
	return appctx.Set(ctx, ContextKeyToken, token)
}

func SetBusinessIdInContext(ctx context.Context, businessId string) context.Context {
	return appctx.Set(ctx, ContextKeyBusinessId, businessId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, ContextKeyUserName, userName)
}

func SetUserEmailInContext(ctx context.Context, userEmail string) context.Context {
	return appctx.Set(ctx, ContextKeyUserEmail, userEmail)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
