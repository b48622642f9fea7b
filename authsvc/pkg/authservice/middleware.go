package authservice

import (
	"context"

	"github.com/go-kit/kit/log"
	"github.com/taskdeck/taskdeck/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Register(ctx context.Context, name, email, password string) (user usersvc.User, tokens Tokens, err error) {
	defer func() {
		mw.logger.Log("method", "Register", "email", email, "err", err)
	}()
	return mw.next.Register(ctx, name, email, password)
}

func (mw loggingMiddleware) Login(ctx context.Context, email, password string) (user usersvc.User, tokens Tokens, err error) {
	defer func() {
		mw.logger.Log("method", "Login", "email", email, "err", err)
	}()
	return mw.next.Login(ctx, email, password)
}

func (mw loggingMiddleware) Me(ctx context.Context, userID uint64) (user usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "Me", "user_id", userID, "err", err)
	}()
	return mw.next.Me(ctx, userID)
}

func (mw loggingMiddleware) Logout(ctx context.Context, accessUUID string) (result bool, err error) {
	defer func() {
		mw.logger.Log("method", "Logout", "access_uuid", accessUUID, "err", err)
	}()
	return mw.next.Logout(ctx, accessUUID)
}

func (mw loggingMiddleware) Refresh(ctx context.Context, accessUUID, refreshUUID string, userID uint64) (tokens Tokens, err error) {
	defer func() {
		mw.logger.Log("method", "Refresh", "user_id", userID, "err", err)
	}()
	return mw.next.Refresh(ctx, accessUUID, refreshUUID, userID)
}
