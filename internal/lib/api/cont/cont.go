package cont

import (
	"FrappeBot/entity"
	"context"
	"errors"
)

type ctxKey string

const userKey ctxKey = "user"

func PutUser(ctx context.Context, user *entity.UserAuth) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(ctx context.Context) (*entity.UserAuth, error) {
	user, ok := ctx.Value(userKey).(*entity.UserAuth)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}
