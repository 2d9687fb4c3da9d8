package core

import (
	"FrappeBot/entity"
	"crypto/subtle"
	"fmt"
)

const defaultApiUser = "api"

// AuthenticateByToken accepts the configured API key or any key issued in the database.
func (c *Core) AuthenticateByToken(token string) (*entity.UserAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}
	if c.authKey != "" && subtle.ConstantTimeCompare([]byte(token), []byte(c.authKey)) == 1 {
		return &entity.UserAuth{Username: defaultApiUser, Token: token}, nil
	}
	if c.repo == nil {
		return nil, fmt.Errorf("invalid token")
	}
	username, err := c.repo.CheckApiKey(token)
	if err != nil {
		return nil, fmt.Errorf("check api key: %w", err)
	}
	return &entity.UserAuth{Username: username, Token: token}, nil
}

// ValidateToken authenticates websocket clients.
func (c *Core) ValidateToken(token string) (string, error) {
	user, err := c.AuthenticateByToken(token)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}
