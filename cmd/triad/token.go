package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lox/triadsync/internal/auth"
)

// TokenCmd issues a signed participant token for servers configured with
// auth { jwt_secret = ... }
type TokenCmd struct {
	Secret string        `kong:"required,env='TRIAD_JWT_SECRET',help='Signing secret shared with the server'"`
	ID     string        `kong:"help='Participant id (random when empty)'"`
	Name   string        `kong:"help='Display name carried in the token'"`
	TTL    time.Duration `kong:"default='24h',help='Token lifetime, 0 for no expiry'"`
}

func (c *TokenCmd) Run() error {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	token, err := auth.IssueToken(c.Secret, auth.Identity{ParticipantID: id, Name: c.Name}, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
