package model

import "time"

// TokenData contains the data stored with a player session token.
type TokenData struct {
	PlayerID   int64     `json:"player_id"`
	PlayerName string    `json:"player_name"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
