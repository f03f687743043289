package domain

import "time"

// User binds a settlement account to its signing key and notification
// preferences. PrivateKey is the base58 "ed25519:" form and must never
// be logged.
type User struct {
	Address        string
	PrivateKey     string
	TelegramChatID string
	NotifyDefault  bool
	CreatedAt      time.Time
}
