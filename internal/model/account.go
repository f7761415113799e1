package model

import "time"

// System account usernames. Created by bootstrap, never via register.
const (
	SystemTreasury     = "treasury"
	SystemMarketEscrow = "market-escrow"
	SystemRevenuePool  = "revenue-pool"
)

type Account struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	PasswordHash string     `json:"-"`
	Balance      int64      `json:"balance"`
	IsSystem     bool       `json:"is_system,omitempty"`
	IsBanned     bool       `json:"is_banned,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type AccountProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Balance  int64  `json:"balance"`
	IsAdmin  bool   `json:"is_admin"`
}
