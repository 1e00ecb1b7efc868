package model

import (
	"time"
)

// User is the authenticated account as reported by the backend
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Plan  string `json:"plan,omitempty"`
}

// LoginResult is the response of a successful login
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Plan is one entry of the backend's plan catalog
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PriceCents  int    `json:"priceCents"`
	Currency    string `json:"currency"`
	VideoLimit  int    `json:"videoLimit"`
	ChatsPerDay int    `json:"chatsPerDay"`
	Description string `json:"description,omitempty"`
}

// SubscriptionInfo is the account's current billing state
type SubscriptionInfo struct {
	PlanID    string     `json:"planId"`
	Status    string     `json:"status"`
	RenewsAt  *time.Time `json:"renewsAt,omitempty"`
	TrialEnds *time.Time `json:"trialEnds,omitempty"`
}

// CheckoutSession points the user at an externally hosted payment page
type CheckoutSession struct {
	URL string `json:"url"`
}

// KeyStatus reports whether the account has a stored OpenAI API key.
// Only the last four characters ever leave the backend.
type KeyStatus struct {
	Configured bool   `json:"configured"`
	Last4      string `json:"last4,omitempty"`
}
