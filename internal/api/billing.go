package api

import (
	"context"
	"net/http"

	"github.com/user/vidlib-bot-go/internal/model"
)

// ListPlans returns the plan catalog.
func (c *Client) ListPlans(ctx context.Context) ([]model.Plan, error) {
	var out struct {
		Plans []model.Plan `json:"plans"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/billing/plans", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Plans, nil
}

// Subscription returns the user's current plan and usage.
func (c *Client) Subscription(ctx context.Context) (*model.SubscriptionInfo, error) {
	var out model.SubscriptionInfo
	if err := c.do(ctx, http.MethodGet, "/api/billing/subscription", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCheckout starts a checkout for the given plan and returns the
// hosted payment page URL.
func (c *Client) CreateCheckout(ctx context.Context, planID string) (*model.CheckoutSession, error) {
	body := map[string]string{"planId": planID}
	var out model.CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/api/billing/checkout", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePortal returns the hosted billing-management page URL.
func (c *Client) CreatePortal(ctx context.Context) (*model.CheckoutSession, error) {
	var out model.CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/api/billing/portal", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
