package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/onnwee/askaround/internal/model"
)

// ErrMissingPushToken is returned when a push token request has no token.
var ErrMissingPushToken = errors.New("push token is required")

// SyncIdentity bridges the identity provider session to a local user,
// creating it on first sign-in.
func (c *Client) SyncIdentity(ctx context.Context, req model.SyncIdentityRequest) (model.SyncIdentityResult, error) {
	var out model.SyncIdentityResult
	r, err := jsonRequest(http.MethodPost, "/auth/sync-clerk", req)
	if err != nil {
		return out, err
	}
	err = c.do(ctx, r, &out)
	return out, err
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (model.User, error) {
	var out model.User
	err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me"}, &out)
	return out, err
}

// RegisterPushToken registers this device for push notifications.
func (c *Client) RegisterPushToken(ctx context.Context, req model.PushTokenRequest) error {
	return c.pushToken(ctx, http.MethodPost, req)
}

// UnregisterPushToken removes this device's push registration.
func (c *Client) UnregisterPushToken(ctx context.Context, req model.PushTokenRequest) error {
	return c.pushToken(ctx, http.MethodDelete, req)
}

func (c *Client) pushToken(ctx context.Context, method string, req model.PushTokenRequest) error {
	if req.Token == "" {
		return ErrMissingPushToken
	}
	r, err := jsonRequest(method, "/users/push-token", req)
	if err != nil {
		return err
	}
	return c.do(ctx, r, nil)
}

// UpdateLocation reports the device location used for nearby notifications.
func (c *Client) UpdateLocation(ctx context.Context, u model.LocationUpdate) error {
	r, err := jsonRequest(http.MethodPost, "/users/location", u)
	if err != nil {
		return err
	}
	return c.do(ctx, r, nil)
}
