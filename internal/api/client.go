// Package api is the typed facade over the backend's HTTP endpoints.
// Each operation is a pure request/response mapping with no local state:
// validate input, issue the call, narrow the error into the taxonomy the
// flow controller understands.
package api

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/cinema-booking-client/internal/apierr"
	"github.com/iliyamo/cinema-booking-client/internal/transport"
)

// Client bundles the transport client with a request validator.
type Client struct {
	t        *transport.Client
	validate *validator.Validate
}

// NewClient builds the facade over an existing transport client.
func NewClient(t *transport.Client) *Client {
	return &Client{
		t:        t,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Transport exposes the underlying transport client, used when wiring
// the live seat feed (it shares the base URL).
func (c *Client) Transport() *transport.Client { return c.t }

// checkRequest runs struct validation and converts the result into a
// ValidationError so no malformed request ever reaches the network.
func (c *Client) checkRequest(req any) error {
	if err := c.validate.Struct(req); err != nil {
		return apierr.Validation("%v", err)
	}
	return nil
}

// asStale narrows a generic backend rejection into StaleStateError for
// operations whose only business failure mode is "the state moved on"
// (seat already locked, order no longer payable or refundable).
// Transport and auth errors pass through untouched.
func asStale(op string, err error) error {
	if err == nil {
		return nil
	}
	var remote *apierr.RemoteError
	if errors.As(err, &remote) {
		return &apierr.StaleStateError{Op: op, Msg: remote.Message}
	}
	return err
}
