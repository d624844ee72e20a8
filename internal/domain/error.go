package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrNotAuthenticated = errors.New("no micropub endpoint or access token stored")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnknownDialog    = errors.New("unknown dialog name")
	ErrRateLimited      = errors.New("rate limited")
	ErrConversationBusy = errors.New("conversation is being processed elsewhere")
)

// DiscoveryError reports a failed endpoint discovery against a user's
// site. A partial relation set is a hard failure, never a degraded mode.
type DiscoveryError struct {
	Site   string
	Reason string
	Err    error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("discovery failed for %s: %s: %v", e.Site, e.Reason, e.Err)
	}
	return fmt.Sprintf("discovery failed for %s: %s", e.Site, e.Reason)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// TokenExchangeError reports a failed authorization-code exchange.
type TokenExchangeError struct {
	Endpoint string
	Status   int
	Body     string
	Reason   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange at %s failed: %s (status=%d)", e.Endpoint, e.Reason, e.Status)
}

// PublishError reports a non-success response or transport failure from
// the micropub endpoint. Status is zero on transport errors.
type PublishError struct {
	Op     string // create | update | delete | undelete | query
	Status int
	Body   string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("micropub %s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("micropub %s failed: status=%d body=%q", e.Op, e.Status, e.Body)
}

func (e *PublishError) Unwrap() error { return e.Err }
