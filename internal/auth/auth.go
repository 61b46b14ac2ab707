// Package auth decides whether the local user is signed in and turns sign-in
// changes into state transitions.
package auth

import "errors"

var ErrBadCredentials = errors.New("auth: bad credentials")

// Status is the authorization state held by the controller.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAuthorized   Status = "authorized"
	StatusUnauthorized Status = "unauthorized"
)

// Signal is a notification from the client that authorization changed.
type Signal string

const (
	SignalAuthorized   Signal = "authorized"
	SignalUnauthorized Signal = "unauthorized"
)

// Client is the sync client contract.
type Client interface {
	IsAuthorized() (bool, error)
	// Account names the signed-in account, empty when signed out.
	Account() string
	Signals() <-chan Signal
}

// Identifier binds analytics to an account.
type Identifier interface {
	Identify(account string)
}
