// Package services holds the transaction lifecycle controller, the receipt
// reconciler, the notification queue and the read-side projections the view
// renders. This file centralizes the service-level error values so that
// handlers and the CLI can translate them consistently.
//
// Validation errors are returned synchronously by the action methods and
// never move a lane off Idle.
package services

import "errors"

// Validation errors.
var (
	// ErrWalletDisconnected is returned when no wallet address is available.
	ErrWalletDisconnected = errors.New("wallet not connected")

	// ErrInvalidAmount is returned for a non-positive amount.
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrPriceUnavailable is returned when the unit price has not been loaded
	// from the backend yet.
	ErrPriceUnavailable = errors.New("price not loaded")

	// ErrInsufficientZappers is returned when a shot needs more zappers than
	// the cached balance holds.
	ErrInsufficientZappers = errors.New("not enough zappers")

	// ErrHuntingClosed is returned when shooting outside hunting season.
	ErrHuntingClosed = errors.New("hunting season is not open")

	// ErrGameOver is returned for a duck mint after a winner was crowned.
	ErrGameOver = errors.New("game over")

	// ErrMintClosed is returned for a duck mint after the mint window ended.
	ErrMintClosed = errors.New("duck mint closed")
)

// Lifecycle errors.
var (
	// ErrTransactionInFlight is returned when an action is invoked while the
	// lane is not Idle. The call is a no-op.
	ErrTransactionInFlight = errors.New("transaction already in flight")

	// ErrUnknownLane is returned for a lane name the registry does not own.
	ErrUnknownLane = errors.New("unknown lane")
)

// Chat errors.
var (
	// ErrEmptyMessage is returned for a blank chat message.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrChatClosed is returned when sending after the game ended.
	ErrChatClosed = errors.New("chat is closed: game ended")

	// ErrNotConnected is returned when the realtime channel is down.
	ErrNotConnected = errors.New("realtime channel not connected")
)

// IsValidation reports whether err is one of the synchronous validation
// errors.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrWalletDisconnected),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrPriceUnavailable),
		errors.Is(err, ErrInsufficientZappers),
		errors.Is(err, ErrHuntingClosed),
		errors.Is(err, ErrGameOver),
		errors.Is(err, ErrMintClosed):
		return true
	}
	return false
}
