// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Generic codes mirror HTTP status semantics, domain codes
// name the game rule that rejected the request.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "transaction_in_flight",
//	  "message": "transaction already in flight"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeUnavailable      = "unavailable"

	// Domain-specific:
	ErrCodeUnknownLane          = "unknown_lane"
	ErrCodeValidation           = "validation_failed"
	ErrCodeWalletDisconnected   = "wallet_disconnected"
	ErrCodeInvalidAmount        = "invalid_amount"
	ErrCodePriceUnavailable     = "price_unavailable"
	ErrCodeInsufficientZappers  = "insufficient_zappers"
	ErrCodeHuntingClosed        = "hunting_closed"
	ErrCodeGameOver             = "game_over"
	ErrCodeMintClosed           = "mint_closed"
	ErrCodeTransactionInFlight  = "transaction_in_flight"
	ErrCodeEmptyMessage         = "empty_message"
	ErrCodeChatClosed           = "chat_closed"
	ErrCodeNotConnected         = "not_connected"
	ErrCodeBackendUnavailable   = "backend_unavailable"
	ErrCodeManifestNotAvailable = "manifest_not_configured"
)
