package domain

import "errors"

var (
	ErrAuctionNotFound    = errors.New("auction not found")
	ErrBidConflict        = errors.New("bid conflict: auction changed during resolution")
	ErrRetriesExhausted   = errors.New("bid commit retries exhausted")
	ErrInvalidObservation = errors.New("observation has no auction id")
)
