package services

import "errors"

// Domain errors for the round lifecycle. Handlers map these to 4xx responses;
// ErrAlreadySettled and ErrWinnerAlreadySet are benign race outcomes and are
// reported to callers as success.
var (
	ErrRoundClosed         = errors.New("round is not accepting entries")
	ErrAlreadySettled      = errors.New("payment already settled")
	ErrInvalidTransition   = errors.New("invalid state transition")
	ErrWinnerAlreadySet    = errors.New("winner already committed for round")
	ErrTokenExpired        = errors.New("claim token expired")
	ErrTokenAlreadyUsed    = errors.New("claim token already used")
	ErrDiscountExpired     = errors.New("discount has expired")
	ErrDiscountAlreadyUsed = errors.New("discount already used")
	ErrQuestionExhausted   = errors.New("no unseen questions left for user")
)
