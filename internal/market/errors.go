package market

import (
	"errors"
	"fmt"

	"github.com/lecfantasy/league-engine/internal/rostercap"
)

// Rule violation kinds. Every failure the engine reports for a business rule
// is a *RuleError that unwraps to one of these, so callers test with
// errors.Is. Any other error is an infrastructure failure.
var (
	ErrPlayerNotFound        = errors.New("player_not_found")
	ErrAlreadyOwned          = errors.New("already_owned")
	ErrNotOwned              = errors.New("not_owned")
	ErrInsufficientFunds     = errors.New("insufficient_funds")
	ErrPositionMismatch      = errors.New("position_mismatch")
	ErrInvalidPosition       = errors.New("invalid_position")
	ErrInvalidMatchday       = errors.New("invalid_matchday")
	ErrNotParticipant        = errors.New("not_participant")
	ErrAlreadyJoined         = errors.New("already_joined")
	ErrOfferNotFound         = errors.New("offer_not_found")
	ErrInvalidOffer          = errors.New("invalid_offer")
	ErrOfferClosed           = errors.New("offer_not_pending")
	ErrOfferExpired          = errors.New("offer_expired")
	ErrSellerNoLongerOwns    = errors.New("seller_no_longer_owns")
	ErrNotAuthorizedForOffer = errors.New("not_authorized_for_offer")

	ErrRosterFull          = rostercap.ErrRosterFull
	ErrTeamCapExceeded     = rostercap.ErrTeamCapExceeded
	ErrPositionCapExceeded = rostercap.ErrPositionCapExceeded
)

// RuleError is a typed business-rule failure. Details carries the
// quantities involved (balance, price, counts, roles) for the client.
type RuleError struct {
	Kind    error
	Message string
	Details map[string]any
}

func (e *RuleError) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *RuleError) Unwrap() error { return e.Kind }

func rule(kind error, details map[string]any, format string, args ...any) *RuleError {
	return &RuleError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Details: details,
	}
}

// AsRuleError extracts the *RuleError from err, if any.
func AsRuleError(err error) (*RuleError, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func fromViolation(v *rostercap.Violation, playerID string) *RuleError {
	details := map[string]any{
		"player_id": playerID,
		"count":     v.Count,
		"limit":     v.Limit,
	}
	switch v.Kind {
	case rostercap.ErrTeamCapExceeded:
		details["team"] = v.Key
	case rostercap.ErrPositionCapExceeded:
		details["role"] = v.Key
	}
	return &RuleError{Kind: v.Kind, Message: v.Error(), Details: details}
}
