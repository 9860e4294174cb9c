// internal/game/errors.go
package game

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable category of a rejected action.
type ErrorKind string

const (
	KindNotYourTurn          ErrorKind = "NotYourTurn"
	KindWrongPhase           ErrorKind = "WrongPhase"
	KindAlreadyDrew          ErrorKind = "AlreadyDrew"
	KindDeckExhausted        ErrorKind = "DeckExhausted"
	KindDiscardPileEmpty     ErrorKind = "DiscardPileEmpty"
	KindMeldIllegal          ErrorKind = "MeldIllegal"
	KindMeldTooSmall         ErrorKind = "MeldTooSmall"
	KindGameNotFound         ErrorKind = "GameNotFound"
	KindGameFull             ErrorKind = "GameFull"
	KindContractNotSatisfied ErrorKind = "ContractNotSatisfied"
	KindNotHost              ErrorKind = "NotHost"
	KindPlayerNotFound       ErrorKind = "PlayerNotFound"
	KindCardNotInHand        ErrorKind = "CardNotInHand"
	KindMeldNotFound         ErrorKind = "MeldNotFound"
	KindInvalidAction        ErrorKind = "InvalidAction"
)

// GameError is returned for every rejected action. Rejections never change session state.
type GameError struct {
	Kind    ErrorKind
	Message string
}

func (e *GameError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any GameError of the same kind, so errors.Is(err, ErrNotYourTurn) works
// regardless of the message.
func (e *GameError) Is(target error) bool {
	t, ok := target.(*GameError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNotYourTurn          = &GameError{Kind: KindNotYourTurn}
	ErrWrongPhase           = &GameError{Kind: KindWrongPhase}
	ErrAlreadyDrew          = &GameError{Kind: KindAlreadyDrew}
	ErrDeckExhausted        = &GameError{Kind: KindDeckExhausted}
	ErrDiscardPileEmpty     = &GameError{Kind: KindDiscardPileEmpty}
	ErrMeldIllegal          = &GameError{Kind: KindMeldIllegal}
	ErrMeldTooSmall         = &GameError{Kind: KindMeldTooSmall}
	ErrGameNotFound         = &GameError{Kind: KindGameNotFound}
	ErrGameFull             = &GameError{Kind: KindGameFull}
	ErrContractNotSatisfied = &GameError{Kind: KindContractNotSatisfied}
	ErrNotHost              = &GameError{Kind: KindNotHost}
	ErrPlayerNotFound       = &GameError{Kind: KindPlayerNotFound}
	ErrCardNotInHand        = &GameError{Kind: KindCardNotInHand}
	ErrMeldNotFound         = &GameError{Kind: KindMeldNotFound}
	ErrInvalidAction        = &GameError{Kind: KindInvalidAction}
)

func newError(kind ErrorKind, format string, args ...interface{}) *GameError {
	return &GameError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the ErrorKind from err, or "" if err is not a GameError.
func KindOf(err error) ErrorKind {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
