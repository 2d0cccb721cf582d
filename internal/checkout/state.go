package checkout

import (
	"fmt"

	"github.com/storefrontlab/storefront-backend/pkg/enums"
	pkgerrors "github.com/storefrontlab/storefront-backend/pkg/errors"
)

// statusTransitions is the whole state machine: a status absent from the map
// is terminal. Confirmed is pre-terminal, its single legal edge is completed.
var statusTransitions = map[enums.SessionStatus][]enums.SessionStatus{
	enums.SessionStatusActive: {
		enums.SessionStatusConfirmed,
		enums.SessionStatusAbandoned,
		enums.SessionStatusExpired,
	},
	enums.SessionStatusConfirmed: {
		enums.SessionStatusCompleted,
	},
}

// CanTransition reports whether the status edge is legal.
func CanTransition(from, to enums.SessionStatus) bool {
	for _, candidate := range statusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// guardTransition returns a typed state error when the edge is illegal.
func guardTransition(from, to enums.SessionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("session cannot move from %s to %s", from, to))
}

// guardMutable rejects any mutation of a session that left the active state.
func guardMutable(status enums.SessionStatus) error {
	if status == enums.SessionStatusActive {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("session is %s and no longer accepts changes", status))
}
