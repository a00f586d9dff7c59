package rooftop

import "guckelsberg/internal/models"

// FSM holds the allowed rooftop request transitions.
// APPROVED, REJECTED and CANCELLED are terminal.
type FSM struct {
	transitions map[models.RequestStatus][]models.RequestStatus
}

// NewFSM creates the request state machine.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.RequestStatus][]models.RequestStatus{
			models.RequestRequested: {models.RequestApproved, models.RequestRejected, models.RequestCancelled},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to models.RequestStatus) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves status.
func (f *FSM) IsTerminal(status models.RequestStatus) bool {
	return len(f.transitions[status]) == 0
}
