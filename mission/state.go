// Package mission sequences navigation and precision landing one camera frame at a time.
package mission

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// State is the mission phase.
type State int

// Mission phases. Completed is terminal.
const (
	Navigation State = iota
	Landing
	Completed
)

// AllStates lists every state in declaration order.
func AllStates() []State {
	return []State{Navigation, Landing, Completed}
}

func (s State) String() string {
	switch s {
	case Navigation:
		return "NAVIGATION"
	case Landing:
		return "LANDING"
	case Completed:
		return "COMPLETED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState parses a state name, ignoring case.
func ParseState(s string) (State, error) {
	for _, st := range AllStates() {
		if strings.EqualFold(st.String(), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return Navigation, errors.Errorf("unknown mission state %q", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if s < Navigation || s > Completed {
		return nil, errors.Errorf("cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// transitions[from][to] is true for every allowed move, staying put included.
var transitions = map[State]map[State]bool{
	Navigation: {Navigation: true, Landing: true},
	Landing:    {Landing: true, Completed: true, Navigation: true},
	Completed:  {Completed: true},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	return transitions[from][to]
}

// LossPolicy decides what happens once the landmark stays lost past the recovery window.
type LossPolicy int

const (
	// RevertToNavigation gives up the landing and resumes waypoint navigation.
	RevertToNavigation LossPolicy = iota
	// HoldPosition keeps holding in the landing state until the landmark is seen again.
	HoldPosition
)

func (p LossPolicy) String() string {
	switch p {
	case RevertToNavigation:
		return "revert"
	case HoldPosition:
		return "hold"
	default:
		return fmt.Sprintf("LossPolicy(%d)", int(p))
	}
}

// ParseLossPolicy parses "revert" or "hold". The empty string selects revert.
func ParseLossPolicy(s string) (LossPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "revert":
		return RevertToNavigation, nil
	case "hold":
		return HoldPosition, nil
	default:
		return RevertToNavigation, errors.Errorf("unknown loss policy %q, expected revert or hold", s)
	}
}

// MarshalText encodes the policy by name.
func (p LossPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a policy name.
func (p *LossPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseLossPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
