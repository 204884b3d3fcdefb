// Package control drives an episode from a policy at a fixed cadence.
package control

import (
	"github.com/viva-safeland/viva-safeland/internal/episode"
	"github.com/viva-safeland/viva-safeland/internal/kinematics"
)

// Controller produces one action per control step. Implementations may
// request an episode reset or termination by returning the corresponding
// flags alongside the action.
type Controller interface {
	// Action returns the action for the given step and the latest episode
	// info. reset asks the runner to reset before applying the action;
	// terminate asks it to end the episode.
	Action(step int, info episode.Info) (action kinematics.Action, reset, terminate bool)
}

// Scripted replays a fixed action sequence. After the sequence is
// exhausted it holds the zero action, or requests termination if
// TerminateAtEnd is set.
type Scripted struct {
	Actions        []kinematics.Action
	TerminateAtEnd bool
}

func (s *Scripted) Action(step int, _ episode.Info) (kinematics.Action, bool, bool) {
	if step < len(s.Actions) {
		return s.Actions[step], false, false
	}
	if s.TerminateAtEnd {
		return kinematics.Action{}, false, true
	}
	return kinematics.Action{}, false, false
}

// Hover always returns the zero action.
type Hover struct{}

func (Hover) Action(int, episode.Info) (kinematics.Action, bool, bool) {
	return kinematics.Action{}, false, false
}
