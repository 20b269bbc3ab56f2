// Package navigation turns a pose and an ordered waypoint list into discrete movement commands.
package navigation

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Command is one discrete movement order for the vehicle.
type Command int

// The command vocabulary. Forward is toward smaller image y.
const (
	Hold Command = iota
	MoveForward
	MoveBackward
	MoveLeft
	MoveRight
	Ascend
	Descend
	ReachedDestination
)

var commandNames = map[Command]string{
	Hold:               "HOLD",
	MoveForward:        "MOVE_FORWARD",
	MoveBackward:       "MOVE_BACKWARD",
	MoveLeft:           "MOVE_LEFT",
	MoveRight:          "MOVE_RIGHT",
	Ascend:             "ASCEND",
	Descend:            "DESCEND",
	ReachedDestination: "REACHED_DESTINATION",
}

// AllCommands lists every command in declaration order.
func AllCommands() []Command {
	return []Command{Hold, MoveForward, MoveBackward, MoveLeft, MoveRight, Ascend, Descend, ReachedDestination}
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// IsHorizontal reports whether c moves the vehicle in the image plane.
func (c Command) IsHorizontal() bool {
	switch c {
	case MoveForward, MoveBackward, MoveLeft, MoveRight:
		return true
	default:
		return false
	}
}

// ParseCommand parses a command name. Spaces and dashes are accepted in place of underscores and
// case is ignored.
func ParseCommand(s string) (Command, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for c, name := range commandNames {
		if name == norm {
			return c, nil
		}
	}
	return Hold, errors.Errorf("unknown command %q", s)
}

// MarshalText encodes the command by name.
func (c Command) MarshalText() ([]byte, error) {
	if _, ok := commandNames[c]; !ok {
		return nil, errors.Errorf("cannot marshal %s", c)
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes a command name.
func (c *Command) UnmarshalText(text []byte) error {
	parsed, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
