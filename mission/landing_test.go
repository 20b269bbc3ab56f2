package mission

import (
	"encoding/json"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/openaerial/visnav/navigation"
)

func TestLandingDecide(t *testing.T) {
	lc, err := NewLandingController(DefaultLandingConfig())
	test.That(t, err, test.ShouldBeNil)
	center := r2.Point{X: 320, Y: 240}

	for _, tc := range []struct {
		name      string
		landmark  r2.Point
		command   navigation.Command
		magnitude float64
	}{
		{"right", r2.Point{X: 345, Y: 200}, navigation.MoveRight, 0.5},
		{"left", r2.Point{X: 310, Y: 240}, navigation.MoveLeft, 0.2},
		{"x first", r2.Point{X: 324, Y: 100}, navigation.MoveRight, 0.08},
		{"forward", r2.Point{X: 322, Y: 230}, navigation.MoveForward, 0.2},
		{"backward", r2.Point{X: 320, Y: 400}, navigation.MoveBackward, 1},
		{"centered", r2.Point{X: 323, Y: 237}, navigation.Descend, 1},
	} {
		t.Run(tc.name, func(t *testing.T) {
			d := lc.Decide(tc.landmark, center)
			test.That(t, d.Command, test.ShouldEqual, tc.command)
			test.That(t, d.Magnitude, test.ShouldAlmostEqual, tc.magnitude)
			test.That(t, d.Error, test.ShouldResemble, tc.landmark.Sub(center))
			test.That(t, d.Centered, test.ShouldEqual, tc.command == navigation.Descend)
		})
	}

	_, err = NewLandingController(LandingConfig{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestStateText(t *testing.T) {
	for _, st := range AllStates() {
		parsed, err := ParseState(st.String())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, parsed, test.ShouldEqual, st)
	}
	_, err := ParseState("CRASHED")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, State(9).String(), test.ShouldEqual, "State(9)")

	var cfg Config
	test.That(t, json.Unmarshal([]byte(`{"loss_policy": "hold", "recovery_window": 3}`), &cfg), test.ShouldBeNil)
	test.That(t, cfg.LossPolicy, test.ShouldEqual, HoldPosition)
	test.That(t, json.Unmarshal([]byte(`{"loss_policy": "abort"}`), &cfg), test.ShouldNotBeNil)

	out, err := json.Marshal(Status{State: Landing, PreviousState: Navigation, Command: navigation.Descend})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldContainSubstring, `"state":"LANDING"`)
	test.That(t, string(out), test.ShouldContainSubstring, `"command":"DESCEND"`)
}
