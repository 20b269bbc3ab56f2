package mission

import (
	"image"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/navigation"
	"github.com/openaerial/visnav/vision/landmark"
	"github.com/openaerial/visnav/vision/odometry"
)

// altitudeEpsilon absorbs float drift when comparing against the landing altitude.
const altitudeEpsilon = 1e-6

// LandmarkDetector finds the landing pad in a frame.
type LandmarkDetector interface {
	Detect(frame image.Image) landmark.Detection
}

// OdometryEstimator measures motion between consecutive frames.
type OdometryEstimator interface {
	Update(frame image.Image) odometry.Estimate
	Reset()
}

// Config holds the mission parameters.
type Config struct {
	// RecoveryWindow is how many consecutive frames the landmark may be lost during landing before
	// LossPolicy applies.
	RecoveryWindow int        `json:"recovery_window"`
	LossPolicy     LossPolicy `json:"loss_policy"`
	// MinAltitude is the altitude at which a centered landing completes.
	MinAltitude float64 `json:"min_altitude"`
	// StartAltitude is the altitude restored on reset.
	StartAltitude float64 `json:"start_altitude"`
	// SearchRadius is how close, in map pixels, a search must bring the vehicle to the final
	// waypoint before it starts descending.
	SearchRadius float64 `json:"search_radius"`
	// FinalApproachAltitude is the altitude at or below which a landmark that was centered on its
	// last fix and then drops out of view is followed by a blind descent. Close to the ground the
	// pad overfills the camera and stops matching. Zero disables the final approach.
	FinalApproachAltitude float64              `json:"final_approach_altitude"`
	Landing               LandingConfig        `json:"landing"`
	Track                 odometry.TrackConfig `json:"track"`
}

// DefaultConfig returns a 5 frame recovery window with the revert policy.
func DefaultConfig() Config {
	return Config{
		RecoveryWindow:        5,
		LossPolicy:            RevertToNavigation,
		MinAltitude:           5,
		StartAltitude:         150,
		SearchRadius:          5,
		FinalApproachAltitude: 40,
		Landing:               DefaultLandingConfig(),
		Track:                 odometry.DefaultTrackConfig(),
	}
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	var errs error
	if config.RecoveryWindow < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("recovery_window should be >= 0")))
	}
	if config.MinAltitude <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("min_altitude should be > 0")))
	}
	if config.StartAltitude < config.MinAltitude {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path,
			errors.Errorf("start_altitude %v is below min_altitude %v", config.StartAltitude, config.MinAltitude)))
	}
	if config.SearchRadius <= 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("search_radius should be > 0")))
	}
	if config.FinalApproachAltitude < 0 {
		errs = multierr.Append(errs, utils.NewConfigValidationError(path, errors.New("final_approach_altitude should be >= 0")))
	}
	return multierr.Append(errs, config.Landing.Validate(path+".landing"))
}

// Context is the mutable state of one mission run. The caller owns it and hands it to every
// Step; the executor updates Pose between steps.
type Context struct {
	Pose  navigation.Pose
	State State
	Tick  int
	// LostTicks counts consecutive landing frames without a landmark fix. While searching it
	// counts the frames spent on the search floor instead.
	LostTicks int
	// Searching is set while landing without a fix after the route is flown: the vehicle closes
	// on the final waypoint and descends until the landmark shows up.
	Searching bool
	// Centered records whether the latest landmark fix was within the landing tolerance.
	Centered bool
}

// Status is the observable outcome of one tick. DeadReckoned is the vehicle displacement in frame
// pixels integrated from odometry since the last reset.
type Status struct {
	Tick          int                 `json:"tick"`
	State         State               `json:"state"`
	PreviousState State               `json:"previous_state"`
	Pose          navigation.Pose     `json:"pose"`
	Command       navigation.Command  `json:"command"`
	Magnitude     float64             `json:"magnitude"`
	Target        navigation.Waypoint `json:"target"`
	Progress      navigation.Progress `json:"progress"`
	Odometry      odometry.Estimate   `json:"odometry"`
	DeadReckoned  r2.Point            `json:"dead_reckoned"`
	Detection     landmark.Detection  `json:"detection"`
	LandingError  r2.Point            `json:"landing_error"`
	LostTicks     int                 `json:"lost_ticks"`
	Message       string              `json:"message,omitempty"`
}

// Transitioned reports whether the tick changed the mission state.
func (s Status) Transitioned() bool {
	return s.State != s.PreviousState
}

// Machine runs the per-tick pipeline: odometry, landmark detection, then the handler for the
// current state. It never blocks and always yields one command.
type Machine struct {
	nav      *navigation.Controller
	detector LandmarkDetector
	odometry OdometryEstimator
	landing  *LandingController
	track    *odometry.Track
	cfg      Config
	logger   logging.Logger
}

// NewMachine wires the mission components together.
func NewMachine(
	nav *navigation.Controller,
	detector LandmarkDetector,
	odo OdometryEstimator,
	cfg Config,
	logger logging.Logger,
) (*Machine, error) {
	if nav == nil || detector == nil || odo == nil {
		return nil, errors.New("mission needs a navigation controller, a landmark detector and an odometry estimator")
	}
	if err := cfg.Validate("mission"); err != nil {
		return nil, err
	}
	landing, err := NewLandingController(cfg.Landing)
	if err != nil {
		return nil, err
	}
	return &Machine{
		nav:      nav,
		detector: detector,
		odometry: odo,
		landing:  landing,
		track:    odometry.NewTrack(cfg.Track),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Config returns the mission configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// NewContext returns a context positioned at the first waypoint.
func (m *Machine) NewContext() *Context {
	mc := &Context{}
	m.Reset(mc)
	return mc
}

// Reset puts the vehicle back on the first waypoint at the start altitude, returns to
// Navigation and clears every cache.
func (m *Machine) Reset(mc *Context) {
	first := m.nav.Waypoints()[0]
	*mc = Context{
		Pose: navigation.Pose{
			X:        first.Position.X,
			Y:        first.Position.Y,
			Altitude: m.cfg.StartAltitude,
		},
		State: Navigation,
	}
	m.nav.Reset()
	m.odometry.Reset()
	m.track.Reset()
	m.logger.Debugw("mission reset", "pose", mc.Pose.String())
}

// Step processes one frame and returns the command for this tick. mc.Pose must describe where
// the frame was taken.
func (m *Machine) Step(mc *Context, frame image.Image) Status {
	st := Status{
		Tick:          mc.Tick,
		PreviousState: mc.State,
		Pose:          mc.Pose,
	}
	mc.Tick++

	st.Odometry = m.odometry.Update(frame)
	m.track.Add(st.Odometry)
	st.DeadReckoned = m.track.Position()
	st.Detection = m.detector.Detect(frame)
	center := frameCenter(frame)

	switch mc.State {
	case Navigation:
		m.stepNavigation(mc, center, &st)
	case Landing:
		m.stepLanding(mc, center, &st)
	case Completed:
		st.Command = navigation.Hold
	default:
		m.logger.Errorw("unknown mission state, holding", "state", mc.State)
		st.Command = navigation.Hold
	}

	st.State = mc.State
	st.LostTicks = mc.LostTicks
	st.Progress = m.nav.Progress()
	st.Target = m.nav.Target()
	return st
}

func (m *Machine) stepNavigation(mc *Context, center r2.Point, st *Status) {
	cmd, _ := m.nav.NextCommand(mc.Pose)
	switch {
	case st.Detection.Found:
		m.transition(mc, Landing, "landmark detected")
		mc.LostTicks = 0
		m.stepLanding(mc, center, st)
	case cmd == navigation.ReachedDestination:
		m.transition(mc, Landing, "final waypoint reached, searching for landmark")
		m.startSearch(mc)
		m.stepLanding(mc, center, st)
	default:
		st.Command = cmd
		st.Magnitude = 1
	}
}

func (m *Machine) stepLanding(mc *Context, center r2.Point, st *Status) {
	if !st.Detection.Found {
		m.stepLandmarkMissing(mc, st)
		return
	}

	mc.LostTicks = 0
	mc.Searching = false
	d := m.landing.Decide(st.Detection.Center, center)
	mc.Centered = d.Centered
	st.LandingError = d.Error
	if d.Centered && m.atFloor(mc.Pose) {
		m.transition(mc, Completed, "landed on target")
		st.Command = navigation.Hold
		st.Message = "landed"
		return
	}
	st.Command = d.Command
	st.Magnitude = d.Magnitude
}

func (m *Machine) stepLandmarkMissing(mc *Context, st *Status) {
	switch {
	case m.inFinalApproach(mc):
		m.stepFinalApproach(mc, st)
		return
	case mc.Searching:
		m.stepSearch(mc, st)
		return
	}

	mc.LostTicks++
	st.Command = navigation.Hold
	st.Message = "landmark lost, holding"
	if mc.LostTicks <= m.cfg.RecoveryWindow {
		return
	}
	switch {
	case m.cfg.LossPolicy == HoldPosition:
		if mc.LostTicks == m.cfg.RecoveryWindow+1 {
			m.logger.Warnw("landmark not reacquired, holding position", "lost_ticks", mc.LostTicks)
		}
		st.Message = "landmark not reacquired, holding position"
	case m.nav.Reached():
		// navigation has nothing left to fly once the route is done
		m.logger.Warnw("landmark not reacquired, searching around the final waypoint", "lost_ticks", mc.LostTicks)
		m.resumeSearch(mc)
		st.Message = "landmark not reacquired, searching"
	default:
		m.logger.Warnw("landmark not reacquired, resuming navigation", "lost_ticks", mc.LostTicks)
		m.transition(mc, Navigation, "landmark lost")
		mc.LostTicks = 0
		mc.Centered = false
		st.Message = "landmark not reacquired, resuming navigation"
	}
}

// stepSearch closes on the final waypoint, then descends over it until the landmark comes into
// view or the vehicle reaches the landing altitude.
func (m *Machine) stepSearch(mc *Context, st *Status) {
	dest := m.nav.Destination().Position
	switch {
	case mc.Pose.Point().Sub(dest).Norm() > m.cfg.SearchRadius:
		// moving sideways invalidates the last fix
		mc.Centered = false
		st.Command = navigation.Toward(mc.Pose.Point(), dest)
		st.Magnitude = 1
		st.Message = "searching for landmark, closing on final waypoint"
	case !m.atFloor(mc.Pose):
		st.Command = navigation.Descend
		st.Magnitude = 1
		st.Message = "searching for landmark, descending"
	default:
		mc.LostTicks++
		if mc.LostTicks == 1 {
			m.logger.Warnw("landmark not found at search floor, holding", "pose", mc.Pose.String())
		}
		st.Command = navigation.Hold
		st.Message = "landmark not found, holding at search floor"
	}
}

func (m *Machine) inFinalApproach(mc *Context) bool {
	return mc.Centered && m.cfg.FinalApproachAltitude > 0 && mc.Pose.Altitude <= m.cfg.FinalApproachAltitude
}

// stepFinalApproach descends straight down on the last centered fix.
func (m *Machine) stepFinalApproach(mc *Context, st *Status) {
	mc.LostTicks++
	if mc.LostTicks == 1 {
		m.logger.Infow("landmark out of view on final approach, descending", "altitude", mc.Pose.Altitude)
	}
	if m.atFloor(mc.Pose) {
		m.transition(mc, Completed, "landed on target after final approach")
		st.Command = navigation.Hold
		st.Message = "landed"
		return
	}
	st.Command = navigation.Descend
	st.Magnitude = 1
	st.Message = "final approach"
}

func (m *Machine) startSearch(mc *Context) {
	m.resumeSearch(mc)
	mc.Centered = false
}

func (m *Machine) resumeSearch(mc *Context) {
	mc.Searching = true
	mc.LostTicks = 0
}

func (m *Machine) atFloor(pose navigation.Pose) bool {
	return pose.Altitude <= m.cfg.MinAltitude+altitudeEpsilon
}

func (m *Machine) transition(mc *Context, to State, reason string) {
	if !CanTransition(mc.State, to) {
		m.logger.Errorw("refusing mission state change", "from", mc.State, "to", to)
		return
	}
	m.logger.Infow("mission state changed", "from", mc.State, "to", to, "tick", mc.Tick-1, "reason", reason)
	mc.State = to
}

func frameCenter(frame image.Image) r2.Point {
	if frame == nil {
		return r2.Point{}
	}
	b := frame.Bounds()
	return r2.Point{X: float64(b.Min.X + b.Dx()/2), Y: float64(b.Min.Y + b.Dy()/2)}
}
