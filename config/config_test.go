package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"github.com/openaerial/visnav/logging"
	"github.com/openaerial/visnav/mission"
)

func noEnv(string) (string, bool) {
	return "", false
}

func envMap(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	test.That(t, cfg.Validate(), test.ShouldBeNil)
	wps, err := cfg.Navigation.Resolve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, wps, test.ShouldHaveLength, 6)
	test.That(t, wps[0].Name, test.ShouldEqual, "start")
	test.That(t, cfg.LandmarkPosition(wps), test.ShouldResemble, r2.Point{X: 500, Y: 400})
	test.That(t, cfg.Landmark.ReferenceScales, test.ShouldResemble, []float64{1, 2, 4})
}

func TestFromReader(t *testing.T) {
	in := `{
		"navigation": {"waypoints": [{"x": 1, "y": 2, "altitude": 30}, {"name": "end", "x": 90, "y": 2}]},
		"mission": {"loss_policy": "hold"},
		"landmark": {"reference_scales": [1.5]},
		"sim": {"hz": 5, "map_width": 400, "landmark_position": {"x": 60, "y": 50}}
	}`
	cfg, err := FromReader("inline", strings.NewReader(in), noEnv)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "inline")
	test.That(t, cfg.Mission.LossPolicy, test.ShouldEqual, mission.HoldPosition)
	test.That(t, cfg.Mission.RecoveryWindow, test.ShouldEqual, 5)
	test.That(t, cfg.Landmark.ReferenceScales, test.ShouldResemble, []float64{1.5})
	test.That(t, cfg.Sim.Hz, test.ShouldEqual, 5)
	test.That(t, cfg.Sim.MapWidth, test.ShouldEqual, 400)
	test.That(t, cfg.Sim.MapHeight, test.ShouldEqual, 600)
	test.That(t, cfg.Sim.CameraWidth, test.ShouldEqual, 640)
	test.That(t, cfg.Navigation.ArrivalThreshold, test.ShouldEqual, 25)

	wps, err := cfg.Navigation.Resolve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, wps, test.ShouldHaveLength, 2)
	test.That(t, wps[0].Name, test.ShouldEqual, "")
	test.That(t, wps[0].HasAltitude, test.ShouldBeTrue)
	test.That(t, wps[0].Altitude, test.ShouldEqual, 30)
	test.That(t, wps[1].HasAltitude, test.ShouldBeFalse)
	test.That(t, cfg.LandmarkPosition(wps), test.ShouldResemble, r2.Point{X: 60, Y: 50})
}

func TestFromReaderRoutes(t *testing.T) {
	cfg, err := FromReader("", strings.NewReader(`{"navigation": {"route": ["Mumbai", "Pune"]}}`), noEnv)
	test.That(t, err, test.ShouldBeNil)
	wps, err := cfg.Navigation.Resolve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, wps, test.ShouldHaveLength, 2)
	test.That(t, cfg.LandmarkPosition(wps), test.ShouldResemble, r2.Point{X: 250, Y: 250})

	cfg, err = FromReader("", strings.NewReader(`{"navigation": {"popular_route": "Mumbai to Kolkata"}}`), noEnv)
	test.That(t, err, test.ShouldBeNil)
	wps, err = cfg.Navigation.Resolve()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, wps[len(wps)-1].Name, test.ShouldEqual, "Kolkata")
}

func TestFromReaderErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		in       string
		contains []string
	}{
		{"syntax", `{"sim": `, []string{"decode"}},
		{"unknown field", `{"simulator": {}}`, []string{"simulator"}},
		{"unknown city", `{"navigation": {"route": ["Mumbai", "Atlantis"]}}`, []string{"Atlantis"}},
		{"unknown popular route", `{"navigation": {"popular_route": "Moon to Mars"}}`, []string{"Moon to Mars"}},
		{
			"two route sources",
			`{"navigation": {"route": ["Mumbai", "Pune"], "waypoints": [{"x": 1, "y": 1}]}}`,
			[]string{"only one of"},
		},
		{
			"aggregated",
			`{"mission": {"recovery_window": -1}, "vehicle": {"max_velocity": 0.1}, "sim": {"camera_width": 0}}`,
			[]string{"recovery_window", "velocity range", "camera size"},
		},
		{"floor", `{"mission": {"min_altitude": 2}}`, []string{"vehicle floor"}},
		{"log file", `{"log": {"file": {"max_size_mb": 3}}}`, []string{"filename"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromReader("bad.json", strings.NewReader(tc.in), noEnv)
			test.That(t, err, test.ShouldNotBeNil)
			for _, s := range tc.contains {
				test.That(t, err.Error(), test.ShouldContainSubstring, s)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, envMap(map[string]string{
		EnvLogLevel: "debug",
		EnvHz:       "20",
		EnvMaxTicks: "50",
		EnvMap:      "/data/map.png",
		EnvLandmark: "/data/pad.png",
	}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Log.Level, test.ShouldEqual, logging.DEBUG)
	test.That(t, cfg.Sim.Hz, test.ShouldEqual, 20)
	test.That(t, cfg.Sim.MaxTicks, test.ShouldEqual, 50)
	test.That(t, cfg.Sim.MapPath, test.ShouldEqual, "/data/map.png")
	test.That(t, cfg.Sim.LandmarkPath, test.ShouldEqual, "/data/pad.png")

	err = ApplyEnv(cfg, envMap(map[string]string{EnvHz: "fast", EnvMaxTicks: "many", EnvLogLevel: "loud"}))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, EnvHz)
	test.That(t, err.Error(), test.ShouldContainSubstring, EnvMaxTicks)
	test.That(t, err.Error(), test.ShouldContainSubstring, EnvLogLevel)
	test.That(t, cfg.Sim.Hz, test.ShouldEqual, 20)
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VISNAV_TEST_STATUS", filepath.Join(dir, "status.jsonl"))
	path := filepath.Join(dir, "mission.json")
	test.That(t, os.WriteFile(path, []byte(`{"sim": {"status_file": "${VISNAV_TEST_STATUS}", "max_ticks": 10}}`), 0o600),
		test.ShouldBeNil)

	cfg, err := Read(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Sim.StatusFile, test.ShouldEqual, filepath.Join(dir, "status.jsonl"))
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)

	_, err = Read(filepath.Join(dir, "missing.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestNewLogger(t *testing.T) {
	logger, closer := NewLogger("visnav", LogConfig{}, true)
	test.That(t, logger.GetLevel(), test.ShouldEqual, logging.DEBUG)
	test.That(t, closer.Close(), test.ShouldBeNil)

	path := filepath.Join(t.TempDir(), "visnav.log")
	logger, closer = NewLogger("visnav", LogConfig{Level: logging.WARN, File: &logging.FileAppenderConfig{Filename: path}}, false)
	test.That(t, logger.GetLevel(), test.ShouldEqual, logging.WARN)
	logger.Warn("engine on fire")
	test.That(t, closer.Close(), test.ShouldBeNil)
	contents, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "engine on fire")
}
