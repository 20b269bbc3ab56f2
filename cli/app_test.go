package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"

	"github.com/openaerial/visnav/config"
)

func runApp(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := NewApp(&out, &errOut)
	err := app.Run(append([]string{"visnav"}, args...))
	return out.String(), errOut.String(), err
}

func TestRoutesCommands(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		out, _, err := runApp(t, "routes", "list")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "Mumbai to Pune")
		test.That(t, out, test.ShouldContainSubstring, "Delhi -> Agra -> Bhopal -> Nagpur -> Hyderabad -> Bangalore")
		test.That(t, out, test.ShouldContainSubstring, "FLIGHT TIME")
	})

	t.Run("info", func(t *testing.T) {
		out, _, err := runApp(t, "routes", "info", "Mumbai", "Pune")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "Mumbai -> Pune")
		test.That(t, out, test.ShouldContainSubstring, "112 px (56 km)")
		test.That(t, out, test.ShouldContainSubstring, "2 waypoints, estimated flight time 1h 7m at 50 km/h")

		_, _, err = runApp(t, "routes", "info", "Mumbai", "Atlantis")
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "unknown city")

		_, _, err = runApp(t, "routes", "info", "Mumbai")
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("suggest", func(t *testing.T) {
		out, _, err := runApp(t, "routes", "suggest", "--from", "Mumbai", "--to", "Pune", "--max-waypoints", "2")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldContainSubstring, "Mumbai -> Pune\n")

		out, _, err = runApp(t, "routes", "suggest", "--from", "Mumbai", "--to", "Kolkata")
		test.That(t, err, test.ShouldBeNil)
		line := strings.SplitN(out, "\n", 2)[0]
		test.That(t, strings.Count(line, "->"), test.ShouldEqual, 3)
		test.That(t, line, test.ShouldStartWith, "Mumbai -> ")
		test.That(t, line, test.ShouldEndWith, " -> Kolkata")

		_, _, err = runApp(t, "routes", "suggest", "--from", "Mumbai")
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("nearest", func(t *testing.T) {
		out, _, err := runApp(t, "routes", "nearest", "--count", "3", "Mumbai")
		test.That(t, err, test.ShouldBeNil)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		test.That(t, lines, test.ShouldHaveLength, 3)
		test.That(t, lines[0], test.ShouldStartWith, "Surat")
		test.That(t, lines[1], test.ShouldStartWith, "Ahmedabad")
		test.That(t, lines[2], test.ShouldStartWith, "Jodhpur")

		_, _, err = runApp(t, "routes", "nearest")
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestConfigCommand(t *testing.T) {
	out, _, err := runApp(t, "config")
	test.That(t, err, test.ShouldBeNil)
	var printed map[string]interface{}
	test.That(t, json.Unmarshal([]byte(out), &printed), test.ShouldBeNil)
	test.That(t, printed, test.ShouldContainKey, "navigation")
	test.That(t, printed, test.ShouldContainKey, "sim")

	// the printed config reads back as the same config
	path := filepath.Join(t.TempDir(), "visnav.json")
	test.That(t, os.WriteFile(path, []byte(out), 0o600), test.ShouldBeNil)
	cfg, err := config.Read(path)
	test.That(t, err, test.ShouldBeNil)
	def := config.Default()
	test.That(t, cfg.Navigation.Waypoints, test.ShouldResemble, def.Navigation.Waypoints)
	test.That(t, cfg.Sim.RunnerConfig, test.ShouldResemble, def.Sim.RunnerConfig)

	_, _, err = runApp(t, "--config", filepath.Join(t.TempDir(), "missing.json"), "config")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	statusFile := filepath.Join(dir, "status.jsonl")
	out, _, err := runApp(t, "--log-file", filepath.Join(dir, "visnav.log"),
		"run", "--max-ticks", "3", "--hz", "0", "--status-file", statusFile)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldContainSubstring, "3 ticks")
	test.That(t, out, test.ShouldContainSubstring, "without landing")
	test.That(t, out, test.ShouldContainSubstring, "vehicle: heading")

	//nolint:gosec
	f, err := os.Open(statusFile)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	var lines int
	for scanner := bufio.NewScanner(f); scanner.Scan(); lines++ {
		var st map[string]interface{}
		test.That(t, json.Unmarshal(scanner.Bytes(), &st), test.ShouldBeNil)
		test.That(t, st["state"], test.ShouldEqual, "NAVIGATION")
	}
	test.That(t, lines, test.ShouldEqual, 3)

	_, err = os.Stat(filepath.Join(dir, "visnav.log"))
	test.That(t, err, test.ShouldBeNil)
}

func TestRunCommandInvalidFlags(t *testing.T) {
	_, _, err := runApp(t, "run", "--max-ticks", "-1")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVisionCommandsNeedTwoImages(t *testing.T) {
	_, _, err := runApp(t, "detect", "only-one.png")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected 2 image paths")

	_, _, err = runApp(t, "odometry")
	test.That(t, err, test.ShouldNotBeNil)

	_, _, err = runApp(t, "odometry", "missing-a.png", "missing-b.png")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cannot open image")
}
