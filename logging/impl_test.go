package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"go.viam.com/test"
)

func TestConsoleOutputFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := &impl{"nav", NewAtomicLevelAt(DEBUG), true, []Appender{NewWriterAppender(&buf)}}

	logger.Infow("waypoint reached", "index", 2, "name", "delta")
	line := strings.TrimSuffix(buf.String(), "\n")
	parts := strings.Split(line, "\t")
	test.That(t, len(parts), test.ShouldBeGreaterThanOrEqualTo, 5)
	test.That(t, parts[1], test.ShouldEqual, "INFO")
	test.That(t, parts[2], test.ShouldEqual, "nav")
	test.That(t, parts[3], test.ShouldContainSubstring, "impl_test.go:")
	test.That(t, parts[4], test.ShouldEqual, "waypoint reached")
	test.That(t, parts[5], test.ShouldEqual, `{"index": 2, "name": "delta"}`)
}

func TestLevelFiltering(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.SetLevel(WARN)

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warnf("kept %d", 1)
	logger.Error("kept")

	test.That(t, logs.Len(), test.ShouldEqual, 2)
	test.That(t, logs.FilterMessage("kept 1").Len(), test.ShouldEqual, 1)
	test.That(t, logger.GetLevel(), test.ShouldEqual, WARN)
}

func TestSubloggerNaming(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	sub := logger.Sublogger("mission")
	sub.Sublogger("landing").Info("centered")

	entries := logs.All()
	test.That(t, entries, test.ShouldHaveLength, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "mission.landing")
}

func TestUnpairedKey(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.Infow("odd", "key")

	fields := logs.All()[0].ContextMap()
	test.That(t, fields["key"], test.ShouldNotBeNil)
}

func TestAsZapSharesAppenders(t *testing.T) {
	logger, logs := NewObservedTestLogger(t)
	logger.AsZap().Infow("from zap", "tick", 3)

	test.That(t, logs.FilterMessage("from zap").Len(), test.ShouldEqual, 1)
	test.That(t, logger.Sync(), test.ShouldBeNil)
}

func TestLevelParsing(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"Warn", WARN},
		{"warning", WARN},
		{"error", ERROR},
	} {
		level, err := LevelFromString(tc.in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, tc.expected)
	}

	_, err := LevelFromString("loud")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"error"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, ERROR)
	out, err := json.Marshal(INFO)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out), test.ShouldEqual, `"info"`)
}

func TestFileAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visnav.log")
	appender, closer := NewFileAppender(FileAppenderConfig{Filename: path})
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)
	logger.Info("to disk")
	test.That(t, closer.Close(), test.ShouldBeNil)
}
