package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
)

func TestNewWithDifferentLevels(t *testing.T) {
	testCases := []struct {
		level       string
		expectDebug bool
		expectInfo  bool
		expectWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"warning", false, false, true},
		{"error", false, false, false},
		{"DEBUG", true, true, true},
		{"invalid", false, true, true},
	}

	for _, tc := range testCases {
		t.Run(tc.level, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := logging.New(tc.level, buf)

			logger.Debug("debug message")
			logger.Info("info message")
			logger.Warn("warn message")
			logger.Error("error message")

			output := buf.String()
			check := func(expect bool, msg string) {
				if expect {
					gt.S(t, output).Contains(msg)
				} else {
					gt.S(t, output).NotContains(msg)
				}
			}
			check(tc.expectDebug, "debug message")
			check(tc.expectInfo, "info message")
			check(tc.expectWarn, "warn message")
			gt.S(t, output).Contains("error message")
		})
	}
}

func TestParseLevel(t *testing.T) {
	lv, err := logging.ParseLevel("Warning")
	gt.NoError(t, err)
	gt.Equal(t, lv, slog.LevelWarn)

	lv, err = logging.ParseLevel("")
	gt.NoError(t, err)
	gt.Equal(t, lv, slog.LevelInfo)

	_, err = logging.ParseLevel("verbose")
	gt.Error(t, err)
	gt.True(t, errors.Is(err, logging.ErrInvalidLevel))
}

func TestWithAndFrom(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.New("debug", buf)

	ctx := logging.With(context.Background(), logger)
	gt.Equal(t, logging.From(ctx), logger)

	logging.From(ctx).Info("context message")
	gt.S(t, buf.String()).Contains("context message")
}

func TestWithAttrs(t *testing.T) {
	buf := &bytes.Buffer{}
	ctx := logging.With(context.Background(), logging.New("info", buf))
	ctx = logging.WithAttrs(ctx, "epoch", 42)

	logging.From(ctx).Info("stamped")
	output := buf.String()
	gt.S(t, output).Contains("stamped")
	gt.S(t, output).Contains("epoch")
	gt.S(t, output).Contains("42")
}

func TestFromUsesDefault(t *testing.T) {
	original := logging.Default()
	defer logging.SetDefault(original)

	buf := &bytes.Buffer{}
	customDefault := logging.New("warn", buf)
	logging.SetDefault(customDefault)

	retrieved := logging.From(context.Background())
	gt.Equal(t, retrieved, customDefault)

	retrieved.Warn("warning from default")
	gt.S(t, buf.String()).Contains("warning from default")
}
