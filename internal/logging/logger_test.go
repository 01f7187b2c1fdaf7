package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(testContext *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, expected := range testCases {
		if actual := ParseLevel(input); actual != expected {
			testContext.Fatalf("ParseLevel(%q) = %s, want %s", input, actual, expected)
		}
	}
}

func TestLoggersHonorLevel(testContext *testing.T) {
	logger, err := NewLogger("error")
	if err != nil {
		testContext.Fatalf("failed to build logger: %v", err)
	}
	if logger.Core().Enabled(zapcore.WarnLevel) {
		testContext.Fatalf("expected warn to be disabled at error level")
	}

	console, err := NewConsoleLogger("debug")
	if err != nil {
		testContext.Fatalf("failed to build console logger: %v", err)
	}
	if !console.Core().Enabled(zapcore.DebugLevel) {
		testContext.Fatalf("expected debug to be enabled")
	}
}
