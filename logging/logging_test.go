package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerLevelsAndFields(t *testing.T) {
	assert := assert.New(t)

	var out, errOut bytes.Buffer
	logger := NewLogger(&out, &errOut, false)

	logger.Debug("hidden")
	assert.Empty(out.String())

	logger.SetLevel(DebugLevel)
	scoped := logger.WithFields(Fields{"component": "key_estimator", "windows": 4})
	scoped.Debug("sequence estimated", Fields{"modulations": 1})
	assert.Contains(out.String(), "[DEBUG] sequence estimated component=key_estimator modulations=1 windows=4")

	scoped.Error(errors.New("boom"), "projection failed")
	assert.Contains(errOut.String(), "[ERROR] projection failed: boom component=key_estimator")
}

func TestFatalUsesExitHook(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewLogger(&out, &errOut, false)
	code := -1
	logger.exit = func(c int) { code = c }

	logger.Fatal(errors.New("bad"), "cannot continue")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "[FATAL] cannot continue: bad")
}

func TestContextFields(t *testing.T) {
	var out, errOut bytes.Buffer
	logger := NewLogger(&out, &errOut, false)

	ctx := ContextWithFields(context.Background(), Fields{"run_id": "abc"})
	ctx = ContextWithFields(ctx, Fields{"stage": "labels"})
	fields, ok := FieldsFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, Fields{"run_id": "abc", "stage": "labels"}, fields)

	logger.WithContext(ctx).Info("done")
	assert.Contains(t, out.String(), "run_id=abc stage=labels")
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{"debug": DebugLevel, "WARN": WarnLevel, "": InfoLevel, "error": ErrorLevel} {
		got, err := ParseLevel(name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	defer SetGlobalLogger(prev)

	SetGlobalLogger(nil)
	assert.IsType(t, &NoOpLogger{}, GetGlobalLogger())
	Info("ignored")
}
