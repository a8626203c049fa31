package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestGetLoggerIsNamed(t *testing.T) {
	log := GetLogger("risk.test")
	assert.NotNil(t, log)
	assert.NotNil(t, log.WithField("model", "analytic"))
	assert.NotNil(t, Nop().With("k", "v"))
}
