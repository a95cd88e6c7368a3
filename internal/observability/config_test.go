package observability

import (
	"testing"

	"github.com/smallbiznis/chargeview/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewConfigNormalizesTelemetry(t *testing.T) {
	cfg := NewConfig(config.Config{
		AppVersion:  " 1.2.0 ",
		Environment: "Production",
		Telemetry: config.TelemetryConfig{
			LogLevel:        "WARNING",
			LogFormat:       "Console",
			OtelEnabled:     true,
			OtelEndpoint:    " collector:4317 ",
			TracesProtocol:  "http/protobuf",
			MetricsProtocol: "",
			SamplingRatio:   4,
		},
	})

	assert.Equal(t, "chargeview", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "collector:4317", cfg.OtelEndpoint)
	assert.Equal(t, protocolHTTP, cfg.TracesProtocol)
	assert.Equal(t, protocolGRPC, cfg.MetricsProtocol)
	assert.Equal(t, 1.0, cfg.SamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestNewConfigDisablesOtelWithoutEndpoint(t *testing.T) {
	cfg := NewConfig(config.Config{
		Telemetry: config.TelemetryConfig{OtelEnabled: true, SamplingRatio: -1, LogLevel: "verbose"},
	})
	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, 0.0, cfg.SamplingRatio)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestConfigDebug(t *testing.T) {
	assert.True(t, Config{LogLevel: "debug", Environment: "production"}.Debug())
	assert.True(t, Config{LogLevel: "info", Environment: "local"}.Debug())
	assert.False(t, Config{LogLevel: "info", Environment: "staging"}.Debug())
}
