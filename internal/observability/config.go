package observability

import (
	"strings"

	"github.com/smallbiznis/chargeview/internal/config"
)

const (
	protocolGRPC = "grpc"
	protocolHTTP = "http"
)

// Config is the normalized telemetry view of config.Config.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled     bool
	OtelEndpoint    string
	TracesProtocol  string
	MetricsProtocol string
	SamplingRatio   float64
}

func NewConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "chargeview"
	}
	t := cfg.Telemetry
	return Config{
		ServiceName:     serviceName,
		Environment:     strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:         strings.TrimSpace(cfg.AppVersion),
		LogLevel:        normalizeLevel(t.LogLevel),
		LogFormat:       normalizeFormat(t.LogFormat),
		OtelEnabled:     t.OtelEnabled && strings.TrimSpace(t.OtelEndpoint) != "",
		OtelEndpoint:    strings.TrimSpace(t.OtelEndpoint),
		TracesProtocol:  normalizeProtocol(t.TracesProtocol),
		MetricsProtocol: normalizeProtocol(t.MetricsProtocol),
		SamplingRatio:   clampRatio(t.SamplingRatio),
	}
}

// Debug turns on verbose request logs and stack traces.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func normalizeLevel(level string) string {
	switch level = strings.ToLower(strings.TrimSpace(level)); level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	default:
		return "info"
	}
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

// normalizeProtocol folds the OTLP spellings the collectors accept into grpc or http.
func normalizeProtocol(protocol string) string {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf", "http/json":
		return protocolHTTP
	default:
		return protocolGRPC
	}
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	default:
		return ratio
	}
}
