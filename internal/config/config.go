// Package config provides configuration helpers for go-quadwalk commands.
package config

import "os"

// Default endpoints for the external simulator bridge and control surfaces.
const (
	DefaultBridgeAddr   = "127.0.0.1:12345"
	DefaultBridgeListen = ":12346"
	DefaultWebPort      = "8090"
	DefaultMQTTBroker   = "tcp://localhost:1883"
)

// env returns the value of key, falling back to def when unset.
func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// LogLevel returns the log level from LOG_LEVEL, defaulting to "info".
func LogLevel() string {
	return env("LOG_LEVEL", "info")
}

// BridgeAddr returns the simulator command endpoint from BRIDGE_ADDR.
func BridgeAddr() string {
	return env("BRIDGE_ADDR", DefaultBridgeAddr)
}

// BridgeListen returns the simulator status listen address from BRIDGE_LISTEN.
func BridgeListen() string {
	return env("BRIDGE_LISTEN", DefaultBridgeListen)
}

// WebPort returns the web API port from WEB_PORT.
func WebPort() string {
	return env("WEB_PORT", DefaultWebPort)
}

// MQTTBroker returns the telemetry broker URL from MQTT_BROKER.
func MQTTBroker() string {
	return env("MQTT_BROKER", DefaultMQTTBroker)
}
