package singleinstance

import (
	"os"
	"strconv"
)

const (
	PortStartEnv = "SINGLEINSTANCE_PORT_START"
	PortEndEnv   = "SINGLEINSTANCE_PORT_END"

	defaultPortStart = 49500
	defaultPortEnd   = 49550
	minPort          = 1024
	maxPort          = 65535
)

// getPortRange returns the inclusive range from the environment, clamped to
// unprivileged ports. Bad values fall back to the defaults.
func getPortRange() (int, int) {
	start := envPort(PortStartEnv, defaultPortStart)
	end := envPort(PortEndEnv, defaultPortEnd)
	start = max(start, minPort)
	end = min(end, maxPort)
	if end < start {
		start, end = end, start
	}
	return start, end
}

func envPort(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetPortRangeForDebug exposes the effective range for logging.
func GetPortRangeForDebug() (int, int) { return getPortRange() }
