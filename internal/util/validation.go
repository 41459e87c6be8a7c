package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidatePort validates a port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got: %d", port)
	}
	return nil
}

// ValidateNonEmpty validates that a string is not empty.
func ValidateNonEmpty(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}

// ValidateHostPort validates a "host:port" collector reference. Both
// parts are required.
func ValidateHostPort(hostPort string) error {
	if hostPort == "" {
		return fmt.Errorf("host:port reference cannot be empty")
	}

	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return fmt.Errorf("%q is not a valid host:port reference", hostPort)
	}

	if err := ValidateHostname(host); err != nil {
		return err
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port in %q: %s", hostPort, portStr)
	}

	return ValidatePort(port)
}

// ValidateHostname validates a hostname or IP address.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}

	if net.ParseIP(hostname) != nil {
		return nil
	}

	if len(hostname) > 253 {
		return fmt.Errorf("hostname too long: %d characters (max 253)", len(hostname))
	}

	labels := strings.Split(hostname, ".")
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("hostname has empty label")
		}
		if len(label) > 63 {
			return fmt.Errorf("hostname label too long: %d characters (max 63)", len(label))
		}
		for i, c := range label {
			if !isValidHostnameChar(c, i == 0, i == len(label)-1) {
				return fmt.Errorf("invalid character in hostname: %c", c)
			}
		}
	}

	return nil
}

// isValidHostnameChar checks if a character is valid in a hostname label.
func isValidHostnameChar(c rune, isFirst, isLast bool) bool {
	if c >= 'a' && c <= 'z' {
		return true
	}
	if c >= 'A' && c <= 'Z' {
		return true
	}
	if c >= '0' && c <= '9' {
		return true
	}
	if c == '-' && !isFirst && !isLast {
		return true
	}
	// Underscore shows up in cluster-internal service names.
	if c == '_' && !isFirst && !isLast {
		return true
	}
	return false
}

// ValidateSamplingRate validates a sampling rate value (0.0-1.0).
func ValidateSamplingRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("sampling rate must be between 0.0 and 1.0, got: %g", rate)
	}
	return nil
}
