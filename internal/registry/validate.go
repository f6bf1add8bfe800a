package registry

import (
	"fmt"
	"regexp"
	"strings"
)

var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// ValidationError reports a malformed device field. The registry is left
// unchanged whenever one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidIPv4 reports whether address is a dotted-quad IPv4 address.
func ValidIPv4(address string) bool {
	return ipv4Pattern.MatchString(address)
}

// Validate trims and checks a device name and address.
func Validate(name, address string) (string, string, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)

	if name == "" {
		return "", "", &ValidationError{Field: "name", Reason: "Device name is required"}
	}
	if address == "" {
		return "", "", &ValidationError{Field: "address", Reason: "IP address is required"}
	}
	if !ValidIPv4(address) {
		return "", "", &ValidationError{Field: "address", Reason: "Please enter a valid IP address"}
	}
	return name, address, nil
}
