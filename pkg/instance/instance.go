// Package instance names the running process for claims and logs.
package instance

import (
	"os"
	"strings"
)

const fallbackID = "bakehouse-0"

// ID returns BAKEHOUSE_INSTANCE_ID, falling back to the hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("BAKEHOUSE_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
