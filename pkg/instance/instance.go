package instance

import (
	"os"
	"strings"
)

const fallbackID = "recovero-0"

// ID names this process for cron lock ownership and logs. RECOVERO_INSTANCE_ID
// wins, then the hostname.
func ID() string {
	if id := strings.TrimSpace(os.Getenv("RECOVERO_INSTANCE_ID")); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
