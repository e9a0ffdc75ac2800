package instance

import "os"

// GetID returns the process instance identifier used in log fields. It
// prefers UPORDERS_INSTANCE_ID, then the platform DYNO name, then the host name.
func GetID() string {
	if id := os.Getenv("UPORDERS_INSTANCE_ID"); id != "" {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
