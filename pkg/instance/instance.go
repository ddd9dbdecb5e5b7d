package instance

import "os"

// GetID returns the process instance identifier used in logs. It prefers the
// explicit env var, then the platform dyno name, then the hostname.
func GetID() string {
	for _, key := range []string{"RAFFLEHOUSE_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
