package instance

import "os"

// GetID returns an identifier for the running process, preferring the
// platform dyno name, then the container hostname.
func GetID() string {
	for _, key := range []string{"DYNO", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return "local"
}
