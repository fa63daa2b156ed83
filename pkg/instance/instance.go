package instance

import "os"

// GetID identifies the running process in logs. Heroku sets DYNO; workers
// may set WORKER_ID explicitly.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
