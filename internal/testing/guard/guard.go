// Package guard is imported for its side effects by tests that touch the
// binaries or the runtime configuration. It forces test mode and points
// Redis at a closed port so nothing dials real infrastructure.
package guard

import "os"

var defaults = map[string]string{
	"PLAYBOOKS_TEST_MODE": "1",
	"REDIS_ADDR":          "127.0.0.1:0",
}

func init() {
	for key, value := range defaults {
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}
