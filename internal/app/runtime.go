package app

import (
	"os"
	"strconv"
)

const testModeEnv = "PLAYBOOKS_TEST_MODE"

// InTestMode reports whether PLAYBOOKS_TEST_MODE is set to a true value, in
// which case the binaries return before opening connections.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
}
