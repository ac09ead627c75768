package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// safeRun executes fn with panic recovery, returning any panic as an error.
// Sink calls and timer callbacks go through it so one failure never ends the run.
func safeRun(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
			logrus.Errorf("recovered panic: %v", rec)
		}
	}()
	return fn()
}
