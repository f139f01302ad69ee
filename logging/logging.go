package logging

import (
	"github.com/cyverse-de/go-mod/logging"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var Log = logging.Log.WithFields(logrus.Fields{
	"service": "dbricks-groups",
})

// NewRun returns a fresh run ID and an entry tagged with it, so every line a
// single report or recreate pass emits can be correlated.
func NewRun(entry *logrus.Entry) (string, *logrus.Entry) {
	runID := uuid.NewString()
	return runID, entry.WithField("run_id", runID)
}
