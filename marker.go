package handover

import (
	"fmt"
	"os"
	"time"

	"github.com/euank/filelock"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"
)

// DefaultMarkerPath is where the supervisor looks for the completion marker.
// Its presence tells the supervisor the old instance finished draining; if it
// does not appear within the handover timeout, the old instance is killed.
const DefaultMarkerPath = "/tmp/balena/handover-complete"

type markerWriter struct {
	path  string
	clock clock.PassiveClock
}

// write replaces the marker's content with a timestamped message. The file
// is locked for the duration of the write so a concurrent writer cannot
// interleave with it. The parent directory is provided by the supervisor and
// is not created.
func (m *markerWriter) write() error {
	content := fmt.Sprintf("Shutting down at %s\n", m.clock.Now().Format(time.RFC1123Z))

	f, err := os.OpenFile(m.path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "error opening marker file")
	}
	defer f.Close()

	lk, err := filelock.ExclusiveLock(m.path, filelock.RegFile)
	if err != nil {
		return errors.Wrapf(err, "error locking marker file")
	}
	defer lk.Close()

	if err := f.Truncate(0); err != nil {
		return errors.Wrapf(err, "error truncating marker file")
	}
	if _, err := f.WriteString(content); err != nil {
		return errors.Wrapf(err, "error writing marker file")
	}
	return f.Sync()
}
