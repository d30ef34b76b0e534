package dedupe

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// HostRecord is a single agent enrollment as reported by the inventory service
type HostRecord struct {
	ID       string `json:"device_id"`
	Hostname string `json:"hostname"`
	LastSeen string `json:"last_seen"`
}

// Selection is a host record chosen for deactivation
type Selection struct {
	Hostname    string    `json:"hostname"`
	ID          string    `json:"device_id"`
	LastSeen    time.Time `json:"last_seen"`
	RawLastSeen string    `json:"last_seen_raw,omitempty"`
}

// Group is a set of host records sharing a hostname, sorted oldest first
type Group struct {
	Hostname string      `json:"hostname"`
	Stale    []Selection `json:"stale"`
	Kept     Selection   `json:"kept"`
}

// ErrInvalidRecord is the sentinel matched by every InvalidRecordError
var ErrInvalidRecord = errors.New("invalid host record")

// InvalidRecord describes one record whose last-seen value could not be parsed
type InvalidRecord struct {
	Record HostRecord
	Err    error
}

// InvalidRecordError rejects a whole batch of records because at least one
// of them has an unusable last-seen timestamp
type InvalidRecordError struct {
	Records []InvalidRecord
}

// Error implements the error interface
func (e *InvalidRecordError) Error() string {
	parts := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		parts = append(parts, fmt.Sprintf("%s (%s) last_seen=%q", r.Record.Hostname, r.Record.ID, r.Record.LastSeen))
	}
	return fmt.Sprintf("%s: %d record(s) with unparseable last_seen: %s",
		ErrInvalidRecord, len(e.Records), strings.Join(parts, ", "))
}

// Is reports whether target is ErrInvalidRecord
func (e *InvalidRecordError) Is(target error) bool {
	return target == ErrInvalidRecord
}
