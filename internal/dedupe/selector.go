// Package dedupe finds stale duplicate host enrollments.
//
// Records are grouped by hostname, each group is sorted oldest first with a
// stable sort, and everything except the freshest record is selected. When
// several records share the newest timestamp the one appearing last in the
// input is kept.
package dedupe

import (
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// lastSeenLayouts are tried in order when parsing a last-seen value
var lastSeenLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseLastSeen parses a last-seen timestamp. Values without a zone are UTC.
func ParseLastSeen(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range lastSeenLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Newf("unrecognised timestamp %q", value)
}

// Observer receives selection events once a selection has succeeded
type Observer interface {
	// Selected is called for each record chosen for deactivation, in output order
	Selected(sel Selection)
	// Skipped is called for records that were left out of grouping
	Skipped(rec HostRecord, reason string)
}

// SelectedFunc adapts a plain function into an Observer that ignores skips
type SelectedFunc func(Selection)

// Selected implements Observer
func (f SelectedFunc) Selected(sel Selection) { f(sel) }

// Skipped implements Observer
func (f SelectedFunc) Skipped(HostRecord, string) {}

// Selector computes stale duplicates. Records with an empty hostname take
// no part in grouping: they are reported to observers through Skipped and
// never selected, so a hostname with n enrollments yields n-1 selections
// only when the hostname is non-empty.
type Selector struct {
	observers []Observer
}

// Option configures a Selector
type Option func(*Selector)

// WithObserver attaches an observer
func WithObserver(o Observer) Option {
	return func(s *Selector) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// NewSelector creates a Selector
func NewSelector(opts ...Option) *Selector {
	s := &Selector{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select returns every record that is not the freshest for its hostname.
// Groups appear in the order their hostname first occurs in records; within
// a group the output is oldest first.
func (s *Selector) Select(records []HostRecord) ([]Selection, error) {
	groups, err := s.Groups(records)
	if err != nil {
		return nil, err
	}

	var selected []Selection
	for _, g := range groups {
		selected = append(selected, g.Stale...)
	}

	for _, sel := range selected {
		for _, o := range s.observers {
			o.Selected(sel)
		}
	}
	return selected, nil
}

// Groups returns the duplicate hostname groups found in records. Hostnames
// that occur once are not returned.
func (s *Selector) Groups(records []HostRecord) ([]Group, error) {
	parsed := make([]Selection, len(records))
	var invalid []InvalidRecord
	for i, rec := range records {
		ts, err := ParseLastSeen(rec.LastSeen)
		if err != nil {
			invalid = append(invalid, InvalidRecord{Record: rec, Err: err})
			continue
		}
		parsed[i] = Selection{
			Hostname:    rec.Hostname,
			ID:          rec.ID,
			LastSeen:    ts,
			RawLastSeen: rec.LastSeen,
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidRecordError{Records: invalid}
	}

	var order []string
	members := make(map[string][]Selection)
	for i, rec := range records {
		if rec.Hostname == "" {
			s.skipped(rec, "empty hostname")
			continue
		}
		if _, ok := members[rec.Hostname]; !ok {
			order = append(order, rec.Hostname)
		}
		members[rec.Hostname] = append(members[rec.Hostname], parsed[i])
	}

	var groups []Group
	for _, hostname := range order {
		m := members[hostname]
		if len(m) < 2 {
			continue
		}
		slices.SortStableFunc(m, func(a, b Selection) int {
			return a.LastSeen.Compare(b.LastSeen)
		})
		groups = append(groups, Group{
			Hostname: hostname,
			Stale:    m[:len(m)-1],
			Kept:     m[len(m)-1],
		})
	}
	return groups, nil
}

func (s *Selector) skipped(rec HostRecord, reason string) {
	for _, o := range s.observers {
		o.Skipped(rec, reason)
	}
}

// Select runs a Selector without observers
func Select(records []HostRecord) ([]Selection, error) {
	return NewSelector().Select(records)
}

// Groups runs a Selector without observers and returns the duplicate groups
func Groups(records []HostRecord) ([]Group, error) {
	return NewSelector().Groups(records)
}

// IDs returns the device ids of the selections, in order
func IDs(selections []Selection) []string {
	ids := make([]string, 0, len(selections))
	for _, sel := range selections {
		ids = append(ids, sel.ID)
	}
	return ids
}
