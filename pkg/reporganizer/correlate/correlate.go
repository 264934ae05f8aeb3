// Package correlate pairs replay files with results log rows by timestamp.
//
// The match recorder and the replay writer use independent clocks. The
// replay timestamp is never earlier than the log timestamp and usually
// trails it by 0 to ~22 seconds, so an exact lookup almost never hits.
// Find runs a binary search that also accepts a record the target
// overshoots by less than the skew tolerance.
package correlate

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/himanishpuri/RepOrganizer/pkg/models"
)

// DefaultSkewTolerance is the largest accepted lag of a replay behind its
// log row, exclusive. A replay lagging by this much or more will not match.
const DefaultSkewTolerance = 40 * time.Second

// replayLayout is the YYMMDDHHMMSS stamp the game appends to replay names.
const replayLayout = "060102150405"

var replayPattern = regexp.MustCompile(`^.*?_(\d{12})\.rep$`)

// ErrNoCorrelation is returned when no log row lies inside the skew window.
var ErrNoCorrelation = errors.New("no matching results log entry")

// UnparsableFilenameError is returned for replay names without a valid
// _YYMMDDHHMMSS.rep suffix.
type UnparsableFilenameError struct {
	Name string
	Err  error
}

func (e *UnparsableFilenameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot read a date from replay file name %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("cannot read a date from replay file name %q", e.Name)
}

func (e *UnparsableFilenameError) Unwrap() error {
	return e.Err
}

// ParseReplayTimestamp extracts the local-time stamp embedded in a replay
// file name and converts it to Unix seconds.
func ParseReplayTimestamp(name string, loc *time.Location) (int64, error) {
	base := filepath.Base(name)
	m := replayPattern.FindStringSubmatch(base)
	if m == nil {
		return 0, &UnparsableFilenameError{Name: base}
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(replayLayout, m[1], loc)
	if err != nil {
		return 0, &UnparsableFilenameError{Name: base, Err: err}
	}
	return t.Unix(), nil
}

// Find returns the record matching target from records, which must be
// sorted ascending by Timestamp.
//
// A record matches when it equals target, or when target is later than it
// by less than tolerance. A record later than target never matches.
func Find(records []models.MatchRecord, target int64, tolerance time.Duration) (models.MatchRecord, error) {
	tol := int64(tolerance / time.Second)

	lo, hi := 0, len(records)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		t := records[mid].Timestamp

		switch {
		case target == t:
			return records[mid], nil
		case target > t:
			if target-t < tol {
				return records[mid], nil
			}
			lo = mid + 1
		default:
			// The replay clock never runs ahead of the log clock.
			hi = mid - 1
		}
	}
	return models.MatchRecord{}, ErrNoCorrelation
}

// Correlator resolves replay file names against one sorted results log.
type Correlator struct {
	records   []models.MatchRecord
	tolerance time.Duration
	loc       *time.Location
}

// New returns a Correlator over records, which must already be sorted.
// A non-positive tolerance selects DefaultSkewTolerance and a nil location
// selects time.Local.
func New(records []models.MatchRecord, tolerance time.Duration, loc *time.Location) *Correlator {
	if tolerance <= 0 {
		tolerance = DefaultSkewTolerance
	}
	if loc == nil {
		loc = time.Local
	}
	return &Correlator{records: records, tolerance: tolerance, loc: loc}
}

// Correlate decodes the timestamp from the replay at path and finds its
// log row.
func (c *Correlator) Correlate(path string) (models.Correlation, error) {
	ts, err := ParseReplayTimestamp(path, c.loc)
	if err != nil {
		return models.Correlation{}, err
	}

	replay := models.ReplayFile{
		Name:      filepath.Base(path),
		Path:      path,
		Timestamp: ts,
	}

	rec, err := Find(c.records, ts, c.tolerance)
	if err != nil {
		return models.Correlation{Replay: replay}, fmt.Errorf("%s: %w", replay.Name, err)
	}

	return models.Correlation{
		Replay:      replay,
		Record:      rec,
		SkewSeconds: ts - rec.Timestamp,
	}, nil
}

// Tolerance reports the skew tolerance in use.
func (c *Correlator) Tolerance() time.Duration {
	return c.tolerance
}
