package models

import "time"

// MatchRecord is one row of the results log.
type MatchRecord struct {
	P1Name    string // Player one nickname
	P1Char    string // Player one character and moon, e.g. "Ragna-C"
	P1Score   int    // Rounds won by player one (0-3)
	P2Name    string // Player two (opponent) nickname
	P2Char    string // Player two character and moon
	P2Score   int    // Rounds won by player two (0-3)
	Timestamp int64  // Unix seconds, as written by the match recorder
	Line      int    // 1-based line number in the results log
}

// Time returns the record timestamp as a time.Time in loc.
func (r MatchRecord) Time(loc *time.Location) time.Time {
	return time.Unix(r.Timestamp, 0).In(loc)
}

// ReplayFile is a replay found in the replay directory.
type ReplayFile struct {
	Name      string // Base file name, e.g. "foo_231114120142.rep"
	Path      string // Full path on disk
	Timestamp int64  // Unix seconds decoded from the file name
}

// Correlation pairs a replay with the log row it was matched to.
type Correlation struct {
	Replay      ReplayFile
	Record      MatchRecord
	SkewSeconds int64  // Replay timestamp minus record timestamp
	Destination string // Planned destination path
}

// Summary reports the outcome of one organize run.
type Summary struct {
	RunID      string
	DryRun     bool
	Scanned    int // Replay files found
	Moved      int // Replays moved (or planned, for a dry run)
	Unparsable int // Replays whose name carries no timestamp
	Unmatched  int // Replays with no log row inside the skew window
	Failed     int // Replays whose move failed
	Duplicates int // Replays matched to a log row another replay already used
	Moves      []Move
}

// Skipped is the number of replays left in place.
func (s *Summary) Skipped() int {
	return s.Unparsable + s.Unmatched + s.Failed
}
