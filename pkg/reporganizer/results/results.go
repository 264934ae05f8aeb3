// Package results loads the match recorder's results log.
//
// The log is comma-delimited, one row per finished match, no header:
//
//	name,char+moon,score,name,char+moon,score,unix-timestamp
//
// Load decodes it lossily, validates every row and returns the records
// sorted by timestamp.
package results

import (
	"cmp"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/himanishpuri/RepOrganizer/pkg/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	// FieldCount is the number of fields in every results row.
	FieldCount = 7
	// TimestampDigits is the exact width of the timestamp field.
	TimestampDigits = 10
	// MaxScore is the highest valid round score.
	MaxScore = 3
)

var (
	ErrLogNotFound = errors.New("results log not found")
	ErrEmptyLog    = errors.New("results log is empty")
)

// Load reads, validates and sorts the results log at path.
func Load(path string) ([]models.MatchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLogNotFound, path)
		}
		return nil, fmt.Errorf("opening results log: %w", err)
	}
	defer f.Close()

	records, err := Parse(f)
	if err != nil {
		if errors.Is(err, ErrEmptyLog) {
			return nil, fmt.Errorf("%w: %s", ErrEmptyLog, path)
		}
		return nil, err
	}
	return records, nil
}

// Parse validates every row of r and returns the records sorted ascending by
// timestamp. Rows with equal timestamps keep their file order.
//
// All malformed rows are reported together as MalformedLogErrors.
func Parse(r io.Reader) ([]models.MatchRecord, error) {
	reader := csv.NewReader(NewDecoder(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var (
		records   []models.MatchRecord
		malformed MalformedLogErrors
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				malformed = append(malformed, &MalformedLogError{
					Line:    perr.Line,
					Content: strings.Join(row, ","),
					Reason:  perr.Err.Error(),
				})
				continue
			}
			return nil, fmt.Errorf("reading results log: %w", err)
		}

		line, _ := reader.FieldPos(0)
		rec, reasons := parseRow(row)
		if len(reasons) > 0 {
			malformed = append(malformed, &MalformedLogError{
				Line:    line,
				Content: strings.Join(row, ","),
				Reason:  strings.Join(reasons, "; "),
			})
			continue
		}
		rec.Line = line
		records = append(records, rec)
	}

	if len(malformed) > 0 {
		return nil, malformed
	}
	if len(records) == 0 {
		return nil, ErrEmptyLog
	}

	Sort(records)
	return records, nil
}

// Sort orders records ascending by timestamp, keeping the relative order of
// equal timestamps.
func Sort(records []models.MatchRecord) {
	slices.SortStableFunc(records, func(a, b models.MatchRecord) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}

func parseRow(row []string) (models.MatchRecord, []string) {
	if len(row) != FieldCount {
		return models.MatchRecord{}, []string{fmt.Sprintf("expected %d fields, found %d", FieldCount, len(row))}
	}

	var reasons []string
	p1Score, ok := parseScore(row[2])
	if !ok {
		reasons = append(reasons, fmt.Sprintf("player 1 score %q is not a digit between 0 and %d", row[2], MaxScore))
	}
	p2Score, ok := parseScore(row[5])
	if !ok {
		reasons = append(reasons, fmt.Sprintf("player 2 score %q is not a digit between 0 and %d", row[5], MaxScore))
	}
	ts, ok := parseTimestamp(row[6])
	if !ok {
		reasons = append(reasons, fmt.Sprintf("timestamp %q is not a %d-digit number", row[6], TimestampDigits))
	}
	if len(reasons) > 0 {
		return models.MatchRecord{}, reasons
	}

	return models.MatchRecord{
		P1Name:    row[0],
		P1Char:    row[1],
		P1Score:   p1Score,
		P2Name:    row[3],
		P2Char:    row[4],
		P2Score:   p2Score,
		Timestamp: ts,
	}, nil
}

func parseScore(s string) (int, bool) {
	if len(s) != 1 || s[0] < '0' || s[0] > '0'+MaxScore {
		return 0, false
	}
	return int(s[0] - '0'), true
}

func parseTimestamp(s string) (int64, bool) {
	if len(s) != TimestampDigits {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// NewDecoder wraps r so that every rune outside printable ASCII, other than
// tab, carriage return and newline, is dropped. Invalid UTF-8 bytes are
// dropped as well.
func NewDecoder(r io.Reader) io.Reader {
	return transform.NewReader(r, runes.Remove(runes.Predicate(disallowed)))
}

func disallowed(r rune) bool {
	switch {
	case r == '\t', r == '\r', r == '\n':
		return false
	case r >= 0x20 && r <= 0x7e:
		return false
	default:
		return true
	}
}
