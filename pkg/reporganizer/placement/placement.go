// Package placement decides where a correlated replay goes and moves it
// there.
package placement

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/RepOrganizer/pkg/models"
	"github.com/himanishpuri/RepOrganizer/pkg/utils"
)

// DateLayout is the date prefix of organized replay names.
const DateLayout = "2006-01-02-15-04-05"

// Plan is the intended relocation of one replay.
type Plan struct {
	Source      string
	Opponent    string // Sanitized opponent name, also the folder name
	Dir         string // Opponent folder
	Destination string // Preferred destination; Place may pick a numbered variant
}

// Placer builds destinations under Root and performs the moves.
type Placer struct {
	Root     string
	Location *time.Location

	reserved map[string]struct{}
}

// New returns a Placer that files replays under root, rendering dates in
// loc. A nil loc selects time.Local.
func New(root string, loc *time.Location) *Placer {
	if loc == nil {
		loc = time.Local
	}
	return &Placer{Root: root, Location: loc}
}

// FileName renders the organized file name for rec:
//
//	<date>,<p1name>,<p1char>,<p1score>,<p2name>,<p2char>,<p2score>.rep
func FileName(rec models.MatchRecord, loc *time.Location) string {
	return fmt.Sprintf("%s,%s,%s,%d,%s,%s,%d.rep",
		rec.Time(loc).Format(DateLayout),
		SanitizeName(rec.P1Name),
		SanitizeField(rec.P1Char),
		rec.P1Score,
		SanitizeName(rec.P2Name),
		SanitizeField(rec.P2Char),
		rec.P2Score,
	)
}

// Plan computes the destination of the replay at source for rec. Replays
// are grouped by opponent (player two).
func (p *Placer) Plan(source string, rec models.MatchRecord) Plan {
	opponent := SanitizeName(rec.P2Name)
	dir := filepath.Join(p.Root, opponent)
	return Plan{
		Source:      source,
		Opponent:    opponent,
		Dir:         dir,
		Destination: filepath.Join(dir, FileName(rec, p.Location)),
	}
}

// Resolve returns the destination Place would use right now, taking
// existing files into account.
func (p *Placer) Resolve(plan Plan) string {
	return utils.NextFreePath(plan.Destination)
}

// Place creates the opponent folder and renames the replay into it. When
// the destination is taken, a " (n)" suffix is added instead of
// overwriting. It returns the final path.
func (p *Placer) Place(plan Plan) (string, error) {
	if err := utils.MakeDir(plan.Dir); err != nil {
		return "", fmt.Errorf("creating folder for %s: %w", plan.Opponent, err)
	}
	dst := p.Resolve(plan)
	if err := utils.MoveFile(plan.Source, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Reserve picks the destination Place would choose for plan, also avoiding
// paths returned by earlier Reserve calls, and remembers it. Dry runs use
// it to report destinations without touching the disk.
func (p *Placer) Reserve(plan Plan) string {
	if p.reserved == nil {
		p.reserved = make(map[string]struct{})
	}
	dst := plan.Destination
	ext := filepath.Ext(dst)
	stem := strings.TrimSuffix(dst, ext)
	for n := 2; p.taken(dst); n++ {
		dst = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	p.reserved[dst] = struct{}{}
	return dst
}

func (p *Placer) taken(path string) bool {
	if _, ok := p.reserved[path]; ok {
		return true
	}
	return utils.FileExists(path)
}
