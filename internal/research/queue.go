// Package research implements the technology tree: a prerequisite
// graph with a single active research slot and aggregated effects from
// completed technologies.
package research

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Status is the lifecycle state of one technology.
type Status uint8

const (
	StatusLocked Status = iota
	StatusResearchable
	StatusInProgress
	StatusResearched
)

func (s Status) String() string {
	switch s {
	case StatusLocked:
		return "locked"
	case StatusResearchable:
		return "researchable"
	case StatusInProgress:
		return "in_progress"
	case StatusResearched:
		return "researched"
	default:
		return "unknown"
	}
}

// Technology is one entry of the catalog. The definition fields are
// immutable after load; Researched and Progress are the only mutable
// state.
type Technology struct {
	ID               string             `yaml:"id"`
	Name             string             `yaml:"name"`
	Description      string             `yaml:"description"`
	Category         string             `yaml:"category"`
	Cost             float64            `yaml:"cost"`
	ResearchTime     int                `yaml:"research_time"`
	Prerequisites    []string           `yaml:"prerequisites"`
	Effects          map[string]float64 `yaml:"effects"`
	UnlocksBuildings []string           `yaml:"unlocks_buildings"`

	Researched bool `yaml:"-"`
	Progress   int  `yaml:"-"`
}

// Queue owns all technologies and the single research slot.
type Queue struct {
	techs map[string]*Technology
	order []string

	current       string
	pointsPerTurn int
	totalInvested float64

	logger *zap.Logger
}

// NewQueue loads and validates the embedded technology catalog.
func NewQueue(logger *zap.Logger) (*Queue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var doc struct {
		Technologies []*Technology `yaml:"technologies"`
	}
	if err := yaml.Unmarshal(catalogYAML, &doc); err != nil {
		return nil, eris.Wrap(err, "decode technology catalog")
	}
	q := &Queue{
		techs:         make(map[string]*Technology, len(doc.Technologies)),
		pointsPerTurn: 1,
		logger:        logger.Named("research"),
	}
	for _, t := range doc.Technologies {
		if t.ID == "" {
			return nil, eris.New("technology with empty id in catalog")
		}
		if _, dup := q.techs[t.ID]; dup {
			return nil, eris.Errorf("duplicate technology id %q", t.ID)
		}
		if t.ResearchTime <= 0 {
			return nil, eris.Errorf("technology %q has non-positive research time", t.ID)
		}
		q.techs[t.ID] = t
		q.order = append(q.order, t.ID)
	}
	for _, t := range doc.Technologies {
		for _, p := range t.Prerequisites {
			if _, ok := q.techs[p]; !ok {
				return nil, eris.Errorf("technology %q requires unknown prerequisite %q", t.ID, p)
			}
		}
	}
	return q, nil
}

// Technology returns a copy of one catalog entry.
func (q *Queue) Technology(id string) (Technology, bool) {
	t, ok := q.techs[id]
	if !ok {
		return Technology{}, false
	}
	return *t, true
}

// Status returns the lifecycle state of one technology. Unknown ids
// report as locked.
func (q *Queue) Status(id string) Status {
	t, ok := q.techs[id]
	if !ok {
		return StatusLocked
	}
	switch {
	case t.Researched:
		return StatusResearched
	case id == q.current:
		return StatusInProgress
	case q.prerequisitesMet(t):
		return StatusResearchable
	default:
		return StatusLocked
	}
}

func (q *Queue) prerequisitesMet(t *Technology) bool {
	for _, p := range t.Prerequisites {
		if pre, ok := q.techs[p]; !ok || !pre.Researched {
			return false
		}
	}
	return true
}

// CanResearch reports whether research on id could start now, with a
// reason when it cannot.
func (q *Queue) CanResearch(id string) (bool, string) {
	t, ok := q.techs[id]
	if !ok {
		return false, fmt.Sprintf("unknown technology %q", id)
	}
	if t.Researched {
		return false, fmt.Sprintf("%s is already researched", t.Name)
	}
	if q.current != "" {
		cur := q.techs[q.current]
		return false, fmt.Sprintf("research slot occupied by %s", cur.Name)
	}
	for _, p := range t.Prerequisites {
		if pre := q.techs[p]; !pre.Researched {
			return false, fmt.Sprintf("prerequisite %s not researched", pre.Name)
		}
	}
	return true, ""
}

// StartResearch occupies the slot with id. Investment (already debited
// by the caller) buys extra research points: 1 + investment/1000 per
// turn, integer division, for this research only.
func (q *Queue) StartResearch(id string, investment float64) bool {
	if ok, reason := q.CanResearch(id); !ok {
		q.logger.Debug("research rejected", zap.String("technology", id), zap.String("reason", reason))
		return false
	}
	if investment < 0 {
		investment = 0
	}
	q.current = id
	q.pointsPerTurn = 1 + int(investment)/1000
	q.totalInvested += investment
	q.logger.Info("research started",
		zap.String("technology", id),
		zap.Int("points_per_turn", q.pointsPerTurn))
	return true
}

// Advance adds one turn of progress to the in-progress technology.
// When it completes, the slot is freed, the point rate resets to 1 and
// the finished technology is returned for the caller to apply.
func (q *Queue) Advance() *Technology {
	if q.current == "" {
		return nil
	}
	t := q.techs[q.current]
	t.Progress += q.pointsPerTurn
	if t.Progress < t.ResearchTime {
		return nil
	}
	t.Researched = true
	t.Progress = t.ResearchTime
	q.current = ""
	q.pointsPerTurn = 1
	q.logger.Info("research completed", zap.String("technology", t.ID))
	done := *t
	return &done
}

// Current returns the in-progress technology, if any.
func (q *Queue) Current() (Technology, bool) {
	if q.current == "" {
		return Technology{}, false
	}
	return *q.techs[q.current], true
}

// CurrentID returns the id occupying the research slot, "" when free.
func (q *Queue) CurrentID() string { return q.current }

// PointsPerTurn returns the active research point rate.
func (q *Queue) PointsPerTurn() int { return q.pointsPerTurn }

// TotalInvested returns the cumulative currency put into research.
func (q *Queue) TotalInvested() float64 { return q.totalInvested }

// Effects sums the effect maps of every researched technology.
func (q *Queue) Effects() map[string]float64 {
	out := make(map[string]float64)
	for _, t := range q.techs {
		if !t.Researched {
			continue
		}
		for k, v := range t.Effects {
			out[k] += v
		}
	}
	return out
}

// UnlockedBuildings lists building types made available by researched
// technologies, sorted for stable output.
func (q *Queue) UnlockedBuildings() []string {
	seen := make(map[string]struct{})
	for _, t := range q.techs {
		if !t.Researched {
			continue
		}
		for _, b := range t.UnlocksBuildings {
			seen[b] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for b := range seen {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

// Available lists technologies whose prerequisites are met and which
// are not yet researched, in catalog order.
func (q *Queue) Available() []Technology {
	var out []Technology
	for _, id := range q.order {
		t := q.techs[id]
		if !t.Researched && id != q.current && q.prerequisitesMet(t) {
			out = append(out, *t)
		}
	}
	return out
}

// ResearchedList lists completed technologies in catalog order.
func (q *Queue) ResearchedList() []Technology {
	var out []Technology
	for _, id := range q.order {
		if t := q.techs[id]; t.Researched {
			out = append(out, *t)
		}
	}
	return out
}

// ResearchedCount returns the number of completed technologies.
func (q *Queue) ResearchedCount() int {
	var n int
	for _, t := range q.techs {
		if t.Researched {
			n++
		}
	}
	return n
}

// TechState is the persisted slice of one technology's mutable state.
type TechState struct {
	ID         string `db:"id"`
	Researched bool   `db:"researched"`
	Progress   int    `db:"progress"`
}

// States returns the mutable state of every technology in catalog order.
func (q *Queue) States() []TechState {
	out := make([]TechState, 0, len(q.order))
	for _, id := range q.order {
		t := q.techs[id]
		out = append(out, TechState{ID: id, Researched: t.Researched, Progress: t.Progress})
	}
	return out
}

// RestoreState overwrites one technology's progress from a save.
// States for ids no longer in the catalog are dropped.
func (q *Queue) RestoreState(s TechState) {
	t, ok := q.techs[s.ID]
	if !ok {
		q.logger.Warn("dropping saved state for unknown technology", zap.String("technology", s.ID))
		return
	}
	t.Researched = s.Researched
	t.Progress = s.Progress
}

// RestoreSlot restores the active research slot from a save.
func (q *Queue) RestoreSlot(id string, pointsPerTurn int, totalInvested float64) {
	if id != "" {
		if _, ok := q.techs[id]; !ok {
			q.logger.Warn("dropping saved research slot for unknown technology", zap.String("technology", id))
			id = ""
		}
	}
	q.current = id
	if pointsPerTurn < 1 {
		pointsPerTurn = 1
	}
	q.pointsPerTurn = pointsPerTurn
	if totalInvested > 0 {
		q.totalInvested = totalInvested
	}
}

// Reset clears all research progress and frees the slot.
func (q *Queue) Reset() {
	for _, t := range q.techs {
		t.Researched = false
		t.Progress = 0
	}
	q.current = ""
	q.pointsPerTurn = 1
	q.totalInvested = 0
}
