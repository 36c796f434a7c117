// Package registry loads, validates, and indexes skill records. The active
// index set lives in an immutable Snapshot behind an atomic pointer, so
// selection requests read lock-free while reloads build a replacement off
// to the side and swap it in atomically.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/logger"
	"github.com/opus67/skillctx/pkg/types/selection"
)

// bytesPerToken is the rough payload-size heuristic used to sanity-check
// declared token costs. Deviations only warn; the declared cost is
// authoritative.
const bytesPerToken = 4

// PatternHit reports one index pattern that matched, with the skill ids
// registered under it.
type PatternHit struct {
	Pattern string
	IDs     []string
}

type fileTypeEntry struct {
	pattern string
	g       glob.Glob // nil for plain suffix patterns
	ids     []string
}

type dirEntry struct {
	pattern    string
	components []string
	anchored   bool
	ids        []string
}

// Snapshot is one immutable, fully-indexed view of the skill corpus.
// All methods are safe for concurrent use.
type Snapshot struct {
	skills      map[string]*selection.Skill
	ordered     []string
	keywords    map[string][]string
	keywordList []string
	fileTypes   []fileTypeEntry
	dirs        []dirEntry
	alwaysOn    []*selection.Skill
	version     uint64
	loadedAt    time.Time
}

// Registry owns the active snapshot and serializes load/reload against it.
type Registry struct {
	mu      sync.Mutex
	snap    atomic.Pointer[Snapshot]
	version atomic.Uint64
}

// New returns a registry with an empty snapshot active.
func New() *Registry {
	r := &Registry{}
	r.snap.Store(emptySnapshot())
	return r
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		skills:   map[string]*selection.Skill{},
		keywords: map[string][]string{},
	}
}

// Load reads records from the source, validates the whole batch, and swaps
// the new snapshot in. On any validation error the batch is rejected
// atomically and the prior snapshot stays active.
func (r *Registry) Load(ctx context.Context, src Source) error {
	records, err := src.Records(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to read skill records")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := buildSnapshot(ctx, records)
	if err != nil {
		return err
	}

	next.version = r.version.Add(1)
	next.loadedAt = time.Now()
	r.snap.Store(next)

	logger.G(ctx).WithField("skills", len(next.skills)).
		WithField("version", next.version).
		Info("skill registry loaded")
	return nil
}

// Reload is Load under its admin-facing name. In-flight requests keep
// reading the old snapshot until they complete.
func (r *Registry) Reload(ctx context.Context, src Source) error {
	return r.Load(ctx, src)
}

// Snapshot returns the active snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.snap.Load()
}

// Get looks up a skill by id in the active snapshot.
func (r *Registry) Get(id string) (*selection.Skill, error) {
	return r.Snapshot().Get(id)
}

// buildSnapshot validates a record batch and constructs the index set.
// Every invalid record is reported, not just the first.
func buildSnapshot(ctx context.Context, records []Record) (*Snapshot, error) {
	snap := emptySnapshot()

	var verr *multierror.Error
	for _, record := range records {
		if record.TokenCost <= 0 {
			verr = multierror.Append(verr, &InvalidCostError{ID: record.ID, Cost: record.TokenCost})
		}

		skill := record.skill()
		if skill.Triggers.Empty() && !skill.AlwaysOn {
			verr = multierror.Append(verr, &EmptyTriggerError{ID: skill.ID})
		}

		if _, exists := snap.skills[skill.ID]; exists {
			verr = multierror.Append(verr, &DuplicateIDError{ID: skill.ID})
			continue
		}
		snap.skills[skill.ID] = skill
		snap.ordered = append(snap.ordered, skill.ID)

		if est := len(skill.Content) / bytesPerToken; est > 0 &&
			(skill.TokenCost > est*8 || skill.TokenCost*8 < est) {
			logger.G(ctx).WithField("skill", skill.ID).
				WithField("declared", skill.TokenCost).
				WithField("estimated", est).
				Warn("declared token cost deviates from payload size")
		}
	}

	for _, id := range snap.ordered {
		skill := snap.skills[id]
		for _, related := range skill.Related {
			if _, ok := snap.skills[related]; !ok {
				verr = multierror.Append(verr, &DanglingRelationError{ID: id, Related: related})
			}
		}
	}

	if err := verr.ErrorOrNil(); err != nil {
		return nil, err
	}

	sort.Strings(snap.ordered)
	if err := snap.buildIndices(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Snapshot) buildIndices() error {
	fileTypes := map[string]*fileTypeEntry{}
	dirs := map[string]*dirEntry{}

	for _, id := range s.ordered {
		skill := s.skills[id]

		if skill.AlwaysOn {
			s.alwaysOn = append(s.alwaysOn, skill)
		}

		for _, keyword := range skill.Triggers.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			s.keywords[keyword] = append(s.keywords[keyword], id)
		}

		for _, pattern := range skill.Triggers.FileTypes {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			entry, ok := fileTypes[pattern]
			if !ok {
				entry = &fileTypeEntry{pattern: pattern}
				if strings.ContainsAny(pattern, "*?[{") {
					// Paths are lowered before matching, so the compiled
					// glob has to be lowered too.
					g, err := glob.Compile(strings.ToLower(pattern))
					if err != nil {
						return errors.Wrapf(err, "skill %q has invalid file pattern %q", id, pattern)
					}
					entry.g = g
				}
				fileTypes[pattern] = entry
			}
			entry.ids = append(entry.ids, id)
		}

		for _, pattern := range skill.Triggers.Directories {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				continue
			}
			entry, ok := dirs[pattern]
			if !ok {
				entry = &dirEntry{
					pattern:    pattern,
					anchored:   strings.HasPrefix(pattern, "/"),
					components: splitComponents(pattern),
				}
				dirs[pattern] = entry
			}
			entry.ids = append(entry.ids, id)
		}
	}

	sort.Slice(s.alwaysOn, func(i, j int) bool {
		if s.alwaysOn[i].Tier != s.alwaysOn[j].Tier {
			return s.alwaysOn[i].Tier < s.alwaysOn[j].Tier
		}
		return s.alwaysOn[i].ID < s.alwaysOn[j].ID
	})

	for _, entry := range fileTypes {
		s.fileTypes = append(s.fileTypes, *entry)
	}
	sort.Slice(s.fileTypes, func(i, j int) bool { return s.fileTypes[i].pattern < s.fileTypes[j].pattern })

	for _, entry := range dirs {
		s.dirs = append(s.dirs, *entry)
	}
	sort.Slice(s.dirs, func(i, j int) bool { return s.dirs[i].pattern < s.dirs[j].pattern })

	s.keywordList = make([]string, 0, len(s.keywords))
	for keyword := range s.keywords {
		s.keywordList = append(s.keywordList, keyword)
	}
	sort.Strings(s.keywordList)

	return nil
}

// Get returns the skill for id, or a NotFoundError.
func (s *Snapshot) Get(id string) (*selection.Skill, error) {
	skill, ok := s.skills[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return skill, nil
}

// Len reports the number of skills in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.skills)
}

// All returns every skill in id order.
func (s *Snapshot) All() []*selection.Skill {
	out := make([]*selection.Skill, 0, len(s.ordered))
	for _, id := range s.ordered {
		out = append(out, s.skills[id])
	}
	return out
}

// AlwaysOn returns the always-on skills sorted by tier then id.
func (s *Snapshot) AlwaysOn() []*selection.Skill {
	return s.alwaysOn
}

// Version is the monotonically increasing load counter. Cache entries
// produced against an older version are invalid.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// LoadedAt reports when this snapshot was swapped in.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// MatchQuery returns the keyword patterns contained in the lowered query
// text. Containment, not equality: the keyword "redis" fires for
// "use redis caching".
func (s *Snapshot) MatchQuery(loweredQuery string) []PatternHit {
	if loweredQuery == "" {
		return nil
	}
	var hits []PatternHit
	for _, keyword := range s.keywordList {
		if strings.Contains(loweredQuery, keyword) {
			hits = append(hits, PatternHit{Pattern: keyword, IDs: s.keywords[keyword]})
		}
	}
	return hits
}

// MatchFile returns the file-type patterns matching a path, by suffix for
// plain patterns and by glob for patterns with metacharacters.
func (s *Snapshot) MatchFile(path string) []PatternHit {
	path = strings.ToLower(path)
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		base = path[idx+1:]
	}

	var hits []PatternHit
	for _, entry := range s.fileTypes {
		matched := false
		if entry.g != nil {
			matched = entry.g.Match(base) || entry.g.Match(path)
		} else {
			matched = strings.HasSuffix(path, strings.ToLower(entry.pattern))
		}
		if matched {
			hits = append(hits, PatternHit{Pattern: entry.pattern, IDs: entry.ids})
		}
	}
	return hits
}

// MatchDirectory returns the directory patterns whose components prefix the
// path. Matching is component-wise: /cache matches /cache/redis.ts but
// never /caching/x. Unanchored patterns may start at any component.
func (s *Snapshot) MatchDirectory(path string) []PatternHit {
	components := splitComponents(path)
	if len(components) == 0 {
		return nil
	}

	var hits []PatternHit
	for _, entry := range s.dirs {
		if matchComponents(entry, components) {
			hits = append(hits, PatternHit{Pattern: entry.pattern, IDs: entry.ids})
		}
	}
	return hits
}

func matchComponents(entry dirEntry, path []string) bool {
	want := entry.components
	if len(want) == 0 || len(want) > len(path) {
		return false
	}
	if entry.anchored {
		return componentsAt(path, want, 0)
	}
	for start := 0; start+len(want) <= len(path); start++ {
		if componentsAt(path, want, start) {
			return true
		}
	}
	return false
}

func componentsAt(path, want []string, start int) bool {
	for i, component := range want {
		if path[start+i] != component {
			return false
		}
	}
	return true
}

func splitComponents(path string) []string {
	path = strings.ToLower(strings.ReplaceAll(path, "\\", "/"))
	var out []string
	for _, component := range strings.Split(path, "/") {
		if component != "" {
			out = append(out, component)
		}
	}
	return out
}
