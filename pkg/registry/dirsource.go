package registry

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillFileName = "SKILL.md"

// DirSource loads skill records from directories laid out as
// <dir>/<skill-name>/SKILL.md, with the record fields in YAML frontmatter
// and the payload as the markdown body.
type DirSource struct {
	dirs []string
}

// DirOption configures a DirSource.
type DirOption func(*DirSource) error

// WithDirs sets explicit skill directories.
func WithDirs(dirs ...string) DirOption {
	return func(d *DirSource) error {
		if len(dirs) == 0 {
			return errors.New("at least one skill directory must be specified")
		}
		d.dirs = dirs
		return nil
	}
}

// WithDefaultDirs uses the repo-local directory followed by the user-global one.
func WithDefaultDirs() DirOption {
	return func(d *DirSource) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.dirs = []string{
			"./.skillctx/skills",
			filepath.Join(homeDir, ".skillctx", "skills"),
		}
		return nil
	}
}

// NewDirSource creates a directory-backed skill source.
func NewDirSource(opts ...DirOption) (*DirSource, error) {
	d := &DirSource{}
	if len(opts) == 0 {
		opts = []DirOption{WithDefaultDirs()}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Dirs returns the directories this source reads, in precedence order.
func (d *DirSource) Dirs() []string {
	return d.dirs
}

// Records implements Source. Records from earlier directories shadow
// same-named entries from later ones; a malformed SKILL.md fails the whole
// read so a load never partially applies.
func (d *DirSource) Records(ctx context.Context) ([]Record, error) {
	seen := make(map[string]bool)
	var records []Record

	for _, dir := range d.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			// Missing directories are fine; the default layout rarely has both.
			continue
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			entryPath := filepath.Join(dir, entry.Name())
			info, err := os.Stat(entryPath)
			if err != nil || !info.IsDir() {
				continue
			}

			skillPath := filepath.Join(entryPath, skillFileName)
			if _, err := os.Stat(skillPath); err != nil {
				continue
			}

			record, err := parseSkillFile(skillPath)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to load %s", skillPath)
			}

			if seen[record.ID] {
				continue
			}
			seen[record.ID] = true
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// parseSkillFile reads one SKILL.md and decodes its frontmatter into a Record.
func parseSkillFile(path string) (Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Record{}, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return Record{}, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return Record{}, errors.New("missing frontmatter")
	}

	var record Record
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &record,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Record{}, errors.Wrap(err, "failed to build frontmatter decoder")
	}
	if err := decoder.Decode(metaData); err != nil {
		return Record{}, errors.Wrap(err, "failed to decode frontmatter")
	}

	if record.ID == "" {
		return Record{}, errors.New("skill id is required in frontmatter")
	}

	record.Content = extractBody(string(content))
	record.Source = path
	return record, nil
}

// extractBody strips the YAML frontmatter and returns the payload.
func extractBody(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return content
	}
	return strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
}
