package migrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xeipuuv/gojsonschema"
)

// JournalVersion is the current journal document format version.
const JournalVersion = "7"

// journalFile is the journal filename inside the meta directory.
const journalFile = "_journal.json"

// ErrJournalNotFound indicates the journal document has never been created.
// Callers must treat this differently from a corrupt journal: a missing
// journal means "nothing applied yet", a corrupt one must not be silently
// interpreted that way.
var ErrJournalNotFound = errors.New("journal not found")

// Entry records one applied migration. Idx is the 0-based position in
// application order. Version is the journal format version at the time the
// entry was written, not anything about the migration itself. When is epoch
// milliseconds. Breakpoints is always true: every migration runs as a
// standalone unit rather than batched with its neighbors.
type Entry struct {
	Idx         int    `json:"idx"`
	Version     string `json:"version"`
	When        int64  `json:"when"`
	Tag         string `json:"tag"`
	Breakpoints bool   `json:"breakpoints"`
}

// Journal is the durable record of applied migrations. Entries are
// append-only during apply and removed outright on rollback (no tombstones).
type Journal struct {
	Version string  `json:"version"`
	Dialect string  `json:"dialect"`
	Entries []Entry `json:"entries"`
}

// journalSchema validates the journal document shape before it is trusted.
// A document that parses as JSON but violates this schema is treated the same
// as unparseable JSON.
const journalSchema = `{
  "type": "object",
  "required": ["version", "dialect", "entries"],
  "properties": {
    "version": {"type": "string"},
    "dialect": {"type": "string"},
    "entries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["idx", "version", "when", "tag", "breakpoints"],
        "properties": {
          "idx": {"type": "integer", "minimum": 0},
          "version": {"type": "string"},
          "when": {"type": "integer"},
          "tag": {"type": "string", "minLength": 1},
          "breakpoints": {"type": "boolean"}
        }
      }
    }
  }
}`

// JournalPath returns the path of the journal document for a migrations
// directory.
func JournalPath(migrationsDir string) string {
	return filepath.Join(migrationsDir, "meta", journalFile)
}

// NewJournal returns an empty journal for the given SQL dialect.
func NewJournal(dialect string) *Journal {
	return &Journal{
		Version: JournalVersion,
		Dialect: dialect,
		Entries: []Entry{},
	}
}

// LoadJournal reads and parses the journal for a migrations directory.
//
// It distinguishes three outcomes: a missing file returns ErrJournalNotFound,
// a file that fails to parse or violates the journal schema returns a
// descriptive error, and a valid file returns the journal. Corruption is
// deliberately loud; collapsing it into "nothing applied yet" would risk
// re-applying migrations that already ran.
func LoadJournal(migrationsDir string) (*Journal, error) {
	path := JournalPath(migrationsDir)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", path, ErrJournalNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read journal %s: %w", path, err)
	}

	if err := validateJournalDocument(data); err != nil {
		return nil, fmt.Errorf("parse journal %s: %w", path, err)
	}

	var j Journal
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse journal %s: %w", path, err)
	}
	if j.Entries == nil {
		j.Entries = []Entry{}
	}
	return &j, nil
}

func validateJournalDocument(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(journalSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return err
	}
	if !result.Valid() {
		issues := result.Errors()
		if len(issues) > 0 {
			return fmt.Errorf("invalid journal document: %s", issues[0])
		}
		return errors.New("invalid journal document")
	}
	return nil
}

// Save writes the journal document, creating the meta directory if needed.
// The write goes to a temp file first and is renamed into place so readers
// never observe a partial document.
func (j *Journal) Save(migrationsDir string) error {
	path := JournalPath(migrationsDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create meta directory: %w", err)
	}

	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("save journal: %w", err)
	}
	return nil
}

// AppliedTags projects entry tags into a set. A nil journal (not found)
// yields an empty set.
func (j *Journal) AppliedTags() map[string]bool {
	tags := make(map[string]bool)
	if j == nil {
		return tags
	}
	for _, e := range j.Entries {
		tags[e.Tag] = true
	}
	return tags
}

// Append adds an entry for tag at the next index and stamps it with the
// journal's own format version.
func (j *Journal) Append(tag string, whenMillis int64) {
	j.Entries = append(j.Entries, Entry{
		Idx:         len(j.Entries),
		Version:     j.Version,
		When:        whenMillis,
		Tag:         tag,
		Breakpoints: true,
	})
}

// Remove deletes the entry with the given tag. Later entries keep their
// original indexes; indexes stay monotonically increasing either way.
func (j *Journal) Remove(tag string) {
	kept := j.Entries[:0]
	for _, e := range j.Entries {
		if e.Tag != tag {
			kept = append(kept, e)
		}
	}
	j.Entries = kept
}

// IndexOf returns the position of the entry with the given tag, or -1.
func (j *Journal) IndexOf(tag string) int {
	for i, e := range j.Entries {
		if e.Tag == tag {
			return i
		}
	}
	return -1
}
