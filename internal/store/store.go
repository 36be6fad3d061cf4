// Package store persists screenshots and their metadata on the filesystem.
// Every image gets a JSON sidecar next to it; there is no database, so the
// storage directory can be synced, backed up, or inspected with ordinary
// tools. Deletion is soft: records move into a .trash/ subdirectory and can
// be restored until the trash is emptied.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hotshot-tools/hotshot/internal/logger"
)

var (
	// ErrNotFound means no record matches the given id or prefix.
	ErrNotFound = errors.New("screenshot not found")
	// ErrAmbiguousID means an id prefix matches more than one record.
	ErrAmbiguousID = errors.New("ambiguous id prefix")
)

// trashDir holds soft-deleted screenshots under the storage root.
const trashDir = ".trash"

// sidecarExt is the metadata file extension, appended to the image name.
const sidecarExt = ".json"

// Store is a filesystem-backed screenshot library rooted at a single
// directory. All methods are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	root       string
	template   string
	organizeBy string
}

// New opens (creating if needed) a store at root. template names new files
// using {timestamp} and {random} placeholders; organizeBy is "month" for
// YYYY-MM subdirectories or "flat" for everything in the root.
func New(root, template, organizeBy string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	if template == "" {
		template = "{timestamp}-{random}"
	}
	return &Store{
		root:       root,
		template:   template,
		organizeBy: organizeBy,
	}, nil
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Save writes the encoded image and then its sidecar, in that order: a
// crash can leave an image without metadata but never a sidecar pointing
// at nothing. The filled-in record is returned.
func (s *Store) Save(data []byte, meta Metadata) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if meta.CapturedAt.IsZero() {
		meta.CapturedAt = time.Now()
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	meta.ID = fmt.Sprintf("%s-%s", meta.CapturedAt.Format("20060102-150405"), random)

	ext := meta.Format
	if ext == "jpeg" {
		ext = "jpg"
	}

	name := strings.NewReplacer(
		"{timestamp}", meta.CapturedAt.Format("20060102-150405"),
		"{random}", random,
	).Replace(s.template)

	rel := name + "." + ext
	if s.organizeBy == "month" {
		rel = filepath.Join(meta.CapturedAt.Format("2006-01"), rel)
	}

	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return Metadata{}, fmt.Errorf("create month dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return Metadata{}, fmt.Errorf("write image: %w", err)
	}

	meta.Path = filepath.ToSlash(rel)
	meta.FileSize = int64(len(data))
	if meta.Tags == nil {
		meta.Tags = []string{}
	}

	if err := writeSidecar(abs+sidecarExt, &meta); err != nil {
		// Roll the image back so no pixels exist without a record
		os.Remove(abs)
		return Metadata{}, err
	}

	logger.WithComponent("store").Debug().
		Str("id", meta.ID).
		Str("path", meta.Path).
		Int64("bytes", meta.FileSize).
		Msg("Screenshot saved")

	return meta, nil
}

// List returns records newest-first, excluding the trash. limit <= 0 means
// all.
func (s *Store) List(limit int) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.scan(false)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// ListTrash returns soft-deleted records newest-first.
func (s *Store) ListTrash() ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scan(true)
}

// Get resolves an id or unique id prefix to its live record. Trashed
// records are not found; deletion really does make the id disappear from
// every read path until Restore.
func (s *Store) Get(id string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, _, err := s.resolve(id, false)
	if err != nil {
		return Metadata{}, err
	}
	return *meta, nil
}

// Search returns live records whose id, tags, or notes contain the query,
// case-insensitively, newest-first.
func (s *Store) Search(query string) ([]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.scan(false)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	var out []Metadata
	for _, r := range records {
		if matches(&r, q) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matches(m *Metadata, q string) bool {
	if strings.Contains(strings.ToLower(m.ID), q) {
		return true
	}
	if strings.Contains(strings.ToLower(m.Notes), q) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

// normalizeTag trims and lowercases so "Bug " and "bug" are one tag.
func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Tag adds tags to a record. Tags already present are kept once; the
// operation is idempotent.
func (s *Store) Tag(id string, tags ...string) (Metadata, error) {
	return s.update(id, func(m *Metadata) {
		for _, tag := range tags {
			tag = normalizeTag(tag)
			if tag != "" && !m.HasTag(tag) {
				m.Tags = append(m.Tags, tag)
			}
		}
	})
}

// Untag removes tags from a record; absent tags are ignored.
func (s *Store) Untag(id string, tags ...string) (Metadata, error) {
	return s.update(id, func(m *Metadata) {
		kept := m.Tags[:0]
		for _, have := range m.Tags {
			drop := false
			for _, tag := range tags {
				if have == normalizeTag(tag) {
					drop = true
					break
				}
			}
			if !drop {
				kept = append(kept, have)
			}
		}
		m.Tags = kept
	})
}

// Note replaces the record's free-form note.
func (s *Store) Note(id, text string) (Metadata, error) {
	return s.update(id, func(m *Metadata) {
		m.Notes = text
	})
}

func (s *Store) update(id string, mutate func(*Metadata)) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, sidecar, err := s.resolve(id, false)
	if err != nil {
		return Metadata{}, err
	}
	mutate(meta)
	if err := writeSidecar(sidecar, meta); err != nil {
		return Metadata{}, err
	}
	return *meta, nil
}

// Delete moves the image and sidecar into the trash and marks the record
// trashed. The screenshot disappears from List, Search, and Get but stays
// recoverable. The pre-delete record is returned for confirmation.
func (s *Store) Delete(id string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, sidecar, err := s.resolve(id, false)
	if err != nil {
		return Metadata{}, err
	}
	before := *meta

	dir := filepath.Join(s.root, trashDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Metadata{}, fmt.Errorf("create trash dir: %w", err)
	}

	base := filepath.Base(meta.Path)
	src := filepath.Join(s.root, filepath.FromSlash(meta.Path))
	dst := filepath.Join(dir, base)

	if err := os.Rename(src, dst); err != nil {
		return Metadata{}, fmt.Errorf("move image to trash: %w", err)
	}

	meta.Trashed = true
	meta.Path = filepath.ToSlash(filepath.Join(trashDir, base))
	if err := writeSidecar(dst+sidecarExt, meta); err != nil {
		return Metadata{}, err
	}
	if err := os.Remove(sidecar); err != nil {
		return Metadata{}, fmt.Errorf("remove old sidecar: %w", err)
	}

	logger.WithComponent("store").Info().
		Str("id", meta.ID).
		Msg("Screenshot moved to trash")
	return before, nil
}

// Restore moves a trashed screenshot back to its original month directory.
func (s *Store) Restore(id string) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, sidecar, err := s.resolve(id, true)
	if err != nil {
		return Metadata{}, err
	}

	base := filepath.Base(meta.Path)
	rel := base
	if s.organizeBy == "month" {
		rel = filepath.Join(meta.CapturedAt.Format("2006-01"), base)
	}

	src := filepath.Join(s.root, filepath.FromSlash(meta.Path))
	dst := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Metadata{}, fmt.Errorf("create month dir: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return Metadata{}, fmt.Errorf("restore image: %w", err)
	}

	meta.Trashed = false
	meta.Path = filepath.ToSlash(rel)
	if err := writeSidecar(dst+sidecarExt, meta); err != nil {
		return Metadata{}, err
	}
	if err := os.Remove(sidecar); err != nil {
		return Metadata{}, fmt.Errorf("remove trash sidecar: %w", err)
	}

	logger.WithComponent("store").Info().
		Str("id", meta.ID).
		Msg("Screenshot restored from trash")
	return *meta, nil
}

// ImagePath resolves a record's image to an absolute path, rejecting any
// path that escapes the storage root.
func (s *Store) ImagePath(meta *Metadata) (string, error) {
	for _, seg := range strings.Split(meta.Path, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid path %q", meta.Path)
		}
	}
	return filepath.Join(s.root, filepath.FromSlash(meta.Path)), nil
}

// resolve finds the unique record matching an id or id prefix on one side
// of the trash boundary. Callers hold the lock. Returns the record and its
// sidecar path.
func (s *Store) resolve(id string, trashed bool) (*Metadata, string, error) {
	if id == "" {
		return nil, "", fmt.Errorf("%w: empty id", ErrNotFound)
	}

	var (
		found   *Metadata
		sidecar string
	)
	err := s.walkSidecars(func(path string, meta *Metadata) error {
		if meta.Trashed != trashed || !strings.HasPrefix(meta.ID, id) {
			return nil
		}
		if found != nil {
			return fmt.Errorf("%w: %q matches %s and %s", ErrAmbiguousID, id, found.ID, meta.ID)
		}
		found = meta
		sidecar = path
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	if found == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return found, sidecar, nil
}

// scan loads all sidecars on one side of the trash boundary, newest-first.
func (s *Store) scan(trashed bool) ([]Metadata, error) {
	var records []Metadata
	err := s.walkSidecars(func(_ string, meta *Metadata) error {
		if meta.Trashed == trashed {
			records = append(records, *meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CapturedAt.After(records[j].CapturedAt)
	})
	return records, nil
}

// walkSidecars visits every sidecar under the root, trash included.
// Unreadable or corrupt sidecars are skipped, not fatal: one bad file must
// not hide the rest of the library.
func (s *Store) walkSidecars(fn func(path string, meta *Metadata) error) error {
	return filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, sidecarExt) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			logger.WithComponent("store").Warn().Err(err).Str("path", path).Msg("Skipping unreadable sidecar")
			return nil
		}
		var meta Metadata
		if err := json.Unmarshal(raw, &meta); err != nil {
			logger.WithComponent("store").Warn().Err(err).Str("path", path).Msg("Skipping corrupt sidecar")
			return nil
		}
		return fn(path, &meta)
	})
}

// writeSidecar writes the record atomically: temp file in the same
// directory, then rename.
func writeSidecar(path string, meta *Metadata) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit sidecar: %w", err)
	}
	return nil
}
