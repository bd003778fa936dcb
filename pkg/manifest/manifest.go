package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dataharvest/pkg/logger"
)

// Entry status values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Entry represents one retrieved (or attempted) artifact
type Entry struct {
	Locator     string    `json:"remote_locator"`
	LocalPath   string    `json:"local_path,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
	Status      string    `json:"status"`
	Group       string    `json:"group,omitempty"`
	Source      string    `json:"source,omitempty"`
	Note        string    `json:"note,omitempty"`
}

// ledgerFile is the on-disk shape of the manifest
type ledgerFile struct {
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []Entry   `json:"entries"`
}

// Store is the durable ledger plus an in-memory locator index
type Store struct {
	path    string
	root    string
	entries []Entry        // stable first-seen order
	index   map[string]int // locator -> position in entries
	logger  logger.Logger
}

// NewStore creates a manifest store rooted at the given storage directory.
// The ledger file lives directly under the root.
func NewStore(root, manifestName string) *Store {
	return &Store{
		path:   filepath.Join(root, manifestName),
		root:   root,
		index:  make(map[string]int),
		logger: logger.GetLogger(),
	}
}

// Path returns the ledger file path
func (s *Store) Path() string {
	return s.path
}

// Load reads the ledger from disk and rebuilds the locator index. A
// missing ledger yields an empty store; a corrupt or unreadable ledger is
// an error, because proceeding would trigger a mass re-download.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.entries = nil
			s.index = make(map[string]int)
			s.logger.Info("no previous manifest found, starting empty")
			return nil
		}
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var ledger ledgerFile
	if err := json.Unmarshal(data, &ledger); err != nil {
		return fmt.Errorf("manifest %s is corrupt: %w", s.path, err)
	}

	s.entries = ledger.Entries
	s.index = make(map[string]int, len(ledger.Entries))
	for i, entry := range s.entries {
		s.index[entry.Locator] = i
	}

	s.logger.InfoWithFields("manifest loaded", map[string]interface{}{
		"path":    s.path,
		"entries": len(s.entries),
	})

	return nil
}

// Contains reports whether the ledger has an entry for the locator
func (s *Store) Contains(locator string) bool {
	_, ok := s.index[locator]
	return ok
}

// Get returns the entry for a locator, if present
func (s *Store) Get(locator string) (Entry, bool) {
	i, ok := s.index[locator]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Record upserts an entry by locator. A repeated locator overwrites the
// existing entry in place, preserving its position; a new locator appends.
func (s *Store) Record(entry Entry) {
	if i, ok := s.index[entry.Locator]; ok {
		s.entries[i] = entry
		return
	}
	s.entries = append(s.entries, entry)
	s.index[entry.Locator] = len(s.entries) - 1
}

// ExistsOnDisk checks whether a root-relative path is present on disk
func (s *Store) ExistsOnDisk(localPath string) bool {
	if localPath == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(localPath)))
	return err == nil && !info.IsDir()
}

// IsAlreadyFetched applies dual verification: the locator must have a
// successful ledger entry AND the file must still be on disk. A ledger
// entry whose file was manually deleted forces a re-fetch; a stray file
// with no ledger entry is not trusted either.
func (s *Store) IsAlreadyFetched(locator, localPath string) bool {
	entry, ok := s.Get(locator)
	if !ok || entry.Status != StatusSuccess {
		return false
	}
	if !s.ExistsOnDisk(localPath) {
		s.logger.WarnWithFields("file in manifest but missing on disk", map[string]interface{}{
			"locator":    locator,
			"local_path": localPath,
		})
		return false
	}
	return true
}

// Len returns the number of ledger entries
func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns the ledger entries in their stable persisted order
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Save persists the full ledger atomically: write to a temporary file,
// sync, then rename into place.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	ledger := ledgerFile{
		UpdatedAt: time.Now().UTC(),
		Entries:   s.entries,
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary manifest file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(ledger); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync manifest file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close manifest file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}

	s.logger.DebugWithFields("manifest saved", map[string]interface{}{
		"path":    s.path,
		"entries": len(s.entries),
	})

	return nil
}
