package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileStore persists mode memory as one directory per mode holding
// record.json (the snapshot) and interactions.jsonl (the saved exchanges).
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a FileStore rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

func (fs *FileStore) modeDir(mode string) string {
	return filepath.Join(fs.baseDir, mode)
}

func (fs *FileStore) recordPath(mode string) string {
	return filepath.Join(fs.modeDir(mode), "record.json")
}

func (fs *FileStore) interactionsPath(mode string) string {
	return filepath.Join(fs.modeDir(mode), "interactions.jsonl")
}

// Save overwrites the mode's record and rewrites its interaction log.
func (fs *FileStore) Save(rec *Record) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if rec.Mode == "" {
		return fmt.Errorf("save memory record: empty mode name")
	}
	if rec.ID == "" {
		rec.ID = "rec_" + uuid.New().String()[:8]
	}
	rec.SavedAt = time.Now()

	dir := fs.modeDir(rec.Mode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}

	if err := fs.writeRecord(rec); err != nil {
		return err
	}
	return fs.writeInteractions(rec.Mode, rec.Interactions)
}

// Load reads back the mode's last saved record. A mode that was never
// checkpointed returns (nil, nil): re-entry starts fresh.
func (fs *FileStore) Load(modeName string) (*Record, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.recordPath(modeName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read memory record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal memory record: %w", err)
	}

	rec.Interactions, err = fs.loadInteractions(modeName)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Modes lists mode names with a saved record, sorted.
func (fs *FileStore) Modes() ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list memory dir: %w", err)
	}

	var modes []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(fs.recordPath(entry.Name())); err == nil {
			modes = append(modes, entry.Name())
		}
	}
	sort.Strings(modes)
	return modes, nil
}

// writeRecord writes record.json atomically via temp file + rename.
func (fs *FileStore) writeRecord(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory record: %w", err)
	}

	path := fs.recordPath(rec.Mode)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename memory record: %w", err)
	}
	return nil
}

func (fs *FileStore) writeInteractions(mode string, interactions []Interaction) error {
	path := fs.interactionsPath(mode)
	if len(interactions) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("clear interactions: %w", err)
		}
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open interactions file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, it := range interactions {
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("marshal interaction: %w", err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write interaction: %w", err)
		}
	}
	return w.Flush()
}

func (fs *FileStore) loadInteractions(mode string) ([]Interaction, error) {
	f, err := os.Open(fs.interactionsPath(mode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open interactions file: %w", err)
	}
	defer f.Close()

	var out []Interaction
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var it Interaction
		if err := json.Unmarshal(line, &it); err != nil {
			continue // skip corrupted lines
		}
		out = append(out, it)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan interactions: %w", err)
	}
	return out, nil
}
