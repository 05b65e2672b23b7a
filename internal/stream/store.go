package stream

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	utils "livewall/pkg/utils"

	json "github.com/goccy/go-json"
)

// FileStorePaths locates each record on disk.
type FileStorePaths struct {
	Snapshot      string
	Blacklist     string
	Featured      string
	FeaturedCache string
}

// FileStore keeps every record as a JSON file. Writes go to a temporary file in
// the same directory and are installed with a rename.
type FileStore struct {
	paths FileStorePaths
}

func NewFileStore(paths FileStorePaths) *FileStore {
	return &FileStore{paths: paths}
}

func (fs *FileStore) Init() error {
	records := []struct {
		path  string
		empty interface{}
	}{
		{fs.paths.Snapshot, []StreamItem{}},
		{fs.paths.Blacklist, []string{}},
		{fs.paths.Featured, []string{}},
		{fs.paths.FeaturedCache, FeaturedCache{}},
	}

	for _, r := range records {
		if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", r.path, err)
		}
		if _, err := os.Stat(r.path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to stat %s: %w", r.path, err)
		}
		if err := writeJSONAtomic(r.path, r.empty); err != nil {
			return err
		}
		utils.WithField("path", r.path).Info("Initialized empty record")
	}
	return nil
}

func (fs *FileStore) LoadSnapshot() ([]StreamItem, error) {
	items := []StreamItem{}
	found, err := readJSON(fs.paths.Snapshot, &items)
	if err != nil {
		return []StreamItem{}, err
	}
	if !found {
		return []StreamItem{}, fmt.Errorf("%s: %w", fs.paths.Snapshot, ErrSnapshotMissing)
	}
	if items == nil {
		return []StreamItem{}, nil
	}
	return items, nil
}

func (fs *FileStore) SaveSnapshot(items []StreamItem) error {
	if items == nil {
		items = []StreamItem{}
	}
	return writeJSONAtomic(fs.paths.Snapshot, items)
}

func (fs *FileStore) LoadBlacklist() (IDSet, error) {
	var ids []string
	if _, err := readJSON(fs.paths.Blacklist, &ids); err != nil {
		return IDSet{}, err
	}
	return NewIDSet(ids...), nil
}

func (fs *FileStore) LoadFeatured() ([]string, error) {
	var ids []string
	if _, err := readJSON(fs.paths.Featured, &ids); err != nil {
		return []string{}, err
	}
	if ids == nil {
		return []string{}, nil
	}
	return ids, nil
}

func (fs *FileStore) LoadFeaturedCache() (FeaturedCache, error) {
	cache := FeaturedCache{}
	if _, err := readJSON(fs.paths.FeaturedCache, &cache); err != nil {
		return FeaturedCache{}, err
	}
	if cache == nil {
		return FeaturedCache{}, nil
	}
	return cache, nil
}

func (fs *FileStore) SaveFeaturedCache(cache FeaturedCache) error {
	if cache == nil {
		cache = FeaturedCache{}
	}
	return writeJSONAtomic(fs.paths.FeaturedCache, cache)
}

// readJSON decodes path into v. A missing file is not an error and reports found=false.
func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, fmt.Errorf("%s is empty: %w", path, ErrCorruptRecord)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %v: %w", path, err, ErrCorruptRecord)
	}
	return true, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to install %s: %w", path, err)
	}
	return nil
}
