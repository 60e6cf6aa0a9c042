package checksum

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"starlift/pkg/errors"
)

// Store persists the entity-name -> content-hash mapping between runs.
//
// Load must degrade to an empty mapping when no usable prior state exists:
// re-processing unchanged data is cheaper than silently skipping changed
// data. Save must be all-or-nothing so a crash never leaves a partially
// updated mapping behind.
type Store interface {
	Load() (map[string]string, error)
	Save(map[string]string) error
}

// FileStore keeps the checksum mapping in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed checksum store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted mapping. A missing or corrupt file yields an
// empty mapping and no error, which forces a full reload downstream.
func (s *FileStore) Load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]string{}, nil
	}

	var checksums map[string]string
	if err := json.Unmarshal(data, &checksums); err != nil {
		return map[string]string{}, nil
	}
	if checksums == nil {
		checksums = map[string]string{}
	}
	return checksums, nil
}

// Save atomically replaces the persisted mapping by writing a temp file in
// the same directory and renaming it over the target.
func (s *FileStore) Save(checksums map[string]string) error {
	data, err := json.MarshalIndent(checksums, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeChecksumSave, "Failed to encode checksums")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, errors.ErrCodeChecksumSave,
			fmt.Sprintf("Failed to create checksum directory %s", dir))
	}

	tmp, err := os.CreateTemp(dir, ".checksums-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeChecksumSave, "Failed to create temp checksum file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeChecksumSave, "Failed to write checksum file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeChecksumSave, "Failed to close checksum file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeChecksumSave, "Failed to replace checksum file")
	}
	return nil
}
