package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	apperrors "booker/pkg/errors"
	"booker/pkg/logger"
	"booker/pkg/model"
)

const (
	bookingsFile = "bookings.json"
	syncMetaFile = "sync_meta.json"
	probeFile    = ".write_probe"
)

// FileStore keeps the two blobs as JSON files under a data directory.
// Writes go through a temp file and rename, so a crashed write never leaves
// a half-written blob behind.
type FileStore struct {
	dir string
	log *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Storage(fmt.Sprintf("cannot create data directory %s", dir), err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) Bookings() ([]model.Booking, error) {
	if !s.Available() {
		return nil, nil
	}
	var bookings []model.Booking
	if err := s.readJSON(bookingsFile, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *FileStore) SaveBookings(bookings []model.Booking) error {
	if !s.Available() {
		return nil
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return s.writeJSON(bookingsFile, bookings)
}

func (s *FileStore) SyncMetadata() (model.SyncMetadata, error) {
	var meta model.SyncMetadata
	if !s.Available() {
		return meta, nil
	}
	if err := s.readJSON(syncMetaFile, &meta); err != nil {
		return model.SyncMetadata{}, err
	}
	return meta, nil
}

func (s *FileStore) SaveSyncMetadata(meta model.SyncMetadata) error {
	if !s.Available() {
		return nil
	}
	return s.writeJSON(syncMetaFile, meta)
}

func (s *FileStore) Clear() error {
	if !s.Available() {
		return nil
	}
	for _, name := range []string{bookingsFile, syncMetaFile} {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return apperrors.Storage(fmt.Sprintf("cannot clear %s", name), err)
		}
	}
	return nil
}

// Available probes the directory for writability, mirroring how a browser
// client probes its storage area with a throwaway key.
func (s *FileStore) Available() bool {
	probe := filepath.Join(s.dir, probeFile)
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}

// readJSON decodes the named blob into target. A missing file is an empty
// store. A corrupt file is logged and treated as empty rather than taking
// the whole client down.
func (s *FileStore) readJSON(name string, target any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return apperrors.Storage(fmt.Sprintf("cannot read %s", name), err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		s.log.Warn("Corrupt store blob, treating as empty", "file", name, "error", err)
		return nil
	}
	return nil
}

func (s *FileStore) writeJSON(name string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return apperrors.Storage(fmt.Sprintf("cannot encode %s", name), err)
	}

	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return apperrors.Storage(fmt.Sprintf("cannot stage %s", name), err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperrors.Storage(fmt.Sprintf("cannot write %s", name), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperrors.Storage(fmt.Sprintf("cannot write %s", name), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return apperrors.Storage(fmt.Sprintf("cannot replace %s", name), err)
	}
	return nil
}
