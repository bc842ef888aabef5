package storage

import (
	"errors"

	"btp/internal/config"
	"btp/internal/domain"
)

// Storage persists and loads run records (e.g. for the explorer).
type Storage interface {
	Save(record *domain.RunRecord) error
	Load() (*domain.RunRecord, error)
}

// JSONStorage stores the last run in a JSON file under the configured output path.
type JSONStorage struct {
	cfg *config.Config
}

// NewJSONStorage returns a Storage that reads/writes the config's output JSON path.
func NewJSONStorage(cfg *config.Config) *JSONStorage {
	return &JSONStorage{cfg: cfg}
}

// MultiStorage saves to every store and loads from the first one that succeeds.
type MultiStorage []Storage

// Save writes the record to every store, joining the errors.
func (m MultiStorage) Save(record *domain.RunRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Save(record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load returns the first record any store can provide.
func (m MultiStorage) Load() (*domain.RunRecord, error) {
	var errs []error
	for _, s := range m {
		record, err := s.Load()
		if err == nil {
			return record, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}
