// /internal/storage/storage.go
package storage

import (
	"context"

	"github.com/keshon/datastore"
)

type Storage struct {
	ds *datastore.DataStore
}

func New(filePath string) (*Storage, error) {
	ds, err := datastore.New(context.Background(), filePath)
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

func (s *Storage) Close() error {
	return s.ds.Close()
}

func (s *Storage) Flush() error {
	return s.ds.Flush()
}

// load unmarshals the value under key into out. The datastore keeps
// values as raw JSON, so Get performs the unmarshal itself.
func (s *Storage) load(key string, out any) (bool, error) {
	return s.ds.Get(key, out)
}

func (s *Storage) store(key string, value any) {
	_ = s.ds.Set(key, value)
}
