package kvstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const boltFileName = "records.bolt"

var recordsBucket = []byte("records")

type boltStore struct {
	bdb *bbolt.DB
}

// Open opens (creating if needed) a Bolt-backed store in the given
// directory. The directory name is the stable identity of the store; the
// file inside it is an implementation detail.
func Open(dir string, opt Options) (Store, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return nil, fmt.Errorf("kvstore: %w", err)
	}

	bopt := *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.NoSync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}

	bdb, err := bbolt.Open(filepath.Join(dir, boltFileName), 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("kvstore: %w", err)
	}

	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(recordsBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("kvstore: preparing %s: %w", dir, err)
	}

	return &boltStore{bdb: bdb}, nil
}

func (s *boltStore) Put(id, value []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(recordsBucket).Put(id, value)
	})
}

func (s *boltStore) Get(id []byte) ([]byte, error) {
	var value []byte
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		raw := btx.Bucket(recordsBucket).Get(id)
		if raw == nil {
			return ErrNotFound
		}
		// Bolt slices are only valid inside the transaction.
		value = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *boltStore) Delete(id []byte) error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(recordsBucket).Delete(id)
	})
}

func (s *boltStore) ForEach(fn func(id, value []byte) error) error {
	return s.bdb.View(func(btx *bbolt.Tx) error {
		return btx.Bucket(recordsBucket).ForEach(fn)
	})
}

func (s *boltStore) Clear() error {
	return s.bdb.Update(func(btx *bbolt.Tx) error {
		c := btx.Bucket(recordsBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			err := c.Delete()
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *boltStore) Len() int {
	var n int
	s.bdb.View(func(btx *bbolt.Tx) error {
		n = btx.Bucket(recordsBucket).Stats().KeyN
		return nil
	})
	return n
}

func (s *boltStore) Close() error {
	err := s.bdb.Close()
	if err != nil {
		return fmt.Errorf("kvstore: closing: %w", err)
	}
	return nil
}
