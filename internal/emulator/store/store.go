// Package store persists the emulated ledger in a bbolt database.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/zahanm/collect-beans/pkg/beancount"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// Bucket names.
const (
	BucketFiles  = "files"
	BucketBackup = "backup"
	BucketMeta   = "meta"
)

// Metadata keys.
const (
	KeyDestination = "destination_file"
	KeyLastBackup  = "last_backup"
)

// Store represents the bbolt database wrapper.
type Store struct {
	db *bolt.DB
}

// New creates a new Store instance and initializes buckets.
func New(dbPath string) (*Store, error) {
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketFiles, BucketBackup, BucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a value as JSON in the specified bucket with the given key.
func (s *Store) Put(bucketName, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.Put([]byte(key), data)
	})
}

// Get retrieves a JSON value from the specified bucket with the given key.
func (s *Store) Get(bucketName, key string, value interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, value)
	})
}

// Keys lists the keys of a bucket in byte order.
func (s *Store) Keys(bucketName string) ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// PutString stores a string value with a string key.
func (s *Store) PutString(bucketName, key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.Put([]byte(key), []byte(value))
	})
}

// GetString retrieves a string value with a string key.
func (s *Store) GetString(bucketName, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		data := b.Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		value = string(data)
		return nil
	})
	return value, err
}

// CopyBucket replaces the contents of dst with the contents of src in one
// transaction.
func (s *Store) CopyBucket(src, dst string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(dst)); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to clear bucket %s: %w", dst, err)
		}
		to, err := tx.CreateBucket([]byte(dst))
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", dst, err)
		}

		from := tx.Bucket([]byte(src))
		if from == nil {
			return fmt.Errorf("bucket %s not found", src)
		}
		return from.ForEach(func(k, v []byte) error {
			return to.Put(append([]byte(nil), k...), append([]byte(nil), v...))
		})
	})
}

// Files lists the journal file names.
func (s *Store) Files() ([]string, error) {
	names, err := s.Keys(BucketFiles)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// ReadFile returns the entries of a journal file from the given bucket.
func (s *Store) ReadFile(bucketName, name string) ([]beancount.Directive, error) {
	var entries []beancount.Directive
	if err := s.Get(bucketName, name, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteFile stores the entries of a journal file, numbering their lines as
// beancount.FormatDirectives lays them out.
func (s *Store) WriteFile(name string, entries []beancount.Directive) error {
	return s.Put(BucketFiles, name, Renumber(name, entries))
}

// Renumber sets Filename and Lineno on each entry to match its position in
// the formatted file.
func Renumber(name string, entries []beancount.Directive) []beancount.Directive {
	out := make([]beancount.Directive, len(entries))
	line := 1
	for i, e := range entries {
		e.Filename = name
		e.Lineno = line
		out[i] = e
		// header, postings, blank separator
		line += 1 + len(e.Postings) + 1
	}
	return out
}

// LastBackup returns the Unix time of the last backup, or zero.
func (s *Store) LastBackup() (float64, error) {
	value, err := s.GetString(BucketMeta, KeyLastBackup)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(value, 64)
}
