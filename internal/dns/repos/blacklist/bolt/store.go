package bolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/rr-dnsfilter/internal/dns/repos/blacklist"
)

var (
	bucketEntries = []byte("entries")
	bucketMeta    = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
	keySource  = []byte("source")
)

// boltStore implements blacklist.SnapshotStore using bbolt.
// Entries are keyed by their big-endian load position so iteration preserves order.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (blacklist.SnapshotStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketEntries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// Import swaps the entry bucket for a freshly written one in a single transaction.
func (s *boltStore) Import(lines []string, source string, updatedUnix int64) (int, error) {
	var n int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketEntries); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketEntries)
		if err != nil {
			return err
		}
		for _, line := range lines {
			entry, ok := blacklist.NormalizeEntry(line)
			if !ok {
				continue
			}
			if err := b.Put(u64(uint64(n)), []byte(entry)); err != nil {
				return err
			}
			n++
		}

		meta := tx.Bucket(bucketMeta)
		var version uint64
		if v := meta.Get(keyVersion); len(v) == 8 {
			version = binary.BigEndian.Uint64(v)
		}
		if err := meta.Put(keyVersion, u64(version+1)); err != nil {
			return err
		}
		if err := meta.Put(keyUpdated, u64(uint64(updatedUnix))); err != nil {
			return err
		}
		return meta.Put(keySource, []byte(source))
	})
	if err != nil {
		return 0, fmt.Errorf("import blacklist snapshot: %w", err)
	}
	return n, nil
}

// Lines returns the stored entries in import order.
func (s *boltStore) Lines() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketEntries)
		if b == nil {
			return nil
		}
		out = make([]string, 0, b.Stats().KeyN)
		return b.ForEach(func(_, v []byte) error {
			out = append(out, string(v))
			return nil
		})
	})
	return out, err
}

func (s *boltStore) Stats() blacklist.SnapshotStats {
	st := blacklist.SnapshotStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketEntries); b != nil {
			st.Entries = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			if v := b.Get(keyVersion); len(v) == 8 {
				st.Version = binary.BigEndian.Uint64(v)
			}
			if v := b.Get(keyUpdated); len(v) == 8 {
				st.UpdatedUnix = int64(binary.BigEndian.Uint64(v))
			}
			st.Source = string(b.Get(keySource))
		}
		return nil
	})
	return st
}

func u64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
