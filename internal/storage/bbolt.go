package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"mcpfinder-go/internal/registry"
)

// Bucket names for the bbolt database
const (
	ServersBucket = "servers"
	SlugsBucket   = "slugs"
	SyncLogBucket = "synclog"
	MetaBucket    = "meta"
)

// Meta keys
const SchemaVersionKey = "schema"

// CurrentSchemaVersion is bumped on incompatible layout changes
const CurrentSchemaVersion = 1

// DatabaseFileName is the bbolt file under the data directory
const DatabaseFileName = "data.db"

// ErrNotFound is returned when a lookup matches no record
var ErrNotFound = errors.New("not found")

// ErrCorrupt is returned when the database schema does not match this build
var ErrCorrupt = errors.New("database schema is newer than this build")

// BoltDB wraps bolt database operations
type BoltDB struct {
	db     *bbolt.DB
	logger *zap.SugaredLogger
}

// NewBoltDB opens or creates the database at dataDir/data.db
func NewBoltDB(dataDir string, logger *zap.SugaredLogger) (*BoltDB, error) {
	dbPath := filepath.Join(dataDir, DatabaseFileName)

	db, err := bbolt.Open(dbPath, 0644, &bbolt.Options{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", dbPath, err)
	}

	boltDB := &BoltDB{
		db:     db,
		logger: logger,
	}

	if err := boltDB.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return boltDB, nil
}

// Close closes the database
func (b *BoltDB) Close() error {
	return b.db.Close()
}

// initBuckets creates required buckets and verifies the schema version
func (b *BoltDB) initBuckets() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		buckets := []string{
			ServersBucket,
			SlugsBucket,
			SyncLogBucket,
			MetaBucket,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}

		meta := tx.Bucket([]byte(MetaBucket))
		if existing := meta.Get([]byte(SchemaVersionKey)); existing != nil {
			version := binary.LittleEndian.Uint64(existing)
			if version > CurrentSchemaVersion {
				return fmt.Errorf("%w: found schema %d, supported %d", ErrCorrupt, version, CurrentSchemaVersion)
			}
		}

		versionBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(versionBytes, CurrentSchemaVersion)
		return meta.Put([]byte(SchemaVersionKey), versionBytes)
	})
}

// GetSchemaVersion returns the current schema version
func (b *BoltDB) GetSchemaVersion() (uint64, error) {
	var version uint64
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(MetaBucket))
		if bucket == nil {
			return fmt.Errorf("meta bucket not found")
		}

		versionBytes := bucket.Get([]byte(SchemaVersionKey))
		if versionBytes == nil {
			version = 0
			return nil
		}

		version = binary.LittleEndian.Uint64(versionBytes)
		return nil
	})

	return version, err
}

// Server operations

// UpsertServers replaces server rows by id inside one transaction and
// returns the merged records as written. Descriptive and package
// fields are overwritten by the incoming values; sources accumulate.
func (b *BoltDB) UpsertServers(records []*registry.ServerRecord) ([]*registry.ServerRecord, error) {
	merged := make([]*registry.ServerRecord, 0, len(records))

	err := b.db.Update(func(tx *bbolt.Tx) error {
		servers := tx.Bucket([]byte(ServersBucket))
		slugs := tx.Bucket([]byte(SlugsBucket))

		for _, rec := range records {
			final := rec
			if data := servers.Get([]byte(rec.ID)); data != nil {
				existing := &registry.ServerRecord{}
				if err := existing.UnmarshalBinary(data); err != nil {
					return fmt.Errorf("failed to decode existing record %s: %w", rec.ID, err)
				}
				existing.MergeFrom(rec)
				final = existing
			}

			data, err := final.MarshalBinary()
			if err != nil {
				return fmt.Errorf("failed to encode record %s: %w", final.ID, err)
			}
			if err := servers.Put([]byte(final.ID), data); err != nil {
				return err
			}
			if err := slugs.Put([]byte(final.Slug), []byte(final.ID)); err != nil {
				return err
			}

			merged = append(merged, final)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return merged, nil
}

// GetServer retrieves a server record by id
func (b *BoltDB) GetServer(id string) (*registry.ServerRecord, error) {
	var record *registry.ServerRecord

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ServersBucket))
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		record = &registry.ServerRecord{}
		return record.UnmarshalBinary(data)
	})

	return record, err
}

// GetServerBySlug retrieves a server record via the slug index
func (b *BoltDB) GetServerBySlug(slug string) (*registry.ServerRecord, error) {
	var record *registry.ServerRecord

	err := b.db.View(func(tx *bbolt.Tx) error {
		slugs := tx.Bucket([]byte(SlugsBucket))
		id := slugs.Get([]byte(slug))
		if id == nil {
			return ErrNotFound
		}

		servers := tx.Bucket([]byte(ServersBucket))
		data := servers.Get(id)
		if data == nil {
			return ErrNotFound
		}

		record = &registry.ServerRecord{}
		return record.UnmarshalBinary(data)
	})

	return record, err
}

// ForEachServer iterates all server records
func (b *BoltDB) ForEachServer(fn func(*registry.ServerRecord) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(ServersBucket))
		return bucket.ForEach(func(_, v []byte) error {
			record := &registry.ServerRecord{}
			if err := record.UnmarshalBinary(v); err != nil {
				return err
			}
			return fn(record)
		})
	})
}

// CountServers returns the number of stored server records
func (b *BoltDB) CountServers() (int, error) {
	var count int
	err := b.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(ServersBucket)).Stats().KeyN
		return nil
	})
	return count, err
}

// Sync log operations

// GetSyncLog retrieves the sync log row for a source
func (b *BoltDB) GetSyncLog(source string) (*registry.SyncLogRecord, error) {
	var record *registry.SyncLogRecord

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(SyncLogBucket))
		data := bucket.Get([]byte(source))
		if data == nil {
			return ErrNotFound
		}

		record = &registry.SyncLogRecord{}
		return record.UnmarshalBinary(data)
	})

	return record, err
}

// SaveSyncLog stores the sync log row for a source
func (b *BoltDB) SaveSyncLog(record *registry.SyncLogRecord) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(SyncLogBucket))
		data, err := record.MarshalBinary()
		if err != nil {
			return err
		}
		return bucket.Put([]byte(record.Source), data)
	})
}

// ListSyncLogs returns the sync log rows for every synced source
func (b *BoltDB) ListSyncLogs() ([]*registry.SyncLogRecord, error) {
	var records []*registry.SyncLogRecord

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(SyncLogBucket))
		return bucket.ForEach(func(_, v []byte) error {
			record := &registry.SyncLogRecord{}
			if err := record.UnmarshalBinary(v); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})

	return records, err
}
