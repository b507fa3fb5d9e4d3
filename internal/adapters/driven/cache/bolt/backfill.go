// Package bolt provides a bbolt-backed implementation of the backfill
// cache. Batches are written to disk immediately after fetch, before
// any embedding or index call, so a crash mid-pipeline loses no
// fetched data.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

var (
	bucketBatches = []byte("batches")
	bucketKeys    = []byte("batch_keys")
)

// Cache is a durable, restart-safe backfill cache.
type Cache struct {
	db *bbolt.DB
}

var _ driven.BackfillCache = (*Cache)(nil)

// Open opens (or creates) the cache database at path.
func Open(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening backfill cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketBatches, bucketKeys} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// batchKey orders batches by source, then window start, then id, so a
// prefix cursor scan yields a source's batches oldest window first.
func batchKey(batch domain.BackfillBatch) []byte {
	return []byte(fmt.Sprintf("%s\x00%020d\x00%s", batch.Source, batch.WindowStart.UnixNano(), batch.ID))
}

func sourcePrefix(sourceID string) []byte {
	return []byte(sourceID + "\x00")
}

// Put durably stores a batch. bbolt fsyncs on commit, so once Put
// returns the batch survives a crash.
func (c *Cache) Put(_ context.Context, batch domain.BackfillBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshalling batch %q: %w", batch.ID, err)
	}
	key := batchKey(batch)

	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketBatches).Put(key, data); err != nil {
			return fmt.Errorf("storing batch %q: %w", batch.ID, err)
		}
		if err := tx.Bucket(bucketKeys).Put([]byte(batch.ID), key); err != nil {
			return fmt.Errorf("indexing batch %q: %w", batch.ID, err)
		}
		return nil
	})
}

// ListPending returns batches that still need embedding and upsert,
// oldest window first.
func (c *Cache) ListPending(ctx context.Context, sourceID string) ([]domain.BackfillBatch, error) {
	all, err := c.ListCached(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	var pending []domain.BackfillBatch
	for _, b := range all {
		if b.Status != domain.BatchIngested {
			pending = append(pending, b)
		}
	}
	return pending, nil
}

// ListCached returns all batches for a source regardless of status.
func (c *Cache) ListCached(_ context.Context, sourceID string) ([]domain.BackfillBatch, error) {
	var batches []domain.BackfillBatch
	err := c.db.View(func(tx *bbolt.Tx) error {
		cur := tx.Bucket(bucketBatches).Cursor()
		prefix := sourcePrefix(sourceID)
		for k, v := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = cur.Next() {
			var batch domain.BackfillBatch
			if err := json.Unmarshal(v, &batch); err != nil {
				return fmt.Errorf("unmarshalling batch at %q: %w", k, err)
			}
			batches = append(batches, batch)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// MarkIngested marks a batch fully upserted and drops its items; the
// record of the batch itself is kept for inspection.
func (c *Cache) MarkIngested(_ context.Context, batchID string) error {
	return c.update(batchID, func(batch *domain.BackfillBatch) {
		batch.Status = domain.BatchIngested
		batch.Items = nil
	})
}

// MarkFailed marks a batch failed, retaining its items for retry.
func (c *Cache) MarkFailed(_ context.Context, batchID string, cause error) error {
	return c.update(batchID, func(batch *domain.BackfillBatch) {
		batch.Status = domain.BatchFailed
		batch.Attempts++
		if cause != nil {
			batch.LastError = cause.Error()
		}
	})
}

func (c *Cache) update(batchID string, mutate func(*domain.BackfillBatch)) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		key := tx.Bucket(bucketKeys).Get([]byte(batchID))
		if key == nil {
			return fmt.Errorf("batch %q: %w", batchID, domain.ErrNotFound)
		}
		data := tx.Bucket(bucketBatches).Get(key)
		if data == nil {
			return fmt.Errorf("batch %q: %w", batchID, domain.ErrNotFound)
		}

		var batch domain.BackfillBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			return fmt.Errorf("unmarshalling batch %q: %w", batchID, err)
		}
		mutate(&batch)

		updated, err := json.Marshal(batch)
		if err != nil {
			return fmt.Errorf("marshalling batch %q: %w", batchID, err)
		}
		return tx.Bucket(bucketBatches).Put(key, updated)
	})
}
