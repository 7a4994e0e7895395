// Package archive exports and imports whole-store snapshots through
// gocloud.dev blob buckets (file://, mem:// and any registered driver).
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/roach88/flowtree/internal/ir"
	"github.com/roach88/flowtree/internal/store"
)

// FormatVersion is written into every snapshot. Import rejects other
// versions.
const FormatVersion = 1

var (
	// ErrNotFound is returned by Import when the key does not exist.
	ErrNotFound = errors.New("snapshot not found")

	// ErrStoreNotEmpty is returned by Import when the target has messages.
	ErrStoreNotEmpty = errors.New("target store is not empty")

	// ErrUnsupportedVersion is returned for snapshots of another format.
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

// Snapshot is the exported document.
type Snapshot struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	Messages   []ir.Message `json:"messages"`
}

// Archive reads and writes snapshots in one bucket.
type Archive struct {
	bucket *blob.Bucket
	now    func() time.Time
}

// Open opens the bucket at bucketURL.
func Open(ctx context.Context, bucketURL string) (*Archive, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	return &Archive{bucket: bucket, now: time.Now}, nil
}

// Close releases the bucket.
func (a *Archive) Close() error {
	return a.bucket.Close()
}

// Export writes every message of b to key and returns the message count.
func (a *Archive) Export(ctx context.Context, b store.Backend, key string) (int, error) {
	msgs, err := store.ReadAll(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("read store: %w", err)
	}

	data, err := json.Marshal(Snapshot{
		Version:    FormatVersion,
		ExportedAt: a.now().UTC(),
		Messages:   msgs,
	})
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	opts := &blob.WriterOptions{ContentType: "application/json"}
	if err := a.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return 0, fmt.Errorf("write %s: %w", key, err)
	}
	return len(msgs), nil
}

// Load reads and validates the snapshot at key without touching a store.
func (a *Archive) Load(ctx context.Context, key string) (Snapshot, error) {
	data, err := a.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Snapshot{}, fmt.Errorf("read %s: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if snap.Version != FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, snap.Version)
	}
	for _, m := range snap.Messages {
		if err := ir.ValidateMessagePath(m.FlowID, m.Identifier); err != nil {
			return Snapshot{}, fmt.Errorf("message %s: %w", m.ID, err)
		}
	}
	return snap, nil
}

// Import restores the snapshot at key into b in one transaction. The
// target must be empty.
func (a *Archive) Import(ctx context.Context, b store.Backend, key string) (int, error) {
	snap, err := a.Load(ctx, key)
	if err != nil {
		return 0, err
	}

	err = b.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Count(ctx, nil)
		if err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %d messages", ErrStoreNotEmpty, existing)
		}
		for _, m := range snap.Messages {
			if err := tx.InsertOne(ctx, m); err != nil {
				return fmt.Errorf("insert %s: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(snap.Messages), nil
}

// Export opens bucketURL, writes a snapshot of b to key and closes it.
func Export(ctx context.Context, b store.Backend, bucketURL, key string) (int, error) {
	a, err := Open(ctx, bucketURL)
	if err != nil {
		return 0, err
	}
	defer a.Close()
	return a.Export(ctx, b, key)
}

// Import opens bucketURL and restores the snapshot at key into b.
func Import(ctx context.Context, b store.Backend, bucketURL, key string) (int, error) {
	a, err := Open(ctx, bucketURL)
	if err != nil {
		return 0, err
	}
	defer a.Close()
	return a.Import(ctx, b, key)
}
