package session

import "context"

// Restore resolves the startup session.
//
// The primary store wins when it holds a snapshot. Otherwise the legacy
// file is consulted; when found, its contents migrate into the primary and
// the file is deleted, so later launches take the primary path. The
// migration is idempotent: a failed primary write leaves the legacy file
// in place for the next attempt.
//
// Returns (nil, nil) when neither source yields a non-empty tab list; the
// caller starts with one fresh tab.
func Restore(ctx context.Context, primary Store, legacy *FileStore) (*Snapshot, error) {
	snap, err := primary.Load(ctx)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		return snap, nil
	}

	if legacy == nil {
		return nil, nil
	}
	snap, err = legacy.Load(ctx)
	if err != nil || snap == nil {
		return nil, err
	}

	// One-time migration. The legacy file is removed only after the
	// snapshot is durably in the primary.
	if err := primary.Save(ctx, snap); err == nil {
		_ = legacy.Clear(ctx)
	}
	return snap, nil
}
