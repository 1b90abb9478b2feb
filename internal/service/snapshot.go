package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/sepworks/sepd/internal/filestore"
)

// SnapshotArchiver keeps the raw extracted fragment of each scrape in a
// filestore. Archival is best-effort: a failure is logged and never blocks
// the save. A nil archiver disables snapshots.
type SnapshotArchiver struct {
	store filestore.Store
}

func NewSnapshotArchiver(store filestore.Store) *SnapshotArchiver {
	if store == nil {
		return nil
	}
	return &SnapshotArchiver{store: store}
}

func (a *SnapshotArchiver) Archive(ctx context.Context, entryID, html string) {
	if a == nil || a.store == nil || html == "" {
		return
	}
	key := entryID + ".html"
	if err := a.store.Save(ctx, key, []byte(html)); err != nil {
		logutil.GetLogger(ctx).Warn("snapshot archival failed",
			zap.String("entry_id", entryID),
			zap.Error(err))
		return
	}
	logutil.GetLogger(ctx).Debug("snapshot archived", zap.String("key", key))
}
