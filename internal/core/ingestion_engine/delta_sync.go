package ingestion_engine

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/models"
)

// DeltaStats counts what one pass over the change feed did.
type DeltaStats struct {
	Pages    int
	Seen     int
	Inserted int
	Updated  int
	Deleted  int
	Ignored  int
}

// DeltaSyncer applies drive changes to the sync store and advances the cursor.
type DeltaSyncer struct {
	feed     core.ChangeFeed
	cursors  core.CursorStore
	store    core.SyncStore
	timeout  time.Duration
	log      *slog.Logger
	progress ProgressFunc
}

func NewDeltaSyncer(feed core.ChangeFeed, cursors core.CursorStore, store core.SyncStore, timeout time.Duration) *DeltaSyncer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DeltaSyncer{feed: feed, cursors: cursors, store: store, timeout: timeout, log: logging.Logger()}
}

// OnProgress installs a callback invoked for every document item applied from the feed.
func (d *DeltaSyncer) OnProgress(fn ProgressFunc) {
	d.progress = fn
}

func (d *DeltaSyncer) SetLogger(l *slog.Logger) {
	d.log = l
}

// ResetCursor drops the stored cursor; the next Sync enumerates the whole drive.
func (d *DeltaSyncer) ResetCursor(ctx context.Context) error {
	if err := d.cursors.Reset(ctx); err != nil {
		return core.NewPersistenceError("reset delta cursor", err)
	}
	d.log.Info("DeltaSync: cursor reset, next pass enumerates the whole drive")
	return nil
}

// Sync pages through the feed from the stored cursor. The new cursor is saved only
// once the feed reports completion, so an interrupted pass is replayed next run.
func (d *DeltaSyncer) Sync(ctx context.Context) (DeltaStats, error) {
	var stats DeltaStats

	cursor, err := d.cursors.Load(ctx)
	if err != nil {
		return stats, core.NewPersistenceError("load delta cursor", err)
	}
	if cursor == "" {
		d.log.Info("DeltaSync: no stored cursor, enumerating the whole drive")
	}

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		page, err := d.feed.GetChanges(callCtx, cursor)
		cancel()
		if err != nil {
			return stats, err
		}
		stats.Pages++

		for _, item := range page.Items {
			if err := d.apply(ctx, item, &stats); err != nil {
				return stats, err
			}
		}

		if page.NextCursor != "" {
			cursor = page.NextCursor
			continue
		}
		if page.DeltaCursor != "" {
			if err := d.cursors.Save(ctx, page.DeltaCursor); err != nil {
				return stats, core.NewPersistenceError("save delta cursor", err)
			}
		}
		break
	}

	d.log.Info("DeltaSync: complete", "pages", stats.Pages, "seen", stats.Seen,
		"inserted", stats.Inserted, "updated", stats.Updated, "deleted", stats.Deleted)
	return stats, nil
}

func (d *DeltaSyncer) apply(ctx context.Context, item models.DriveItem, stats *DeltaStats) error {
	if item.Deleted {
		if err := d.store.MarkDeleted(ctx, item.ID); err != nil {
			return core.NewPersistenceError("mark deleted "+item.ID, err)
		}
		stats.Deleted++
		return nil
	}

	if !item.IsFile || item.Name == "" || core.FormatOf(item.Name) == "" {
		stats.Ignored++
		return nil
	}

	stats.Seen++
	if d.progress != nil {
		d.progress(stats.Seen, item)
	}

	inserted, err := d.store.UpsertObservedFile(ctx, fileFromItem(item))
	if err != nil {
		return core.NewPersistenceError("record "+item.ID, err)
	}
	if inserted {
		stats.Inserted++
	} else {
		stats.Updated++
	}
	return nil
}

func fileFromItem(item models.DriveItem) *models.FileRecord {
	return &models.FileRecord{
		ID:                   item.ID,
		FileName:             item.Name,
		FilePath:             itemPath(item),
		FileURL:              item.WebURL,
		FileSize:             item.Size,
		CreatedDateTime:      item.CreatedDateTime,
		CreatedBy:            item.CreatedBy,
		LastModifiedDateTime: item.LastModifiedDateTime,
		LastModifiedBy:       item.LastModifiedBy,
	}
}

// itemPath drops the drive prefix (everything up to the first ':') from the parent path
// and appends the item name: "/drives/x/root:/Reports" + "a.pdf" -> "/Reports/a.pdf".
func itemPath(item models.DriveItem) string {
	parent := item.ParentPath
	if idx := strings.Index(parent, ":"); idx >= 0 {
		parent = parent[idx+1:]
	}
	return parent + "/" + item.Name
}
