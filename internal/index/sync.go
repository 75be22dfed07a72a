package index

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/notepub/internal/models"
	"github.com/starford/notepub/internal/storage"
)

// Sync brings the index up to date with the record files in store:
//   - record files missing from the index are parsed and inserted
//   - index entries whose file no longer exists are removed
//
// Unreadable or malformed records are logged and skipped.
func Sync(db CaptureIndex, store storage.Provider, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	metas, err := store.List("", ".json")
	if err != nil {
		return err
	}
	indexed, err := db.AllFiles()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if _, ok := indexed[m.Path]; ok {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("index: read failed", slog.String("file", m.Path), slog.String("error", err.Error()))
			continue
		}
		var rec models.CapturedRequest
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Warn("index: malformed record", slog.String("file", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := db.InsertCapture(m.Path, rec); err != nil {
			logger.Warn("index: insert failed", slog.String("file", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("index: indexed", slog.String("file", m.Path))
		}
	}

	for f := range indexed {
		if _, ok := disk[f]; !ok {
			if err := db.DeleteCapture(f); err != nil {
				logger.Warn("index: delete failed", slog.String("file", f), slog.String("error", err.Error()))
			} else {
				logger.Debug("index: removed stale", slog.String("file", f))
			}
		}
	}
	return nil
}
