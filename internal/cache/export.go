package cache

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/trove/internal/entry"
	"github.com/hpungsan/trove/internal/errors"
	"github.com/hpungsan/trove/internal/index"
)

// ExportInput contains parameters for Export.
type ExportInput struct {
	Path       string           // optional, default: <baseDir>/exports/<category|all>-<timestamp>.jsonl
	Categories []entry.Category // optional filter
	Since      int64            // optional, unix seconds, inclusive
}

// ExportOutput contains the result of Export.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	Skipped    int    `json:"skipped"`
	ExportedAt int64  `json:"exported_at"`
}

// exportHeader is the first line of a JSONL export file.
type exportHeader struct {
	TroveExport   bool   `json:"_trove_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// exportRecord is one entry line in a JSONL export file.
type exportRecord struct {
	Entry   *entry.Entry   `json:"entry"`
	Payload *entry.Payload `json:"payload"`
}

// Export writes matching entries and their payloads to a JSONL file. Entries
// whose payload is missing or corrupt are skipped and counted, not fatal.
// The file is written to a temp path and renamed into place so a failed
// export never clobbers a previous one.
func (c *Cache) Export(in ExportInput) (*ExportOutput, error) {
	now := time.Now()
	exportedAt := now.Unix()

	exportPath := in.Path
	if exportPath == "" {
		name := "all"
		if len(in.Categories) == 1 {
			name = string(in.Categories[0])
		}
		filename := fmt.Sprintf("%s-%s.jsonl", name, now.Format("2006-01-02T150405"))
		exportPath = filepath.Join(c.store.BaseDir(), "exports", filename)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return nil, errors.NewIOFailure("create export directory", err)
	}

	entries, err := index.Scan(c.db, index.Filter{Categories: in.Categories, Since: in.Since})
	if err != nil {
		return nil, err
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return nil, errors.NewInternal(err)
	}
	tempPath := exportPath + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return nil, errors.NewIOFailure("create export file", err)
	}

	// Temp file is removed on failure; any existing export stays intact.
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	if err := enc.Encode(exportHeader{
		TroveExport:   true,
		SchemaVersion: "1.0",
		ExportedAt:    exportedAt,
	}); err != nil {
		return nil, errors.NewIOFailure("write export header", err)
	}

	count := 0
	skipped := 0
	for i := range entries {
		e := &entries[i]
		p, err := c.store.Read(e.PayloadLocation)
		if err != nil {
			slog.Warn("skipping unreadable payload during export",
				"id", e.ID, "location", e.PayloadLocation, "error", err)
			skipped++
			continue
		}
		if err := enc.Encode(exportRecord{Entry: e, Payload: p}); err != nil {
			return nil, errors.NewIOFailure("write export record", err)
		}
		count++
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewIOFailure("sync export file", err)
	}
	if err := file.Close(); err != nil {
		return nil, errors.NewIOFailure("close export file", err)
	}
	file = nil

	if err := os.Rename(tempPath, exportPath); err != nil {
		return nil, errors.NewIOFailure("finalize export", err)
	}

	success = true
	return &ExportOutput{
		Path:       exportPath,
		Count:      count,
		Skipped:    skipped,
		ExportedAt: exportedAt,
	}, nil
}
