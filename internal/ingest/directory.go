package ingest

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
)

// ScanDirectory walks root and returns every supported document, sorted by
// path. Unreadable entries are counted as failures and skipped.
func ScanDirectory(root string, skipHidden bool, logger *slog.Logger) ([]File, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		files []File
		stats DirStats
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			logger.Warn("ingest.walk.failed", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			logger.Warn("ingest.stat.failed", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		stats.Matched++
		files = append(files, File{Path: path, MIMEType: MIMEFor(path), Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	logger.Info("ingest.scan.ok", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
	return files, stats, nil
}
