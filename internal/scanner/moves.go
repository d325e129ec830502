package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"media-index/internal/logging"
	"media-index/internal/mediatypes"
)

// Move reasons recorded in move_history.
const (
	reasonDelete = "delete"
	reasonEdit   = "edit"
)

// DeleteFile relocates a file into the quarantine folder instead of
// unlinking it, records the move for later restore, and repaths the
// catalog row. Returns the quarantine path.
func (s *Scanner) DeleteFile(path string) (string, error) {
	return s.relocate(path, mediatypes.QuarantineFolder, reasonDelete)
}

// MarkForEdit relocates a file into the edit folder so an external editor
// can pick it up. Returns the new path.
func (s *Scanner) MarkForEdit(path string) (string, error) {
	return s.relocate(path, mediatypes.EditFolder, reasonEdit)
}

func (s *Scanner) relocate(path, folder, reason string) (string, error) {
	if !withinRoot(s.root, path) {
		return "", fmt.Errorf("%s is outside the media root", path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("source file: %w", err)
	}

	destDir := filepath.Join(s.root, folder)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", destDir, err)
	}

	dest, err := uniqueDest(destDir, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("moving %s: %w", path, err)
	}

	if _, err := s.db.RecordMove(path, dest, reason); err != nil {
		logging.Error("Move of %s succeeded but history write failed: %v", path, err)
	}
	if err := s.db.UpdatePath(path, dest, filepath.Base(dest), destDir); err != nil {
		logging.Error("Move of %s succeeded but catalog repath failed: %v", path, err)
	}

	logging.Info("Relocated %s to %s (%s)", path, dest, reason)
	return dest, nil
}

// RestoreFile moves a previously relocated file back to where it came from
// and closes the move record. path is the file's current location inside a
// special folder.
func (s *Scanner) RestoreFile(path string) (string, error) {
	rec, err := s.db.MoveByNewPath(path)
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", fmt.Errorf("no move history for %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(rec.OriginalPath), 0o755); err != nil {
		return "", fmt.Errorf("recreating original folder: %w", err)
	}
	if _, err := os.Stat(rec.OriginalPath); err == nil {
		return "", fmt.Errorf("restore target %s already exists", rec.OriginalPath)
	}
	if err := os.Rename(path, rec.OriginalPath); err != nil {
		return "", fmt.Errorf("restoring %s: %w", path, err)
	}

	if err := s.db.MarkRestored(rec.ID); err != nil {
		logging.Error("Restore of %s succeeded but history update failed: %v", path, err)
	}
	if err := s.db.UpdatePath(path, rec.OriginalPath,
		filepath.Base(rec.OriginalPath), filepath.Dir(rec.OriginalPath)); err != nil {
		logging.Error("Restore of %s succeeded but catalog repath failed: %v", path, err)
	}

	logging.Info("Restored %s to %s", path, rec.OriginalPath)
	return rec.OriginalPath, nil
}

// uniqueDest finds a destination name that does not collide, appending a
// counter before the extension when it does.
func uniqueDest(dir, name string) (string, error) {
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, nil
	}
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]
	for i := 1; i < 1000; i++ {
		dest = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", name, dir)
}

func withinRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
