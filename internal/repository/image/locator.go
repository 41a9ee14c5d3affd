// Package image resolves the per-report image files that sit next to the corpus.
package image

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/legojeon/report-coach/internal/db"
)

// suffix is appended to the report number to form the file name.
const suffix = "_image.png"

// Locator looks up "<number>_image.png" under a directory.
type Locator struct {
	dir    string
	logger *zap.Logger
}

// NewLocator creates a locator rooted at dir. An empty dir disables lookups.
func NewLocator(dir string, logger *zap.Logger) *Locator {
	return &Locator{dir: dir, logger: logger}
}

// FileName returns the image file name for a report number.
func FileName(number string) string { return number + suffix }

// Reference returns "<number>_image.png" when the file exists, otherwise "".
// Lookup errors are logged at debug and treated as absence.
func (l *Locator) Reference(number string) string {
	if _, err := l.Path(number); err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			l.logger.Debug("Image lookup failed", zap.String("number", number), zap.Error(err))
		}
		return ""
	}
	return FileName(number)
}

// Path returns the absolute file path for a report image,
// db.ErrKeyNotFound when the number is not a plain identifier or the file is absent.
func (l *Locator) Path(number string) (string, error) {
	if l.dir == "" || !db.IsValidIdentifier(number) {
		return "", db.ErrKeyNotFound
	}

	p := filepath.Join(l.dir, FileName(number))
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", db.ErrKeyNotFound
		}
		return "", err
	}
	if info.IsDir() {
		return "", db.ErrKeyNotFound
	}
	return p, nil
}
