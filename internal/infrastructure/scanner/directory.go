package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ballotscan/internal/errs"
	"ballotscan/internal/interpret"
	"ballotscan/internal/ports"
)

const scannedSubdir = "scanned"

// DirectoryScanner treats a directory of page images as a scanner feeder.
// Files sort lexicographically and pair up front/back; sidecar files ride
// along with their image. Scanned sheets move to a scanned/ subdirectory so
// the next batch starts empty.
type DirectoryScanner struct {
	dir string
}

func NewDirectoryScanner(dir string) (*DirectoryScanner, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("scanner directory is required")
	}
	return &DirectoryScanner{dir: dir}, nil
}

func (s *DirectoryScanner) ScanBatch(ctx context.Context) (ports.BatchControl, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images, err := listPageImages(s.dir)
	if err != nil {
		return nil, err
	}
	if len(images)%2 != 0 {
		return nil, fmt.Errorf("feeder holds %d page images, expected an even number", len(images))
	}

	sheets := make([]ports.SheetImages, 0, len(images)/2)
	for i := 0; i+1 < len(images); i += 2 {
		sheets = append(sheets, ports.SheetImages{Front: images[i], Back: images[i+1]})
	}
	return &directoryBatch{dir: s.dir, sheets: sheets}, nil
}

type directoryBatch struct {
	dir    string
	sheets []ports.SheetImages
	next   int
}

func (b *directoryBatch) ScanSheet(ctx context.Context) (ports.SheetImages, bool, error) {
	if err := ctx.Err(); err != nil {
		return ports.SheetImages{}, false, err
	}
	if b.next >= len(b.sheets) {
		return ports.SheetImages{}, false, nil
	}

	sheet := b.sheets[b.next]
	b.next++
	return sheet, true, nil
}

func (b *directoryBatch) End(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	destDir := filepath.Join(b.dir, scannedSubdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errs.Wrap(err, "create scanned directory")
	}

	for _, sheet := range b.sheets[:b.next] {
		for _, image := range []string{sheet.Front, sheet.Back} {
			if err := moveWithSidecars(image, destDir); err != nil {
				return err
			}
		}
	}
	return nil
}

func moveWithSidecars(image, destDir string) error {
	paths := []string{
		image,
		image + interpret.QrcodeSidecarSuffix,
		image + interpret.MarksSidecarSuffix,
	}
	for _, path := range paths {
		dest := filepath.Join(destDir, filepath.Base(path))
		if err := os.Rename(path, dest); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return errs.Wrapf(err, "move %s", path)
		}
	}
	return nil
}

func listPageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(err, "read scanner directory")
	}

	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, interpret.QrcodeSidecarSuffix) ||
			strings.HasSuffix(name, interpret.MarksSidecarSuffix) {
			continue
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		images = append(images, filepath.Join(dir, name))
	}
	sort.Strings(images)
	return images, nil
}
