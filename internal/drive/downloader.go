package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrFileNotFound is returned when a requested input is absent from the folder.
var ErrFileNotFound = errors.New("file not found in drive folder")

// FileSource lists and downloads files from a folder.
type FileSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*File, error)
	DownloadFile(ctx context.Context, fileID string, w io.Writer) error
}

// Downloader pulls the simulation input feeds from a Drive folder.
type Downloader struct {
	source FileSource
}

func NewDownloader(source FileSource) *Downloader {
	return &Downloader{source: source}
}

// DownloadInputs downloads each named file from the folder into destDir and
// returns the local paths in the order of names. Names match case-insensitively.
func (d *Downloader) DownloadInputs(ctx context.Context, folderID, destDir string, names []string) ([]string, error) {
	if destDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*File, len(files))
	for _, f := range files {
		byName[strings.ToLower(f.Name)] = f
	}

	var missing []string
	for _, name := range names {
		if _, ok := byName[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, strings.Join(missing, ", "))
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f := byName[strings.ToLower(name)]
		localPath := filepath.Join(destDir, name)
		if err := d.download(ctx, f, localPath); err != nil {
			return nil, err
		}
		log.Info().Str("file", f.Name).Str("path", localPath).Msg("Downloaded input from drive")
		paths = append(paths, localPath)
	}

	return paths, nil
}

// download writes to a temp file first so a failed transfer never replaces an existing input.
func (d *Downloader) download(ctx context.Context, f *File, localPath string) error {
	tmp, err := os.CreateTemp(filepath.Dir(localPath), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", f.Name, err)
	}
	defer os.Remove(tmp.Name())

	if err := d.source.DownloadFile(ctx, f.ID, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to download %s: %w", f.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", f.Name, err)
	}
	return nil
}
