package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/okian/listeval/internal/domain/model"
	"github.com/okian/listeval/pkg/logger"
	"github.com/okian/listeval/pkg/metrics"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileStore keeps one result file per submission below a results
// directory, one sub-directory per survey.
type FileStore struct {
	dir         string
	format      Format
	concurrency int
	logger      logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewFileStore(dir string, opts ...Option) *FileStore {
	s := &FileStore{
		dir:         dir,
		format:      FormatXLSX,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir is the results directory.
func (s *FileStore) Dir() string { return s.dir }

// Format is the format used for new files.
func (s *FileStore) Format() Format { return s.format }

// Path returns where the batch for key is written.
func (s *FileStore) Path(key model.SubmissionKey) string {
	return s.pathOf(key, s.format)
}

func (s *FileStore) pathOf(key model.SubmissionKey, f Format) string {
	return filepath.Join(s.dir, filepath.FromSlash(key.RelPath(string(f))))
}

// Completed reports whether a file for key exists in any supported format.
func (s *FileStore) Completed(_ context.Context, key model.SubmissionKey) bool {
	for _, f := range []Format{FormatXLSX, FormatCSV} {
		if _, err := os.Stat(s.pathOf(key, f)); err == nil {
			return true
		}
	}
	return false
}

// Save encodes the batch and creates its file exclusively. An existing file
// is never touched.
func (s *FileStore) Save(ctx context.Context, batch model.SubmissionBatch) (string, error) {
	if len(batch.Records) == 0 {
		return "", ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := s.Path(batch.Key)
	if s.Completed(ctx, batch.Key) {
		return path, ErrAlreadyCompleted
	}

	data, err := encode(s.format, batch.Records)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return path, ErrAlreadyCompleted
		}
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	s.logger.Info(ctx, "results stored",
		logger.String("path", path),
		logger.String("rater", batch.Key.Rater),
		logger.Int("records", len(batch.Records)))
	return path, nil
}

// LoadAll reads a snapshot of every result file in the results directory
// and its immediate sub-directories, decoding them concurrently. Records
// are returned in relative path order. A file that cannot be decoded
// fails the whole load.
func (s *FileStore) LoadAll(ctx context.Context) ([]model.RatingRecord, int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, 0, fmt.Errorf("read results dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		if !e.IsDir() {
			if _, ok := formatOf(e.Name()); ok {
				files = append(files, e.Name())
			}
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, 0, fmt.Errorf("read results dir %s: %w", e.Name(), err)
		}
		for _, f := range sub {
			if f.IsDir() || hidden(f.Name()) {
				continue
			}
			if _, ok := formatOf(f.Name()); ok {
				files = append(files, filepath.Join(e.Name(), f.Name()))
			}
		}
	}
	sort.Strings(files)

	parts := make([][]model.RatingRecord, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := s.readFile(name)
			if err != nil {
				metrics.RecordResultFileError()
				return err
			}
			parts[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var out []model.RatingRecord
	for _, p := range parts {
		out = append(out, p...)
	}
	s.logger.Debug(ctx, "results loaded",
		logger.Int("files", len(files)),
		logger.Int("records", len(out)))
	return out, len(files), nil
}

func (s *FileStore) readFile(name string) ([]model.RatingRecord, error) {
	format, _ := formatOf(name)
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	recs, err := decode(format, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return recs, nil
}

// hidden skips dotfiles and office lock files.
func hidden(name string) bool {
	return strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".")
}

func formatOf(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, true
	case ".csv":
		return FormatCSV, true
	}
	return "", false
}

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}
