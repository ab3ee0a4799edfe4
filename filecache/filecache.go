// Package filecache contains the storage of a serialized index in a file.
package filecache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/ioutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/AdguardTeam/urlindex"
	"github.com/c2h5oh/datasize"
	renameio "github.com/google/renameio/v2"
)

// Config is the configuration structure for the file-cache storage.
type Config struct {
	// Logger is used for logging the operation of the storage.  It must not be
	// nil.
	Logger *slog.Logger

	// Path is the path to the index file.  It must be set.
	Path string

	// MaxSize is the size limit of the index file.  Files of this size or
	// larger are not loaded.  It must be positive.
	MaxSize datasize.ByteSize
}

// type check
var _ validate.Interface = (*Config)(nil)

// Validate implements the [validate.Interface] interface for *Config.
func (c *Config) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return errors.Join(
		validate.NotNil("Logger", c.Logger),
		validate.NotEmpty("Path", c.Path),
		validate.Positive("MaxSize", c.MaxSize),
	)
}

// Storage is the file-cache storage of an index.
type Storage struct {
	logger  *slog.Logger
	path    string
	maxSize datasize.ByteSize
}

// New returns a new file-cache storage.  c must not be nil and must be valid.
func New(c *Config) (s *Storage) {
	return &Storage{
		logger:  c.Logger,
		path:    c.Path,
		maxSize: c.MaxSize,
	}
}

// Load reads the index from the file.  If the file doesn't exist, fl and err
// are nil.  An error about the structure of the file matches
// [filterlist.ErrMalformed], and the file must be rewritten.  A file of
// MaxSize bytes or larger isn't read, and the error is an [*ioutil.LimitError]
// instead.
func (s *Storage) Load(ctx context.Context) (fl *urlindex.FilterList, err error) {
	s.logger.InfoContext(ctx, "loading", "path", s.path)

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.WarnContext(ctx, "file not found")

			return nil, nil
		}

		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	b, err := io.ReadAll(ioutil.LimitReader(f, s.maxSize.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", s.path, err)
	}

	fl, err = urlindex.FromRaw(b)
	if err != nil {
		return nil, fmt.Errorf("loading %q: %w", s.path, err)
	}

	s.logger.InfoContext(ctx, "loaded", "rules", fl.RulesCount(), "size", datasize.ByteSize(len(b)))

	return fl, nil
}

// Store writes the index into the file atomically.
func (s *Storage) Store(ctx context.Context, fl *urlindex.FilterList) (err error) {
	b := fl.Bytes()

	s.logger.InfoContext(ctx, "saving", "path", s.path, "size", datasize.ByteSize(len(b)))
	defer s.logger.InfoContext(ctx, "saved", "path", s.path)

	// Don't wrap the error, because it's informative enough as is.
	return renameio.WriteFile(s.path, b, 0o600)
}
