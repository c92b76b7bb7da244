package sink

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

var (
	invalidChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	trailingDots   = regexp.MustCompile(`\.+$`)
	repeatedSpaces = regexp.MustCompile(`\s+`)
)

// FileSink streams written bytes into a file on disk.
type FileSink struct {
	path string

	mu     sync.Mutex
	file   *os.File
	closed bool
}

// CreateFile creates (or truncates) path and returns a sink writing to it.
// Parent directories are created as needed.
func CreateFile(path string) (*FileSink, error) {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: create %s", path)
	}
	return &FileSink{path: path, file: f}, nil
}

// Path returns the file the sink writes to.
func (s *FileSink) Path() string {
	return s.path
}

// Write appends p to the file.
func (s *FileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.file.Write(p)
}

// Close closes the underlying file. Only the first call touches the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.file.Close(); err != nil {
		return eris.Wrapf(err, "sink: close %s", s.path)
	}
	return nil
}

// Open reopens the file for reading.
func (s *FileSink) Open() (io.ReadCloser, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, eris.Wrapf(err, "sink: reopen %s", s.path)
	}
	return f, nil
}

// FileFactory creates a FileSink for a fixed destination.
//
// Every call to NewSink truncates the destination, so a factory should be
// used for a single fetch.
type FileFactory struct {
	Dir  string
	Name string

	mu   sync.Mutex
	last *FileSink
}

// NewFileFactory returns a factory writing dir/SanitizeFileName(name).
func NewFileFactory(dir, name string) *FileFactory {
	return &FileFactory{Dir: dir, Name: name}
}

// Path returns the destination path.
func (f *FileFactory) Path() string {
	return filepath.Join(f.Dir, SanitizeFileName(f.Name))
}

// NewSink implements Factory.
func (f *FileFactory) NewSink() (ByteSink, error) {
	s, err := CreateFile(f.Path())
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.last = s
	f.mu.Unlock()
	return s, nil
}

// Last returns the most recently created sink, or nil.
func (f *FileFactory) Last() *FileSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// SanitizeFileName removes or replaces characters that are invalid in file names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars 0x00-0x1f) become underscores
//   - Trailing dots are removed (Windows limitation)
//   - Runs of whitespace collapse to a single space
//   - Trailing whitespace is removed
//
// An empty result becomes "download".
func SanitizeFileName(name string) string {
	name = invalidChars.ReplaceAllString(name, "_")
	name = trailingDots.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	name = strings.TrimRight(name, " ")
	if name == "" {
		return "download"
	}
	return name
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return eris.Wrapf(err, "sink: mkdir %s", path)
	}
	return nil
}
