package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	dirPattern = "session-*"

	// StoreFile is the name of the session database inside a session directory.
	StoreFile = "session.db"

	mb = 1 << 20
)

// ErrNotSession is returned by Open for a directory that is not a session.
var ErrNotSession = errors.New("not a session directory")

// FreeSpaceFunc reports the bytes available to unprivileged users on the
// filesystem holding path.
type FreeSpaceFunc func(path string) (uint64, error)

// Session is one document's temporary directory.
type Session struct {
	dir       string
	warnBytes uint64
	freeSpace FreeSpaceFunc
	logger    *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLowWater sets the free-space warning threshold in megabytes.
func WithLowWater(megabytes int) Option {
	return func(s *Session) {
		s.warnBytes = uint64(max(megabytes, 0)) * mb
	}
}

// WithFreeSpaceFunc replaces the statfs probe.
func WithFreeSpaceFunc(fn FreeSpaceFunc) Option {
	return func(s *Session) {
		s.freeSpace = fn
	}
}

// New creates a fresh session directory under root.
func New(root string, opts ...Option) (*Session, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create session root: %w", err)
	}
	dir, err := os.MkdirTemp(root, dirPattern)
	if err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return newSession(dir, opts), nil
}

// Open reopens a kept session directory. It must contain a session store.
func Open(dir string, opts ...Option) (*Session, error) {
	if _, err := os.Stat(filepath.Join(dir, StoreFile)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotSession, dir)
	}
	return newSession(dir, opts), nil
}

func newSession(dir string, opts []Option) *Session {
	s := &Session{
		dir:       dir,
		freeSpace: FreeSpace,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the session directory.
func (s *Session) Dir() string {
	return s.dir
}

// NewFile reserves a unique file name in the session directory with the
// given extension (including the dot) and returns its path. The file
// exists and is empty.
func (s *Session) NewFile(ext string) (string, error) {
	f, err := os.CreateTemp(s.dir, "page-*"+ext)
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		return "", err
	}
	return name, nil
}

// NewDir creates a scratch directory inside the session, for tools that
// write several files.
func (s *Session) NewDir() (string, error) {
	return os.MkdirTemp(s.dir, "work-*")
}

// Owns reports whether path lies inside the session directory.
func (s *Session) Owns(path string) bool {
	rel, err := filepath.Rel(s.dir, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}

// FreeSpace reports the bytes available in the session directory.
func (s *Session) FreeSpace() (uint64, error) {
	return s.freeSpace(s.dir)
}

// FreeSpaceAt reports the bytes available at path using the session's probe.
func (s *Session) FreeSpaceAt(path string) (uint64, error) {
	return s.freeSpace(path)
}

// CheckLowWater logs a warning when the free space in the session directory
// is below the threshold, and reports whether it is.
func (s *Session) CheckLowWater() bool {
	if s.warnBytes == 0 {
		return false
	}
	free, err := s.FreeSpace()
	if err != nil {
		s.logger.Debug("free space probe failed", "dir", s.dir, "error", err)
		return false
	}
	if free >= s.warnBytes {
		return false
	}
	s.logger.Warn("session directory is running out of space",
		"dir", s.dir, "free_mb", free/mb, "warning_mb", s.warnBytes/mb)
	return true
}

// Close removes the session directory unless keep is set.
func (s *Session) Close(keep bool) error {
	if keep {
		s.logger.Info("keeping session directory", "dir", s.dir)
		return nil
	}
	return os.RemoveAll(s.dir)
}

// Info describes a kept session for listing.
type Info struct {
	Dir      string
	Modified time.Time
}

// List returns the sessions under root that can be restored, most recent first.
func List(root string) ([]Info, error) {
	matches, err := filepath.Glob(filepath.Join(root, dirPattern))
	if err != nil {
		return nil, err
	}
	var out []Info
	for _, dir := range matches {
		st, err := os.Stat(filepath.Join(dir, StoreFile))
		if err != nil {
			continue
		}
		out = append(out, Info{Dir: dir, Modified: st.ModTime()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}
