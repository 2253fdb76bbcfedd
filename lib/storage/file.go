package storage

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// TempPattern is the pattern used for spill file names so that
// leaked files can be found
const TempPattern = "iotools-storage*.tmp"

// FileStore is a Store backed by a file.
//
// It tracks where the file offset is and only seeks when that differs
// from where the next read or write needs to be.
type FileStore struct {
	f      *os.File
	path   string
	remove bool  // remove the file on Cleanup, otherwise truncate it
	cursor int64 // the offset of f
	pos    int64
	size   int64
	err    error // sticky I/O error
}

// check interface
var _ Store = (*FileStore)(nil)

// CreateTemp makes a FileStore on a new temporary file in dir which
// is removed on Cleanup. If dir is "" the OS temporary directory is
// used.
func CreateTemp(dir string) (*FileStore, error) {
	f, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create spill file")
	}
	return &FileStore{f: f, path: f.Name(), remove: true}, nil
}

// OpenFile makes a FileStore on the file at path, creating it if
// needed. Any existing contents are discarded. The file is truncated
// but not removed on Cleanup.
func OpenFile(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open spill file")
	}
	return &FileStore{f: f, path: path}, nil
}

// Path returns the path of the backing file
func (fs *FileStore) Path() string {
	return fs.path
}

// Position returns the read position
func (fs *FileStore) Position() int64 {
	return fs.pos
}

// Size returns the number of bytes stored
func (fs *FileStore) Size() int64 {
	return fs.size
}

// seekTo moves the file offset to off if it isn't there already
func (fs *FileStore) seekTo(off int64) error {
	if fs.cursor == off {
		return nil
	}
	_, err := fs.f.Seek(off, io.SeekStart)
	if err != nil {
		return fs.fail(errors.Wrap(err, "spill file seek failed"))
	}
	fs.cursor = off
	return nil
}

// fail records err as the sticky error and returns it
func (fs *FileStore) fail(err error) error {
	if fs.err == nil {
		fs.err = err
	}
	return fs.err
}

// Put appends p to the file
func (fs *FileStore) Put(p []byte) error {
	if fs.err != nil {
		return fs.err
	}
	if len(p) == 0 {
		return ErrEmptyPut
	}
	if fs.f == nil {
		return fs.fail(errors.New("spill file is closed"))
	}
	// The cursor may have been moved by a Get so always check it
	// before writing.
	if err := fs.seekTo(fs.size); err != nil {
		return err
	}
	n, err := fs.f.Write(p)
	fs.cursor += int64(n)
	fs.size += int64(n)
	fs.pos = fs.size
	if err != nil {
		return fs.fail(errors.Wrap(err, "spill file write failed"))
	}
	return nil
}

// Get reads from the position
func (fs *FileStore) Get(p []byte) (int, error) {
	if fs.err != nil {
		return 0, fs.err
	}
	if fs.pos >= fs.size {
		return 0, io.EOF
	}
	if remaining := fs.size - fs.pos; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	if err := fs.seekTo(fs.pos); err != nil {
		return 0, err
	}
	n, err := fs.f.Read(p)
	fs.cursor += int64(n)
	fs.pos += int64(n)
	if err == io.EOF {
		if n > 0 {
			return n, nil
		}
		// the file is shorter than we wrote
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return n, fs.fail(errors.Wrap(err, "spill file read failed"))
	}
	return n, nil
}

// Seek sets the read position. The file offset is moved lazily.
func (fs *FileStore) Seek(pos int64) error {
	if err := checkSeek(pos, fs.size); err != nil {
		return err
	}
	fs.pos = pos
	return nil
}

// Cleanup closes the file and removes or truncates it.
//
// If a temporary file can't be removed its path is queued for
// RemovePending.
func (fs *FileStore) Cleanup() error {
	fs.pos, fs.size, fs.cursor, fs.err = 0, 0, 0, nil
	if fs.f == nil {
		return nil
	}
	var err error
	if !fs.remove {
		err = fs.f.Truncate(0)
		if err != nil {
			err = errors.Wrap(err, "failed to truncate spill file")
		}
	}
	closeErr := fs.f.Close()
	fs.f = nil
	if err == nil && closeErr != nil {
		err = errors.Wrap(closeErr, "failed to close spill file")
	}
	if fs.remove {
		removeOrDefer(fs.path)
	}
	return err
}
