package checkpoint

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/birdayz/kflow/kserde"
)

// File stores one snapshot blob on disk.
//
// File format (all integers big-endian):
//
//	magic   "KFSN"
//	version u8 (currently 1)
//	data    u64 length + bytes
//	crc     u64, CRC-32 (IEEE) of everything before it
//
// Writes are atomic: the blob goes to a temp file which is fsynced and
// renamed over the target, then the directory is fsynced.
type File struct {
	Path string
	lock sync.Mutex
}

const (
	magic   = "KFSN"
	VERSION = 1
)

var (
	ErrNotExist = errors.New("checkpoint does not exist")
	ErrCorrupt  = errors.New("corrupt checkpoint")
)

// NewFile creates a checkpoint file handle; path is the full file path
// (e.g., "/var/lib/kflow/abc.snap").
func NewFile(path string) *File {
	return &File{Path: path}
}

// Read loads the snapshot. A missing file yields ErrNotExist.
func (c *File) Read() ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	raw, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, c.Path)
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) ([]byte, error) {
	dec := kserde.NewDecoder(raw)
	m, err := dec.ReadRaw(len(magic))
	if err != nil || string(m) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	version, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if version != VERSION {
		return nil, fmt.Errorf("%w: unknown version %d (expected %d)", ErrCorrupt, version, VERSION)
	}
	data, err := dec.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	body := dec.Offset()
	sum, err := dec.ReadUint64()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := dec.Done(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if want := uint64(crc32.ChecksumIEEE(raw[:body])); sum != want {
		return nil, fmt.Errorf("%w: checksum %08x, expected %08x", ErrCorrupt, sum, want)
	}
	return data, nil
}

func encode(data []byte) []byte {
	enc := kserde.NewEncoder()
	enc.WriteRaw([]byte(magic))
	enc.WriteUint8(VERSION)
	enc.WriteBytes(data)
	enc.WriteUint64(uint64(crc32.ChecksumIEEE(enc.Data())))
	return enc.Data()
}

// Write persists data atomically.
func (c *File) Write(data []byte) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint directory: %w", err)
	}

	tmpPath := c.Path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}

	if _, err := file.Write(encode(data)); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}

	// Sync before rename, or a crash may leave an empty file under the
	// final name.
	if err := file.Sync(); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}

	if err := os.Rename(tmpPath, c.Path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	// The rename is only durable once the directory entry is flushed.
	if runtime.GOOS != "windows" {
		dirFile, err := os.Open(dir)
		if err != nil {
			return fmt.Errorf("open directory for fsync: %w", err)
		}
		defer func() { _ = dirFile.Close() }()

		if err := dirFile.Sync(); err != nil {
			return fmt.Errorf("fsync directory: %w", err)
		}
	}

	return nil
}

// Delete removes the checkpoint file. A missing file is not an error.
func (c *File) Delete() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
