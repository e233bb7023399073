package msgchain

import (
	"bufio"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// fileStore implements Store using append-only POSIX files.
// Layout inside the store directory:
//   - threads.idx: thread registry
//   - <digest>.log: one log file per thread, named by the first 16
//     hex characters of SHA-256(thread name)
//
// Record format in a thread log file:
//
//	[4]byte: entry length (uint32 big-endian)
//	[n]byte: canonical SignedEntry encoding (see encoding.go)
//
// Record format in threads.idx:
//
//	[8]byte: created-at unix seconds (int64 big-endian)
//	[4]byte: name length (uint32 big-endian)
//	[n]byte: thread name
type fileStore struct {
	dir      string
	mu       sync.RWMutex
	regFile  *os.File
	registry []ThreadInfo
	known    map[string]bool
}

const (
	registryFileName = "threads.idx"
	logFileSuffix    = ".log"

	// maxRecordSize bounds a single record read back from disk so a
	// corrupt length prefix cannot trigger a huge allocation.
	maxRecordSize = 1 << 26
)

// OpenFileStore creates or opens a file-based store in the given
// directory and loads the thread registry.
func OpenFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	regPath := filepath.Join(dir, registryFileName)
	regFile, err := os.OpenFile(regPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	s := &fileStore{
		dir:     dir,
		regFile: regFile,
		known:   make(map[string]bool),
	}
	if err := s.loadRegistry(); err != nil {
		_ = regFile.Close()
		return nil, err
	}
	return s, nil
}

func (s *fileStore) loadRegistry() error {
	if _, err := s.regFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek registry: %w", err)
	}
	reader := bufio.NewReader(s.regFile)

	for {
		var hdr [12]byte
		if _, err := io.ReadFull(reader, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read registry header: %w", err)
		}
		createdAt := int64(binary.BigEndian.Uint64(hdr[0:8]))
		nameLen := binary.BigEndian.Uint32(hdr[8:12])
		if nameLen > maxRecordSize {
			return fmt.Errorf("registry name length %d too large", nameLen)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(reader, name); err != nil {
			return fmt.Errorf("read registry name: %w", err)
		}
		s.registry = append(s.registry, ThreadInfo{Name: string(name), CreatedAt: createdAt})
		s.known[string(name)] = true
	}
}

// threadLogPath derives the log file name for a thread. Thread names
// are arbitrary strings, so filenames come from a digest of the name.
func (s *fileStore) threadLogPath(thread string) string {
	sum := sha256.Sum256([]byte(thread))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8])+logFileSuffix)
}

// Append writes an entry at the end of the thread's log file, durably.
func (s *fileStore) Append(thread string, e SignedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.known[thread] {
		if err := s.registerThreadLocked(thread); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.threadLogPath(thread), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("open thread log: %w", err)
	}
	defer f.Close()

	enc := MarshalEntry(e)
	buf := make([]byte, 4+len(enc))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(enc)))
	copy(buf[4:], enc)

	n, err := f.Write(buf)
	if err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("incomplete write: %d of %d bytes", n, len(buf))
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync thread log: %w", err)
	}
	return nil
}

func (s *fileStore) registerThreadLocked(thread string) error {
	info := ThreadInfo{Name: thread, CreatedAt: time.Now().Unix()}

	buf := make([]byte, 12+len(thread))
	binary.BigEndian.PutUint64(buf[0:8], uint64(info.CreatedAt))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(thread)))
	copy(buf[12:], thread)

	if _, err := s.regFile.Write(buf); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := s.regFile.Sync(); err != nil {
		return fmt.Errorf("sync registry: %w", err)
	}

	s.registry = append(s.registry, info)
	s.known[thread] = true
	return nil
}

// GetTail scans the thread's log file and returns its last entry.
// TODO: keep an in-memory tail cache per thread to avoid the full scan.
func (s *fileStore) GetTail(thread string) (SignedEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tail SignedEntry
	found := false
	err := s.scanThread(thread, func(e SignedEntry) {
		tail = e
		found = true
	})
	if err != nil {
		return SignedEntry{}, false, err
	}
	return tail, found, nil
}

// ListAll reads every entry of the thread's log file in append order.
func (s *fileStore) ListAll(thread string) ([]SignedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SignedEntry
	err := s.scanThread(thread, func(e SignedEntry) {
		out = append(out, e)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *fileStore) scanThread(thread string, visit func(SignedEntry)) error {
	f, err := os.Open(s.threadLogPath(thread))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open thread log: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(reader, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read entry length: %w", err)
		}
		entryLen := binary.BigEndian.Uint32(lenBuf[:])
		if entryLen > maxRecordSize {
			return fmt.Errorf("entry length %d too large", entryLen)
		}
		enc := make([]byte, entryLen)
		if _, err := io.ReadFull(reader, enc); err != nil {
			return fmt.Errorf("read entry: %w", err)
		}
		e, err := UnmarshalEntry(enc)
		if err != nil {
			return fmt.Errorf("decode entry: %w", err)
		}
		visit(e)
	}
}

// Threads returns the registry in registration order.
func (s *fileStore) Threads() ([]ThreadInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]ThreadInfo(nil), s.registry...), nil
}

// Close closes the registry file. Thread log files are opened per
// operation and need no teardown.
func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.regFile.Close(); err != nil {
		return fmt.Errorf("close registry: %w", err)
	}
	return nil
}
