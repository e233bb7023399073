package msgchain

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ExportThread writes every entry of thread to w as a stream of
// length-prefixed canonical records ([4]byte big-endian length followed
// by the MarshalEntry bytes). It returns the number of entries written.
func (l *Log) ExportThread(thread string, w io.Writer) (int, error) {
	entries, err := l.store.ListAll(thread)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	if err := WriteEntries(w, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ImportThread reads a stream produced by ExportThread and admits each
// entry into thread through the guarded path (AppendSigned), so a
// tampered, reordered or divergent stream is rejected at its exact
// position. It returns the number of entries admitted; on error, all
// entries before the offending one remain appended.
func (l *Log) ImportThread(thread string, r io.Reader) (int, error) {
	entries, err := ReadEntries(r)
	if err != nil {
		return 0, err
	}
	for i, e := range entries {
		if _, err := l.AppendSigned(thread, e); err != nil {
			return i, fmt.Errorf("import entry %d: %w", i, err)
		}
	}
	return len(entries), nil
}

// WriteEntries frames entries onto w in export stream format.
func WriteEntries(w io.Writer, entries []SignedEntry) error {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		enc := MarshalEntry(e)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
		if _, err := bw.Write(enc); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush entries: %w", err)
	}
	return nil
}

// ReadEntries decodes an export stream until EOF.
func ReadEntries(r io.Reader) ([]SignedEntry, error) {
	br := bufio.NewReader(r)
	var out []SignedEntry
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("read entry %d length: %w", len(out), err)
		}
		entryLen := binary.BigEndian.Uint32(lenBuf[:])
		if entryLen > maxRecordSize {
			return nil, fmt.Errorf("entry %d length %d too large", len(out), entryLen)
		}
		enc := make([]byte, entryLen)
		if _, err := io.ReadFull(br, enc); err != nil {
			return nil, fmt.Errorf("read entry %d: %w", len(out), err)
		}
		e, err := UnmarshalEntry(enc)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", len(out), err)
		}
		out = append(out, e)
	}
}
