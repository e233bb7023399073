package msgchain

import (
	"bytes"
	"errors"
	"testing"
)

func TestExportImportRoundTrip(t *testing.T) {
	source := New(NewMemStore(0))
	kpA := mustKeypair(t)
	kpB := mustKeypair(t)

	for i, content := range []string{"one", "two", "three", "four"} {
		kp := kpA
		if i%2 == 1 {
			kp = kpB
		}
		if _, err := source.Append("backup", []byte(content), kp); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	n, err := source.ExportThread("backup", &buf)
	if err != nil {
		t.Fatalf("ExportThread failed: %v", err)
	}
	if n != 4 {
		t.Fatalf("exported %d entries, want 4", n)
	}

	restored := New(NewMemStore(0))
	m, err := restored.ImportThread("backup", &buf)
	if err != nil {
		t.Fatalf("ImportThread failed: %v", err)
	}
	if m != 4 {
		t.Fatalf("imported %d entries, want 4", m)
	}

	if err := restored.Validate("backup"); err != nil {
		t.Fatalf("restored chain invalid: %v", err)
	}

	want, _ := source.Messages("backup")
	got, _ := restored.Messages("backup")
	for i := range want {
		if HashEntry(want[i]) != HashEntry(got[i]) {
			t.Errorf("entry %d differs after round trip", i)
		}
	}
}

func TestImportRejectsTamperedStream(t *testing.T) {
	source := New(NewMemStore(0))
	kp := mustKeypair(t)
	for _, content := range []string{"a", "b", "c"} {
		if _, err := source.Append("t", []byte(content), kp); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := source.Messages("t")
	if err != nil {
		t.Fatal(err)
	}
	entries[1].Message.Content[0] ^= 0x01

	var buf bytes.Buffer
	if err := WriteEntries(&buf, entries); err != nil {
		t.Fatal(err)
	}

	restored := New(NewMemStore(0))
	n, err := restored.ImportThread("t", &buf)
	if err == nil {
		t.Fatal("tampered stream imported without error")
	}
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("got %v, want wrapped %v", err, ErrBadSignature)
	}
	if n != 1 {
		t.Errorf("admitted %d entries before failure, want 1", n)
	}

	// Entries before the tampered one stay admitted and valid.
	if err := restored.Validate("t"); err != nil {
		t.Errorf("partial import left invalid chain: %v", err)
	}
}

func TestImportOntoDivergentChain(t *testing.T) {
	source := New(NewMemStore(0))
	kp := mustKeypair(t)
	if _, err := source.Append("t", []byte("theirs"), kp); err != nil {
		t.Fatal(err)
	}

	target := New(NewMemStore(0))
	if _, err := target.Append("t", []byte("ours"), kp); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := source.ExportThread("t", &buf); err != nil {
		t.Fatal(err)
	}

	// The imported genesis entry cannot continue a chain that already
	// has its own genesis.
	if _, err := target.ImportThread("t", &buf); !errors.Is(err, ErrSequenceMismatch) {
		t.Errorf("got %v, want wrapped %v", err, ErrSequenceMismatch)
	}
}

func TestReadEntriesRejectsGarbage(t *testing.T) {
	if _, err := ReadEntries(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x05, 1, 2, 3, 4, 5})); err == nil {
		t.Error("garbage entry bytes accepted")
	}
	if _, err := ReadEntries(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})); err == nil {
		t.Error("oversized length prefix accepted")
	}
	if _, err := ReadEntries(bytes.NewReader([]byte{0x00, 0x00})); err == nil {
		t.Error("truncated length prefix accepted")
	}
}
