package msgchain

import (
	"os"
	"testing"
)

//revive:disable:function-length Long test functions are acceptable

func TestFileStore_BasicOperations(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "msgchain-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := OpenFileStore(tmpDir)
	if err != nil {
		t.Fatalf("OpenFileStore failed: %v", err)
	}
	defer store.(*fileStore).Close()

	chain := New(store)
	kp := mustKeypair(t)

	if _, ok, err := store.GetTail("t"); err != nil || ok {
		t.Fatalf("empty thread: ok=%v err=%v", ok, err)
	}

	for i := 0; i < 10; i++ {
		if _, err := chain.Append("t", []byte("msg"), kp); err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	tail, ok, err := store.GetTail("t")
	if err != nil || !ok {
		t.Fatalf("GetTail: ok=%v err=%v", ok, err)
	}
	if tail.Seq != 9 {
		t.Errorf("tail seq = %d, want 9", tail.Seq)
	}

	entries, err := store.ListAll("t")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 10 {
		t.Fatalf("ListAll returned %d entries, want 10", len(entries))
	}
	if err := chain.Validate("t"); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestFileStore_ReopenPersistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "msgchain-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	kp := mustKeypair(t)

	store, err := OpenFileStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	chain := New(store)
	for _, thread := range []string{"alpha", "beta"} {
		for i := 0; i < 3; i++ {
			if _, err := chain.Append(thread, []byte("persisted"), kp); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := store.(*fileStore).Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenFileStore(tmpDir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.(*fileStore).Close()

	threads, err := reopened.Threads()
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 2 || threads[0].Name != "alpha" || threads[1].Name != "beta" {
		t.Errorf("registry not preserved: %+v", threads)
	}

	chain2 := New(reopened)
	for _, thread := range []string{"alpha", "beta"} {
		if err := chain2.Validate(thread); err != nil {
			t.Errorf("thread %q invalid after reopen: %v", thread, err)
		}
		n, err := chain2.Count(thread)
		if err != nil {
			t.Fatal(err)
		}
		if n != 3 {
			t.Errorf("thread %q count = %d, want 3", thread, n)
		}
	}

	// The chain must continue where it left off.
	e, err := chain2.Append("alpha", []byte("after reopen"), kp)
	if err != nil {
		t.Fatal(err)
	}
	if e.Seq != 3 {
		t.Errorf("seq after reopen = %d, want 3", e.Seq)
	}
	if err := chain2.Validate("alpha"); err != nil {
		t.Errorf("Validate after reopen append: %v", err)
	}
}

func TestFileStore_OddThreadNames(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "msgchain-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	store, err := OpenFileStore(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.(*fileStore).Close()

	chain := New(store)
	kp := mustKeypair(t)

	// Names with separators and dots must not escape the store directory.
	for _, thread := range []string{"../evil", "a/b/c", ".", "chat 1", ""} {
		if _, err := chain.Append(thread, []byte("x"), kp); err != nil {
			t.Fatalf("Append to %q failed: %v", thread, err)
		}
		if err := chain.Validate(thread); err != nil {
			t.Errorf("thread %q invalid: %v", thread, err)
		}
	}

	threads, err := store.Threads()
	if err != nil {
		t.Fatal(err)
	}
	if len(threads) != 5 {
		t.Errorf("registry has %d threads, want 5", len(threads))
	}
}
