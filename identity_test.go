package msgchain

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSignVerify(t *testing.T) {
	kp := mustKeypair(t)
	digest := HashMessage(Message{Content: []byte("hi")})

	sig, err := kp.Sign(digest)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if !Verify(kp.Identity(), digest, sig) {
		t.Error("valid signature did not verify")
	}

	other := mustKeypair(t)
	if Verify(other.Identity(), digest, sig) {
		t.Error("signature verified under the wrong identity")
	}

	otherDigest := HashMessage(Message{Content: []byte("bye")})
	if Verify(kp.Identity(), otherDigest, sig) {
		t.Error("signature verified over the wrong digest")
	}

	if Verify([]byte("not a key"), digest, sig) {
		t.Error("malformed identity verified")
	}
	if Verify(kp.Identity(), digest, []byte("not a signature")) {
		t.Error("malformed signature verified")
	}
}

func TestKeypairFromBytes(t *testing.T) {
	kp := mustKeypair(t)

	restored, err := KeypairFromBytes(kp.Bytes())
	if err != nil {
		t.Fatalf("KeypairFromBytes failed: %v", err)
	}
	if !bytes.Equal(restored.Identity(), kp.Identity()) {
		t.Error("restored keypair has a different identity")
	}

	if _, err := KeypairFromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("short private key accepted")
	}
}

func TestKeyring(t *testing.T) {
	ring := NewKeyring()

	if _, ok := ring.CurrentAccount(); ok {
		t.Error("empty keyring reported a current account")
	}

	a, err := ring.NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	b, err := ring.NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	c, err := ring.NewAccount()
	if err != nil {
		t.Fatal(err)
	}

	cur, ok := ring.CurrentAccount()
	if !ok || !bytes.Equal(cur.Identity(), c.Identity()) {
		t.Error("latest account is not current")
	}

	if !ring.SetCurrentAccount(a.Identity()) {
		t.Error("SetCurrentAccount did not find an existing identity")
	}
	if ring.SetCurrentAccount([]byte("unknown")) {
		t.Error("SetCurrentAccount found a nonexistent identity")
	}

	// Deleting a later account keeps the current one.
	ring.DeleteAccount(b.Identity())
	cur, ok = ring.CurrentAccount()
	if !ok || !bytes.Equal(cur.Identity(), a.Identity()) {
		t.Error("deleting another account moved the current one")
	}

	// Deleting the current (first) account falls through to the next.
	ring.DeleteAccount(a.Identity())
	cur, ok = ring.CurrentAccount()
	if !ok || !bytes.Equal(cur.Identity(), c.Identity()) {
		t.Error("current account not adjusted after deleting the current entry")
	}

	if ring.Len() != 1 {
		t.Errorf("Len = %d, want 1", ring.Len())
	}
}

func TestKeyringSaveLoad(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "msgchain-keyring-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "keyring.json")

	ring := NewKeyring()
	for i := 0; i < 3; i++ {
		if _, err := ring.NewAccount(); err != nil {
			t.Fatal(err)
		}
	}
	want := ring.Accounts()
	ring.SetCurrentAccount(want[1])

	if err := ring.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadKeyring(path)
	if err != nil {
		t.Fatalf("LoadKeyring failed: %v", err)
	}
	got := loaded.Accounts()
	if len(got) != len(want) {
		t.Fatalf("loaded %d accounts, want %d", len(got), len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("account %d identity mismatch", i)
		}
	}
	cur, ok := loaded.CurrentAccount()
	if !ok || !bytes.Equal(cur.Identity(), want[1]) {
		t.Error("current account not preserved across save/load")
	}

	// A loaded keypair must still produce verifiable chain entries.
	chain := New(NewMemStore(0))
	if _, err := chain.Append("t", []byte("signed after reload"), cur); err != nil {
		t.Fatal(err)
	}
	if err := chain.Validate("t"); err != nil {
		t.Errorf("chain signed by reloaded key invalid: %v", err)
	}
}

func TestLoadKeyringRejectsBadFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "msgchain-keyring-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "keyring.json")

	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeyring(path); err == nil {
		t.Error("malformed keyring file accepted")
	}

	if err := os.WriteFile(path, []byte(`{"current":5,"keys":["00"]}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadKeyring(path); err == nil {
		t.Error("keyring with invalid key accepted")
	}
}
