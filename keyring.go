package msgchain

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Keyring manages a set of account keypairs with one current signing
// account. The chain engine never reaches for a keyring itself; the
// signing keypair is always an explicit argument to Append, so a
// process can hold any number of identities.
type Keyring struct {
	keys    []*Keypair
	current int
}

// NewKeyring returns an empty keyring.
func NewKeyring() *Keyring { return &Keyring{} }

// NewAccount generates a keypair, adds it to the ring and makes it the
// current account.
func (r *Keyring) NewAccount() (*Keypair, error) {
	kp, err := GenerateKeypair()
	if err != nil {
		return nil, err
	}
	r.current = len(r.keys)
	r.keys = append(r.keys, kp)
	return kp, nil
}

// CurrentAccount returns the current signing keypair, if any.
func (r *Keyring) CurrentAccount() (*Keypair, bool) {
	if r.current < 0 || r.current >= len(r.keys) {
		return nil, false
	}
	return r.keys[r.current], true
}

// SetCurrentAccount makes the keypair with the given identity current.
// It reports whether the identity was found.
func (r *Keyring) SetCurrentAccount(identity []byte) bool {
	for i, kp := range r.keys {
		if bytes.Equal(kp.Identity(), identity) {
			r.current = i
			return true
		}
	}
	return false
}

// DeleteAccount removes the keypair with the given identity. If it was
// the current account, the previous account becomes current.
func (r *Keyring) DeleteAccount(identity []byte) {
	for i, kp := range r.keys {
		if !bytes.Equal(kp.Identity(), identity) {
			continue
		}
		r.keys = append(r.keys[:i], r.keys[i+1:]...)
		switch {
		case r.current == i && r.current > 0:
			r.current--
		case r.current > i:
			r.current--
		}
		return
	}
}

// Accounts returns the identities in the ring, in insertion order.
func (r *Keyring) Accounts() [][]byte {
	out := make([][]byte, len(r.keys))
	for i, kp := range r.keys {
		out[i] = kp.Identity()
	}
	return out
}

// Len returns the number of accounts in the ring.
func (r *Keyring) Len() int { return len(r.keys) }

type keyringFile struct {
	Current int      `json:"current"`
	Keys    []string `json:"keys"` // hex private scalars
}

// Save writes the keyring to path as JSON, private keys included.
// The file is created owner-readable only.
func (r *Keyring) Save(path string) error {
	f := keyringFile{Current: r.current, Keys: make([]string, len(r.keys))}
	for i, kp := range r.keys {
		f.Keys[i] = hex.EncodeToString(kp.Bytes())
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode keyring: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// LoadKeyring reads a keyring previously written by Save.
func LoadKeyring(path string) (*Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	var f keyringFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode keyring: %w", err)
	}
	r := &Keyring{current: f.Current}
	for i, h := range f.Keys {
		raw, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("decode key %d: %w", i, err)
		}
		kp, err := KeypairFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		r.keys = append(r.keys, kp)
	}
	if r.current < 0 || (len(r.keys) > 0 && r.current >= len(r.keys)) {
		return nil, fmt.Errorf("invalid current account index %d", r.current)
	}
	return r, nil
}
