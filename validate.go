package msgchain

import (
	"errors"
	"fmt"
)

// ErrSequenceMismatch indicates an entry whose sequence number does not
// continue the chain.
var ErrSequenceMismatch = errors.New("sequence mismatch")

// ErrBrokenLink indicates an entry whose previous-hash does not match
// the digest of the entry before it.
var ErrBrokenLink = errors.New("broken link: previous hash mismatch")

// ErrBadSignature indicates an entry whose signature does not verify
// against its identity and message digest.
var ErrBadSignature = errors.New("bad signature")

// ValidationError reports the first entry at which a chain fails to
// verify. Reason is one of ErrSequenceMismatch, ErrBrokenLink or
// ErrBadSignature and is reachable through errors.Is.
type ValidationError struct {
	Index  int
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("entry %d: %v", e.Index, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// ValidateEntries certifies that entries form a valid chain from
// scratch, trusting nothing about how they were stored.
//
// It walks the sequence once with running state: entry n must carry
// seq n and the digest of the canonical encoding of entry n-1 (the
// zero digest for n=0), and its signature must verify against the
// digest of its own message. Validation is fail-fast: each invariant
// is a prerequisite of the next, so the first failure is returned as a
// *ValidationError and nothing after it is inspected. An empty
// sequence is trivially valid.
//
// No uniqueness is required of identities, contents or previous
// hashes: divergent histories sharing a predecessor are each valid on
// their own branch (see FindForks).
func ValidateEntries(entries []SignedEntry) error {
	var expectPrev [DigestSize]byte
	var expectSeq uint64

	for i, e := range entries {
		if e.Seq != expectSeq {
			return &ValidationError{Index: i, Reason: ErrSequenceMismatch}
		}
		if e.Message.PrevHash != expectPrev {
			return &ValidationError{Index: i, Reason: ErrBrokenLink}
		}
		if !Verify(e.Identity, HashMessage(e.Message), e.Signature) {
			return &ValidationError{Index: i, Reason: ErrBadSignature}
		}
		expectSeq++
		expectPrev = HashEntry(e)
	}
	return nil
}

// ValidateEntry reports whether a single entry's signature verifies in
// isolation, ignoring its position in any chain.
func ValidateEntry(e SignedEntry) bool {
	return Verify(e.Identity, HashMessage(e.Message), e.Signature)
}
