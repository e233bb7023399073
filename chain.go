package msgchain

import (
	"fmt"
)

// DigestSize is the size in bytes of all digests (SHA-256 output size).
const DigestSize = 32

// Message is the signed portion of a chain entry.
type Message struct {
	Content  []byte
	PrevHash [DigestSize]byte // zero for the first entry of a thread
}

// SignedEntry is the persisted record: a message bound to its author.
//
// Signature covers HashMessage(Message) only. Identity and Seq are
// linked into the chain through the next entry's PrevHash (which is
// taken over the whole entry) but are not part of the signed payload.
type SignedEntry struct {
	Identity  []byte
	Message   Message
	Seq       uint64
	Signature []byte
}

// ThreadInfo describes a thread known to a Store.
type ThreadInfo struct {
	Name      string
	CreatedAt int64 // unix seconds of the first append
}

// Store abstracts persistence of per-thread entry chains.
// Implementations must keep entries in append order and must not
// mutate or drop entries; everything else (durability, size limits)
// is the store's own business.
type Store interface {
	// GetTail returns the most recently appended entry of thread.
	// ok is false for an empty or unknown thread.
	GetTail(thread string) (e SignedEntry, ok bool, err error)

	// Append adds an entry at the end of thread's chain.
	Append(thread string, e SignedEntry) error

	// ListAll returns every entry of thread in append order.
	ListAll(thread string) ([]SignedEntry, error)

	// Threads lists all threads that have at least one entry.
	Threads() ([]ThreadInfo, error)
}

// Log builds and audits per-thread signed message chains on top of a Store.
//
// Log itself does no locking: appends to the same thread must be
// serialized by the caller. Two unsynchronized appends can observe the
// same tail and produce a fork, which validation tolerates (each branch
// verifies in isolation, see FindForks).
type Log struct {
	store Store
}

// New creates a Log bound to a Store.
func New(st Store) *Log { return &Log{store: st} }

// Append signs content with kp and appends the resulting entry to thread.
//
// The entry links to the observed tail: PrevHash is the digest of the
// canonical encoding of the whole previous entry (zero digest for an
// empty thread) and Seq continues the tail's sequence. Store failures
// propagate unretried.
func (l *Log) Append(thread string, content []byte, kp *Keypair) (SignedEntry, error) {
	tail, ok, err := l.store.GetTail(thread)
	if err != nil {
		return SignedEntry{}, fmt.Errorf("read tail: %w", err)
	}

	var prev [DigestSize]byte
	var seq uint64
	if ok {
		prev = HashEntry(tail)
		seq = tail.Seq + 1
	}

	msg := Message{
		Content:  append([]byte(nil), content...),
		PrevHash: prev,
	}

	sig, err := kp.Sign(HashMessage(msg))
	if err != nil {
		return SignedEntry{}, fmt.Errorf("sign message: %w", err)
	}

	e := SignedEntry{
		Identity:  kp.Identity(),
		Message:   msg,
		Seq:       seq,
		Signature: sig,
	}

	if err := l.store.Append(thread, e); err != nil {
		return SignedEntry{}, fmt.Errorf("append entry: %w", err)
	}
	return e, nil
}

// AppendSigned admits an externally produced entry into thread.
//
// Unlike Append, the entry is untrusted: its signature must verify and
// its Seq and PrevHash must continue the current tail exactly. On
// rejection the returned error wraps ErrBadSignature,
// ErrSequenceMismatch or ErrBrokenLink. Returns the digest of the
// admitted entry (the PrevHash any successor must carry).
func (l *Log) AppendSigned(thread string, e SignedEntry) ([DigestSize]byte, error) {
	var zero [DigestSize]byte

	if !Verify(e.Identity, HashMessage(e.Message), e.Signature) {
		return zero, ErrBadSignature
	}

	tail, ok, err := l.store.GetTail(thread)
	if err != nil {
		return zero, fmt.Errorf("read tail: %w", err)
	}

	var wantPrev [DigestSize]byte
	var wantSeq uint64
	if ok {
		wantPrev = HashEntry(tail)
		wantSeq = tail.Seq + 1
	}

	if e.Seq != wantSeq {
		return zero, ErrSequenceMismatch
	}
	if e.Message.PrevHash != wantPrev {
		return zero, ErrBrokenLink
	}

	if err := l.store.Append(thread, e); err != nil {
		return zero, fmt.Errorf("append entry: %w", err)
	}
	return HashEntry(e), nil
}

// Validate audits the full stored chain of thread from scratch.
// It returns nil for a valid (or empty) chain, or a *ValidationError
// identifying the first offending entry.
func (l *Log) Validate(thread string) error {
	entries, err := l.store.ListAll(thread)
	if err != nil {
		return fmt.Errorf("list entries: %w", err)
	}
	return ValidateEntries(entries)
}

// Count returns the number of entries stored for thread.
func (l *Log) Count(thread string) (int, error) {
	entries, err := l.store.ListAll(thread)
	if err != nil {
		return 0, fmt.Errorf("list entries: %w", err)
	}
	return len(entries), nil
}

// Messages returns every entry of thread in append order.
func (l *Log) Messages(thread string) ([]SignedEntry, error) {
	return l.store.ListAll(thread)
}

// cloneEntry deep-copies an entry so stores never alias caller memory.
func cloneEntry(e SignedEntry) SignedEntry {
	e.Identity = append([]byte(nil), e.Identity...)
	e.Message.Content = append([]byte(nil), e.Message.Content...)
	e.Signature = append([]byte(nil), e.Signature...)
	return e
}
