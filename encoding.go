package msgchain

import (
	"crypto/sha256"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Canonical encoding
//
// Hashing and signing operate on a canonical byte form that must be
// reproduced bit-exactly by every implementation. The format is
// protobuf wire framing with a fixed field order and every field
// always present (including empty content), so encoding is a
// deterministic, injective function of the field tuple:
//
//	Message:
//	  field 1, bytes:   content            (length-prefixed, may be empty)
//	  field 2, bytes:   prev_hash          (exactly 32 bytes)
//
//	SignedEntry:
//	  field 1, bytes:   identity           (length-prefixed)
//	  field 2, bytes:   canonical Message  (length-prefixed)
//	  field 3, fixed64: seq                (8 bytes, little-endian per wire format)
//	  field 4, bytes:   signature          (length-prefixed)
//
// Length prefixes make concatenation unambiguous; the fixed64 seq has a
// fixed width regardless of value. Decoding is strict: fields must
// appear exactly once, in order, with nothing trailing, so
// decode(encode(x)) round-trips byte-exactly.

const (
	msgFieldContent   = 1
	msgFieldPrevHash  = 2
	entFieldIdentity  = 1
	entFieldMessage   = 2
	entFieldSeq       = 3
	entFieldSignature = 4
)

// MarshalMessage returns the canonical encoding of m.
func MarshalMessage(m Message) []byte {
	b := make([]byte, 0, len(m.Content)+DigestSize+8)
	b = protowire.AppendTag(b, msgFieldContent, protowire.BytesType)
	b = protowire.AppendBytes(b, m.Content)
	b = protowire.AppendTag(b, msgFieldPrevHash, protowire.BytesType)
	b = protowire.AppendBytes(b, m.PrevHash[:])
	return b
}

// MarshalEntry returns the canonical encoding of e. This is the byte
// form hashed for chain linkage and the persisted/wire form of an entry.
func MarshalEntry(e SignedEntry) []byte {
	msg := MarshalMessage(e.Message)
	b := make([]byte, 0, len(e.Identity)+len(msg)+len(e.Signature)+32)
	b = protowire.AppendTag(b, entFieldIdentity, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Identity)
	b = protowire.AppendTag(b, entFieldMessage, protowire.BytesType)
	b = protowire.AppendBytes(b, msg)
	b = protowire.AppendTag(b, entFieldSeq, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, e.Seq)
	b = protowire.AppendTag(b, entFieldSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Signature)
	return b
}

// UnmarshalMessage decodes a canonical Message, rejecting any byte
// stream that MarshalMessage could not have produced.
func UnmarshalMessage(b []byte) (Message, error) {
	var m Message

	content, rest, err := consumeBytesField(b, msgFieldContent)
	if err != nil {
		return m, fmt.Errorf("message content: %w", err)
	}
	prev, rest, err := consumeBytesField(rest, msgFieldPrevHash)
	if err != nil {
		return m, fmt.Errorf("message prev hash: %w", err)
	}
	if len(prev) != DigestSize {
		return m, fmt.Errorf("invalid prev hash size: expected %d, got %d", DigestSize, len(prev))
	}
	if len(rest) != 0 {
		return m, fmt.Errorf("message: %d trailing bytes", len(rest))
	}

	m.Content = append([]byte(nil), content...)
	copy(m.PrevHash[:], prev)
	return m, nil
}

// UnmarshalEntry decodes a canonical SignedEntry, rejecting any byte
// stream that MarshalEntry could not have produced.
func UnmarshalEntry(b []byte) (SignedEntry, error) {
	var e SignedEntry

	identity, rest, err := consumeBytesField(b, entFieldIdentity)
	if err != nil {
		return e, fmt.Errorf("entry identity: %w", err)
	}
	msgBytes, rest, err := consumeBytesField(rest, entFieldMessage)
	if err != nil {
		return e, fmt.Errorf("entry message: %w", err)
	}
	msg, err := UnmarshalMessage(msgBytes)
	if err != nil {
		return e, err
	}
	seq, rest, err := consumeFixed64Field(rest, entFieldSeq)
	if err != nil {
		return e, fmt.Errorf("entry seq: %w", err)
	}
	sig, rest, err := consumeBytesField(rest, entFieldSignature)
	if err != nil {
		return e, fmt.Errorf("entry signature: %w", err)
	}
	if len(rest) != 0 {
		return e, fmt.Errorf("entry: %d trailing bytes", len(rest))
	}

	e.Identity = append([]byte(nil), identity...)
	e.Message = msg
	e.Seq = seq
	e.Signature = append([]byte(nil), sig...)
	return e, nil
}

// HashMessage returns the digest signed by the message's author.
func HashMessage(m Message) [DigestSize]byte {
	return sha256.Sum256(MarshalMessage(m))
}

// HashEntry returns the digest of the whole entry (identity, message,
// seq and signature). The next entry in a chain carries it as PrevHash.
func HashEntry(e SignedEntry) [DigestSize]byte {
	return sha256.Sum256(MarshalEntry(e))
}

func consumeBytesField(b []byte, num protowire.Number) (val, rest []byte, err error) {
	gotNum, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return nil, nil, protowire.ParseError(n)
	}
	if gotNum != num || typ != protowire.BytesType {
		return nil, nil, fmt.Errorf("expected bytes field %d, got field %d type %d", num, gotNum, typ)
	}
	val, m := protowire.ConsumeBytes(b[n:])
	if m < 0 {
		return nil, nil, protowire.ParseError(m)
	}
	return val, b[n+m:], nil
}

func consumeFixed64Field(b []byte, num protowire.Number) (val uint64, rest []byte, err error) {
	gotNum, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		return 0, nil, protowire.ParseError(n)
	}
	if gotNum != num || typ != protowire.Fixed64Type {
		return 0, nil, fmt.Errorf("expected fixed64 field %d, got field %d type %d", num, gotNum, typ)
	}
	val, m := protowire.ConsumeFixed64(b[n:])
	if m < 0 {
		return 0, nil, protowire.ParseError(m)
	}
	return val, b[n+m:], nil
}
