package object

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

// IDLen is the byte width of an object id (SHA-1).
const IDLen = 20

var (
	ErrInvalidID     = errors.New("invalid object id")
	ErrMissingObject = errors.New("object not found")
	ErrCorruptObject = errors.New("corrupt object")
)

// Type identifies the kind of object stored in the object database.
type Type string

const (
	Blob Type = "blob"
	Tree Type = "tree"
)

func (t Type) valid() bool {
	return t == Blob || t == Tree
}

// ID is the binary SHA-1 of an object's framed content.
type ID [IDLen]byte

func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id ID) String() string {
	return id.Hex()
}

func (id ID) IsZero() bool {
	return id == ID{}
}

// ParseID decodes a 40-character hex string into an ID.
func ParseID(s string) (ID, error) {
	var id ID
	if len(s) != IDLen*2 {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	copy(id[:], b)
	return id, nil
}

// frame prepends the canonical "<type> <size>\x00" header. The id of an
// object is the SHA-1 of this framed form, so two stores always agree on
// ids for identical content.
func frame(t Type, data []byte) []byte {
	header := string(t) + " " + strconv.Itoa(len(data)) + "\x00"
	buf := make([]byte, 0, len(header)+len(data))
	buf = append(buf, header...)
	buf = append(buf, data...)
	return buf
}

// Hash computes the id an object would get without storing it.
func Hash(t Type, data []byte) ID {
	return sha1.Sum(frame(t, data))
}

// unframe splits a framed object back into its type and body, verifying
// the declared size.
func unframe(buf []byte) (Type, []byte, error) {
	sp := -1
	for i, c := range buf {
		if c == ' ' {
			sp = i
			break
		}
	}
	if sp < 0 {
		return "", nil, fmt.Errorf("%w: missing type header", ErrCorruptObject)
	}
	nul := sp + 1
	for nul < len(buf) && buf[nul] != 0 {
		nul++
	}
	if nul >= len(buf) {
		return "", nil, fmt.Errorf("%w: unterminated header", ErrCorruptObject)
	}
	typ := Type(buf[:sp])
	if !typ.valid() {
		return "", nil, fmt.Errorf("%w: unknown type %q", ErrCorruptObject, string(buf[:sp]))
	}
	size, err := strconv.Atoi(string(buf[sp+1 : nul]))
	if err != nil || size < 0 {
		return "", nil, fmt.Errorf("%w: bad size header", ErrCorruptObject)
	}
	body := buf[nul+1:]
	if len(body) != size {
		return "", nil, fmt.Errorf("%w: size header %d does not match body length %d", ErrCorruptObject, size, len(body))
	}
	return typ, body, nil
}
