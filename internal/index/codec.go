package index

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"keel/internal/object"
)

// On-disk index format (git index version 2):
//
//	header   4-byte magic "DIRC", u32 version, u32 entry count (big-endian)
//	entries  ten u32 metadata fields, 20-byte id, u16 flags
//	         (stage in bits 12-13, path length capped at 0xFFF in the low
//	         12 bits), path bytes, NUL, zero padding to an 8-byte boundary
//	         measured from the entry start
//	trailer  SHA-1 over everything before it
//
// Entries are written in table order; sortedness and key uniqueness are
// part of the format and are re-checked on read.
const (
	indexMagic   = "DIRC"
	indexVersion = 2

	entryFixedLen  = 62 // metadata + id + flags, before the path
	entryAlignment = 8

	flagStageShift = 12
	flagStageMask  = 0x3000
	flagPathMask   = 0x0FFF
)

// encodeIndex serializes sorted entries into the on-disk byte form.
func encodeIndex(entries []Entry) []byte {
	var buf bytes.Buffer
	buf.WriteString(indexMagic)
	writeUint32(&buf, indexVersion)
	writeUint32(&buf, uint32(len(entries)))

	for i := range entries {
		encodeEntry(&buf, &entries[i])
	}

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

func encodeEntry(buf *bytes.Buffer, e *Entry) {
	start := buf.Len()

	writeUint32(buf, e.CtimeSec)
	writeUint32(buf, e.CtimeNsec)
	writeUint32(buf, e.MtimeSec)
	writeUint32(buf, e.MtimeNsec)
	writeUint32(buf, e.Dev)
	writeUint32(buf, e.Ino)
	writeUint32(buf, uint32(e.Mode))
	writeUint32(buf, e.UID)
	writeUint32(buf, e.GID)
	writeUint32(buf, e.Size)
	buf.Write(e.ID[:])

	nameLen := len(e.Path)
	if nameLen > flagPathMask {
		nameLen = flagPathMask
	}
	flags := uint16(e.Stage)<<flagStageShift | uint16(nameLen)
	var fb [2]byte
	binary.BigEndian.PutUint16(fb[:], flags)
	buf.Write(fb[:])

	buf.WriteString(e.Path)
	buf.WriteByte(0)
	for (buf.Len()-start)%entryAlignment != 0 {
		buf.WriteByte(0)
	}
}

// decodeIndex parses and validates on-disk bytes, returning entries in
// file order. Any structural defect is ErrMalformedIndex.
func decodeIndex(data []byte) ([]Entry, error) {
	if len(data) < 12+sha1.Size {
		return nil, fmt.Errorf("%w: truncated header", ErrMalformedIndex)
	}

	body := data[:len(data)-sha1.Size]
	want := data[len(data)-sha1.Size:]
	if sum := sha1.Sum(body); !bytes.Equal(sum[:], want) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrMalformedIndex)
	}

	if string(body[:4]) != indexMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrMalformedIndex)
	}
	if v := binary.BigEndian.Uint32(body[4:8]); v != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedIndex, v)
	}
	count := binary.BigEndian.Uint32(body[8:12])

	// The count comes from an unkeyed header, so a corrupt file can claim
	// any value; bound it by the smallest possible on-disk entry before
	// trusting it for allocation. Each entry occupies at least the fixed
	// block plus a one-byte path and its NUL.
	if int64(count) > int64(len(body)-12)/int64(entryFixedLen+2) {
		return nil, fmt.Errorf("%w: impossible entry count %d", ErrMalformedIndex, count)
	}

	entries := make([]Entry, 0, count)
	offset := 12
	for i := uint32(0); i < count; i++ {
		e, next, err := decodeEntry(body, offset)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			prev := &entries[len(entries)-1]
			if !prev.less(&e) {
				return nil, fmt.Errorf("%w: entries out of order at %q", ErrMalformedIndex, e.Path)
			}
		}
		entries = append(entries, e)
		offset = next
	}
	if offset != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes after entries", ErrMalformedIndex, len(body)-offset)
	}
	return entries, nil
}

func decodeEntry(body []byte, offset int) (Entry, int, error) {
	start := offset
	if offset+entryFixedLen > len(body) {
		return Entry{}, 0, fmt.Errorf("%w: truncated entry", ErrMalformedIndex)
	}

	var e Entry
	e.CtimeSec = binary.BigEndian.Uint32(body[offset:])
	e.CtimeNsec = binary.BigEndian.Uint32(body[offset+4:])
	e.MtimeSec = binary.BigEndian.Uint32(body[offset+8:])
	e.MtimeNsec = binary.BigEndian.Uint32(body[offset+12:])
	e.Dev = binary.BigEndian.Uint32(body[offset+16:])
	e.Ino = binary.BigEndian.Uint32(body[offset+20:])
	e.Mode = Mode(binary.BigEndian.Uint32(body[offset+24:]))
	e.UID = binary.BigEndian.Uint32(body[offset+28:])
	e.GID = binary.BigEndian.Uint32(body[offset+32:])
	e.Size = binary.BigEndian.Uint32(body[offset+36:])
	copy(e.ID[:], body[offset+40:offset+40+object.IDLen])

	flags := binary.BigEndian.Uint16(body[offset+60:])
	e.Stage = Stage((flags & flagStageMask) >> flagStageShift)

	offset += entryFixedLen
	nul := bytes.IndexByte(body[offset:], 0)
	if nul < 0 {
		return Entry{}, 0, fmt.Errorf("%w: unterminated path", ErrMalformedIndex)
	}
	e.Path = string(body[offset : offset+nul])
	offset += nul + 1

	if pathLen := int(flags & flagPathMask); pathLen != flagPathMask && pathLen != len(e.Path) {
		return Entry{}, 0, fmt.Errorf("%w: path length flag %d does not match %q", ErrMalformedIndex, pathLen, e.Path)
	}
	if err := e.Validate(); err != nil {
		return Entry{}, 0, fmt.Errorf("%w: %v", ErrMalformedIndex, err)
	}

	for (offset-start)%entryAlignment != 0 {
		if offset >= len(body) || body[offset] != 0 {
			return Entry{}, 0, fmt.Errorf("%w: bad entry padding", ErrMalformedIndex)
		}
		offset++
	}
	return e, offset, nil
}

// writeIndexFile writes data atomically: a uuid-suffixed temporary in the
// same directory, fsync, then rename over the target. A concurrent reader
// never observes a partial file.
func writeIndexFile(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating temporary index file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing index file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
