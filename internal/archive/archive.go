// Package archive implements the binary module-description format carried in
// ledger package payloads.
//
// A payload is a self-contained blob holding three flat, index-addressed
// tables: an interned string table, a dotted-name table whose entries are
// sequences of string indices, and a module list whose entries reference
// dotted names by index. The format exists so repeated name segments are
// stored once; resolving a module name means chasing indices through the
// tables with bounds checks at every hop.
//
// Wire layout (all integers are unsigned varints):
//
//	magic "VPK1"
//	stringCount, then per string: byteLen, bytes (UTF-8)
//	nameCount, then per name: segmentCount, segmentCount string indices
//	moduleCount, then per module: one dotted-name index
//
// Any out-of-range index, truncation, or trailing bytes is structural
// corruption and fails the whole decode. No partial results are produced.
package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic identifies a volley package payload. Present so a foreign blob fails
// fast instead of being misread as empty tables.
var Magic = []byte("VPK1")

// Archive is the decoded form of a package payload: plain indexed arrays,
// owned by exactly one package. Indices in Names address Strings; entries in
// Modules address Names.
type Archive struct {
	Strings []string // interned string table
	Names   [][]int  // dotted names as string-index sequences
	Modules []int    // per module, the index of its dotted name
}

// DecodeError reports structural corruption in a package payload.
// Decode failures are not locally recoverable; callers treat them as fatal
// for the operation that fetched the payload.
type DecodeError struct {
	Msg string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed package payload: %s", e.Msg)
}

// IsDecodeError checks if an error is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Decode parses a package payload into an Archive, validating every index
// against its table. The input must be consumed exactly; trailing bytes fail.
func Decode(payload []byte) (*Archive, error) {
	r := &payloadReader{buf: payload}

	magic, err := r.take(len(Magic))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, Magic) {
		return nil, &DecodeError{Msg: fmt.Sprintf("bad magic %q", magic)}
	}

	a := &Archive{}

	stringCount, err := r.count("string")
	if err != nil {
		return nil, err
	}
	a.Strings = make([]string, stringCount)
	for i := range a.Strings {
		length, err := r.uvarint("string length")
		if err != nil {
			return nil, err
		}
		raw, err := r.take(int(length))
		if err != nil {
			return nil, err
		}
		a.Strings[i] = string(raw)
	}

	nameCount, err := r.count("dotted-name")
	if err != nil {
		return nil, err
	}
	a.Names = make([][]int, nameCount)
	for i := range a.Names {
		segCount, err := r.count("segment")
		if err != nil {
			return nil, err
		}
		if segCount == 0 {
			return nil, &DecodeError{Msg: fmt.Sprintf("dotted name %d has no segments", i)}
		}
		segments := make([]int, segCount)
		for j := range segments {
			idx, err := r.uvarint("string index")
			if err != nil {
				return nil, err
			}
			if int(idx) >= len(a.Strings) {
				return nil, &DecodeError{Msg: fmt.Sprintf("string index %d out of range (table size %d)", idx, len(a.Strings))}
			}
			segments[j] = int(idx)
		}
		a.Names[i] = segments
	}

	moduleCount, err := r.count("module")
	if err != nil {
		return nil, err
	}
	a.Modules = make([]int, moduleCount)
	for i := range a.Modules {
		idx, err := r.uvarint("dotted-name index")
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(a.Names) {
			return nil, &DecodeError{Msg: fmt.Sprintf("dotted-name index %d out of range (table size %d)", idx, len(a.Names))}
		}
		a.Modules[i] = int(idx)
	}

	if r.pos != len(r.buf) {
		return nil, &DecodeError{Msg: fmt.Sprintf("%d trailing bytes after module table", len(r.buf)-r.pos)}
	}

	return a, nil
}

// StringsAt resolves a sequence of indices into the interned string table,
// preserving order. Any index past the table is structural corruption and
// fails the whole lookup.
func (a *Archive) StringsAt(indices []int) ([]string, error) {
	out := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(a.Strings) {
			return nil, &DecodeError{Msg: fmt.Sprintf("string index %d out of range (table size %d)", idx, len(a.Strings))}
		}
		out[i] = a.Strings[idx]
	}
	return out, nil
}

// ModuleNames returns the decoded dotted name of every module in the archive,
// in module order.
func (a *Archive) ModuleNames() ([][]string, error) {
	names := make([][]string, len(a.Modules))
	for i, nameIdx := range a.Modules {
		if nameIdx < 0 || nameIdx >= len(a.Names) {
			return nil, &DecodeError{Msg: fmt.Sprintf("dotted-name index %d out of range (table size %d)", nameIdx, len(a.Names))}
		}
		segments, err := a.StringsAt(a.Names[nameIdx])
		if err != nil {
			return nil, err
		}
		names[i] = segments
	}
	return names, nil
}

// payloadReader walks the payload with position tracking so decode errors
// name what was being read when the input ran out.
type payloadReader struct {
	buf []byte
	pos int
}

func (r *payloadReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, &DecodeError{Msg: fmt.Sprintf("truncated payload at byte %d (need %d more)", r.pos, n-(len(r.buf)-r.pos))}
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *payloadReader) uvarint(what string) (uint64, error) {
	v, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, &DecodeError{Msg: fmt.Sprintf("truncated %s varint at byte %d", what, r.pos)}
	}
	r.pos += n
	return v, nil
}

// count reads a table-size varint and sanity-checks it against the remaining
// input, so a corrupt count cannot drive a huge allocation.
func (r *payloadReader) count(what string) (int, error) {
	v, err := r.uvarint(what + " count")
	if err != nil {
		return 0, err
	}
	if v > uint64(len(r.buf)-r.pos) {
		return 0, &DecodeError{Msg: fmt.Sprintf("%s count %d exceeds remaining payload (%d bytes)", what, v, len(r.buf)-r.pos)}
	}
	return int(v), nil
}
