package archive

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles an Archive with automatic interning: adding a module
// stores each name segment once and reuses dotted names that were already
// added. Used by deploy to construct the payload that Decode reads back.
type Builder struct {
	archive   Archive
	stringIdx map[string]int
	nameIdx   map[string]int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		stringIdx: make(map[string]int),
		nameIdx:   make(map[string]int),
	}
}

// AddModule registers a module under the given dotted name, interning the
// segments. Adding the same name twice registers two modules sharing one
// dotted-name entry.
func (b *Builder) AddModule(segments ...string) error {
	if len(segments) == 0 {
		return fmt.Errorf("module name must have at least one segment")
	}
	for i, seg := range segments {
		if seg == "" {
			return fmt.Errorf("module name segment %d is empty", i)
		}
	}

	indices := make([]int, len(segments))
	for i, seg := range segments {
		idx, ok := b.stringIdx[seg]
		if !ok {
			idx = len(b.archive.Strings)
			b.archive.Strings = append(b.archive.Strings, seg)
			b.stringIdx[seg] = idx
		}
		indices[i] = idx
	}

	nameKey := fmt.Sprint(indices)
	nameRef, ok := b.nameIdx[nameKey]
	if !ok {
		nameRef = len(b.archive.Names)
		b.archive.Names = append(b.archive.Names, indices)
		b.nameIdx[nameKey] = nameRef
	}

	b.archive.Modules = append(b.archive.Modules, nameRef)
	return nil
}

// Archive returns the assembled archive.
func (b *Builder) Archive() *Archive {
	return &b.archive
}

// Encode serializes an Archive into the wire layout documented on the
// package. It enforces the same index invariants Decode does, so an archive
// with cross-table corruption cannot be written in the first place.
func Encode(a *Archive) ([]byte, error) {
	var buf []byte
	var scratch [binary.MaxVarintLen64]byte

	putUvarint := func(v uint64) {
		n := binary.PutUvarint(scratch[:], v)
		buf = append(buf, scratch[:n]...)
	}

	buf = append(buf, Magic...)

	putUvarint(uint64(len(a.Strings)))
	for _, s := range a.Strings {
		putUvarint(uint64(len(s)))
		buf = append(buf, s...)
	}

	putUvarint(uint64(len(a.Names)))
	for i, segments := range a.Names {
		if len(segments) == 0 {
			return nil, fmt.Errorf("dotted name %d has no segments", i)
		}
		putUvarint(uint64(len(segments)))
		for _, idx := range segments {
			if idx < 0 || idx >= len(a.Strings) {
				return nil, fmt.Errorf("dotted name %d: string index %d out of range (table size %d)", i, idx, len(a.Strings))
			}
			putUvarint(uint64(idx))
		}
	}

	putUvarint(uint64(len(a.Modules)))
	for i, nameIdx := range a.Modules {
		if nameIdx < 0 || nameIdx >= len(a.Names) {
			return nil, fmt.Errorf("module %d: dotted-name index %d out of range (table size %d)", i, nameIdx, len(a.Names))
		}
		putUvarint(uint64(nameIdx))
	}

	return buf, nil
}
