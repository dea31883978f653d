// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import "unsafe"

const (
	// wordAlign is the fixed word alignment (spec A=8): every descriptor
	// size and the header itself are rounded up to a multiple of it.
	wordAlign = 8

	// mapThreshold is T_malloc: requests whose aligned size plus header
	// meet or exceed this go straight to an anonymous mapping.
	mapThreshold = 128 * 1024
)

// blockStatus is the lifecycle state of a descriptor (spec §3).
type blockStatus uint8

const (
	statusFree blockStatus = iota
	statusHeapAlloc
	statusMapped
)

func (s blockStatus) String() string {
	switch s {
	case statusFree:
		return "free"
	case statusHeapAlloc:
		return "heap_alloc"
	case statusMapped:
		return "mapped"
	default:
		return "unknown"
	}
}

// descriptor is the fixed-size header placed at the front of every managed
// region; the caller-visible payload begins headerSize bytes after it.
type descriptor struct {
	size   uintptr // payload byte count, a multiple of wordAlign
	status blockStatus
	next   *descriptor
}

// headerSize is H: the word-aligned size of a descriptor, computed once.
var headerSize = uintptr(roundup(int(unsafe.Sizeof(descriptor{})), wordAlign))

// roundup rounds n up to the next multiple of m. m must be a power of 2.
// if n%m != 0 { n += m - n%m }
func roundup(n, m int) int { return (n + m - 1) &^ (m - 1) }

// align word-aligns n, matching the original's ALIGN(size) macro.
func align(n uintptr) uintptr {
	return uintptr(roundup(int(n), wordAlign))
}

// configure resets d's fields in one call (original's configureMeta).
func (d *descriptor) configure(size uintptr, status blockStatus) {
	d.size = size
	d.status = status
	d.next = nil
}

// addressOf converts a descriptor to its caller-visible payload address.
func addressOf(d *descriptor) unsafe.Pointer {
	return unsafe.Pointer(uintptr(unsafe.Pointer(d)) + headerSize)
}

// descriptorOf converts a caller-visible payload address back to its
// owning descriptor. descriptorOf(addressOf(d)) == d for every d.
func descriptorOf(p unsafe.Pointer) *descriptor {
	return (*descriptor)(unsafe.Pointer(uintptr(p) - headerSize))
}

// minSize returns the smaller of two byte counts (original's minimumValue).
func minSize(a, b uintptr) uintptr {
	if a < b {
		return a
	}
	return b
}

// usableSize reports the payload capacity backing a live address, without
// exposing it as part of the public API (spec.md names no such operation).
// Kept as a named helper rather than inlined so call sites that only care
// "is this block already big enough" read as such.
func usableSize(p unsafe.Pointer) uintptr {
	return descriptorOf(p).size
}
