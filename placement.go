// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"unsafe"

	"go.uber.org/zap"
)

// allocHelper is the common placement policy behind Alloc and ZeroedAlloc,
// parameterized by the mapping threshold and whether the payload must be
// zero-filled before return (spec §4.3).
func (a *Allocator) allocHelper(n uintptr, threshold uintptr, zero bool) unsafe.Pointer {
	s := align(n)
	if s == 0 {
		return nil
	}

	var p unsafe.Pointer
	switch {
	case s+headerSize >= threshold:
		p = a.mapAlloc(s)
	case !a.preallocated:
		p = a.firstHeapAlloc()
	default:
		p = a.reuseAlloc(s)
	}

	// Map-path results are already zero (fresh anonymous pages); the
	// zero-fill still runs unconditionally when requested, map path
	// included: the redundant zero of a freshly mapped page costs nothing
	// incorrect, only a few wasted stores, and keeping one code path is
	// simpler than special-casing mapped-and-zero.
	if zero {
		zeroFill(p, s)
	}
	return p
}

// mapAlloc services s via a fresh anonymous mapping (spec §4.3, "Map path").
func (a *Allocator) mapAlloc(s uintptr) unsafe.Pointer {
	base := a.adapter.mapPages(s + headerSize)
	d := (*descriptor)(base)
	d.configure(s, statusMapped)
	a.reg.insert(d, statusMapped)
	debugf("mapAlloc", zap.Uint64("size", uint64(s)))
	return addressOf(d)
}

// firstHeapAlloc performs the one-time heap preallocation. It always
// requests mapThreshold (T_malloc) bytes, regardless of which entry point
// triggered it: spec §6 is explicit that the preallocation is "one
// contiguous request of T_malloc bytes", and the grounded original calls
// firstHeapAlloc(THRESHOLD) with the hardcoded malloc threshold even from
// the calloc path (os_malloc_calloc_helper, original_source/osmem.c) —
// zeroedAlloc's smaller, page-sized threshold only governs its own
// map-path decision, never the preallocation size (spec §4.3, "First heap
// touch").
func (a *Allocator) firstHeapAlloc() unsafe.Pointer {
	a.preallocated = true
	base := a.adapter.requestBreak(mapThreshold)
	d := (*descriptor)(unsafe.Pointer(base))
	d.configure(mapThreshold-headerSize, statusHeapAlloc)
	a.reg.insert(d, statusHeapAlloc)
	debugf("firstHeapAlloc", zap.Uint64("preallocated", uint64(mapThreshold)))
	return addressOf(d)
}

// otherHeapAlloc grows the break by exactly s+headerSize bytes for a new
// heap descriptor (spec §4.3, reuse-path miss fallback).
func (a *Allocator) otherHeapAlloc(s uintptr) *descriptor {
	base := a.adapter.requestBreak(s + headerSize)
	d := (*descriptor)(unsafe.Pointer(base))
	d.configure(s, statusHeapAlloc)
	a.reg.insert(d, statusHeapAlloc)
	return d
}

// reuseAlloc runs best-fit and falls back to growing the heap (spec §4.3,
// "Reuse path").
func (a *Allocator) reuseAlloc(s uintptr) unsafe.Pointer {
	if d := a.findFit(s); d != nil {
		debugf("reuseAlloc", zap.Uint64("size", uint64(s)), zap.Bool("hit", true))
		return addressOf(d)
	}
	debugf("reuseAlloc", zap.Uint64("size", uint64(s)), zap.Bool("hit", false))
	return addressOf(a.otherHeapAlloc(s))
}

// findFit runs the coalesce pass then the best-fit selection pass (spec
// §4.3, "Best-fit with lazy coalescing"). It returns nil only when no free
// block can be found or grown to size s.
func (a *Allocator) findFit(s uintptr) *descriptor {
	a.coalesce()

	var best *descriptor
	for cur := a.reg.head; cur != nil; cur = cur.next {
		if cur.status != statusFree || cur.size < s {
			continue
		}
		if best == nil || cur.size < best.size {
			best = cur
		}
	}

	if best != nil {
		best.status = statusHeapAlloc
		return a.split(best, s)
	}

	if top := a.reg.lastHeap(); top != nil && top.status == statusFree {
		next := top.next
		a.adapter.requestBreak(s - top.size)
		top.configure(s, statusHeapAlloc)
		top.next = next
		return top
	}
	return nil
}

// coalesce merges every run of adjacent FREE heap descriptors into one,
// walking the list once (spec §4.3, "Coalesce pass").
func (a *Allocator) coalesce() {
	for cur := a.reg.head; cur != nil; {
		for cur.next != nil && cur.status == statusFree && cur.next.status == statusFree {
			next := cur.next
			cur.size += next.size + headerSize
			cur.next = next.next
		}
		cur = cur.next
	}
}

// split carves a FREE trailer off of d when d's payload is big enough to
// leave at least one usable aligned byte behind (spec §4.3, "Split"). d is
// returned either way, resized to s when a split happened.
func (a *Allocator) split(d *descriptor, s uintptr) *descriptor {
	if d.size < s+headerSize+wordAlign {
		return d
	}

	trailer := (*descriptor)(unsafe.Pointer(uintptr(unsafe.Pointer(d)) + headerSize + s))
	trailer.configure(d.size-s-headerSize, statusFree)
	trailer.next = d.next

	d.size = s
	d.status = statusHeapAlloc
	d.next = trailer
	return d
}

func zeroFill(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), int(n))
	for i := range b {
		b[i] = 0
	}
}
