// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package memory implements a general-purpose dynamic memory allocator
// that manages its own address space instead of delegating to the host
// runtime's allocator: small requests are served from a movable program
// break, large requests from anonymous page mappings, and freed regions
// are coalesced, split, and reused without further syscalls where
// possible.
//
// The block manager — placement, split/coalesce, and in-place-grow policy
// — is the entire surface of this package: Alloc, ZeroedAlloc, Resize and
// Release. There is no thread safety, no arenas, no size classes: an
// Allocator is single-threaded cooperative, and concurrent callers must
// serialize externally.
package memory

import (
	"fmt"
	"os"
	"unsafe"

	"go.uber.org/zap"
)

// Allocator allocates and releases raw memory. Its zero value is ready
// for use. An Allocator owns exactly one block registry and one syscall
// adapter; it does not share state with any other Allocator value.
type Allocator struct {
	reg          registry
	adapter      osAdapter
	preallocated bool

	// reservation overrides the production adapter's break-arena size
	// (see adapter.go's defaultReservation); zero means "use the
	// default". The field is unexported, so only code inside this package
	// (such as tests that want a smaller emulated break) can set it.
	reservation uintptr
}

func (a *Allocator) ensureAdapter() {
	if a.adapter == nil {
		a.adapter = newRealAdapter(a.reservation)
	}
}

// Alloc requests n bytes, word-aligned, returning nil when align(n) is 0.
// Requests whose aligned size plus header meet or exceed 128 KiB are
// served from a fresh anonymous mapping; smaller requests are served from
// the heap partition (spec §4.3, §6).
func (a *Allocator) Alloc(n uintptr) unsafe.Pointer {
	a.ensureAdapter()
	p := a.allocHelper(n, mapThreshold, false)
	debugf("Alloc", zap.Uint64("n", uint64(n)), zap.String("result", fmt.Sprintf("%p", p)))
	return p
}

// ZeroedAlloc requests space for nmemb elements of size bytes each,
// zero-filled. It uses the OS page size, rather than the 128 KiB of Alloc,
// as its mapping threshold — large zeroed requests are expected to come
// from freshly-mapped pages, which the OS already hands back zeroed (spec
// §4.3, §9 "Different mapping thresholds for plain vs zeroed alloc"). The
// smaller threshold governs only that map-path decision: a first heap
// touch triggered from here still preallocates the full 128 KiB, same as
// from Alloc (see firstHeapAlloc in placement.go).
func (a *Allocator) ZeroedAlloc(nmemb, size uintptr) unsafe.Pointer {
	a.ensureAdapter()
	p := a.allocHelper(nmemb*size, uintptr(os.Getpagesize()), true)
	debugf("ZeroedAlloc", zap.Uint64("nmemb", uint64(nmemb)), zap.Uint64("size", uint64(size)),
		zap.String("result", fmt.Sprintf("%p", p)))
	return p
}

// NewAllocator returns an Allocator with its own independent registry and
// syscall adapter, distinct from the package-level singleton used by the
// top-level Alloc/ZeroedAlloc/Resize/Release functions. Most callers
// should prefer the top-level functions; NewAllocator exists for callers
// that want an isolated arena (tests, or multiple independently-released
// pools within one process — still each single-threaded, per spec's
// Non-goals).
func NewAllocator() *Allocator { return &Allocator{} }

// process is the implicit, lazily-initialized, process-wide Allocator
// backing the top-level functions below (spec §5: "process-wide state
// with implicit initialisation (empty list, flag clear)").
var process Allocator

// Alloc is the package-level entry point, see (*Allocator).Alloc.
func Alloc(n uintptr) unsafe.Pointer { return process.Alloc(n) }

// ZeroedAlloc is the package-level entry point, see (*Allocator).ZeroedAlloc.
func ZeroedAlloc(nmemb, size uintptr) unsafe.Pointer { return process.ZeroedAlloc(nmemb, size) }

// Resize is the package-level entry point, see (*Allocator).Resize.
func Resize(ptr unsafe.Pointer, n uintptr) unsafe.Pointer { return process.Resize(ptr, n) }

// Release is the package-level entry point, see (*Allocator).Release.
func Release(ptr unsafe.Pointer) { process.Release(ptr) }
