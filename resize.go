// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

// Resize implements the public resize policy (spec §4.4). It returns nil
// (without changing any state) when ptr is absent and n is 0, or when the
// block at ptr is FREE (a caller-contract violation).
func (a *Allocator) Resize(ptr unsafe.Pointer, n uintptr) (r unsafe.Pointer) {
	defer func() {
		debugf("Resize", zap.String("ptr", fmt.Sprintf("%p", ptr)), zap.Uint64("n", uint64(n)),
			zap.String("result", fmt.Sprintf("%p", r)))
	}()

	if ptr == nil {
		return a.Alloc(n)
	}
	if n == 0 {
		a.Release(ptr)
		return nil
	}

	s := align(n)
	b := descriptorOf(ptr)

	if b.status == statusFree {
		return nil
	}

	if b.status == statusMapped || s+headerSize >= mapThreshold {
		return a.relocate(ptr, b, s)
	}

	switch {
	case s < b.size:
		return addressOf(a.split(b, s))
	case s == usableSize(ptr):
		return ptr
	default:
		if a.grow(b, s) {
			return addressOf(b)
		}
		return a.relocate(ptr, b, s)
	}
}

// relocate allocates a fresh block of size s, copies the overlap, releases
// the original, and returns the new address.
func (a *Allocator) relocate(ptr unsafe.Pointer, b *descriptor, s uintptr) unsafe.Pointer {
	dst := a.Alloc(s)
	copyBytes(dst, ptr, minSize(b.size, s))
	a.Release(ptr)
	return dst
}

// grow attempts in-place growth of b to payload size s by absorbing
// consecutive FREE right-neighbors, falling back to extending the break
// when b is the topmost heap block (spec §4.4, "In-place grow").
func (a *Allocator) grow(b *descriptor, s uintptr) (ok bool) {
	defer func() {
		debugf("grow", zap.Uint64("target", uint64(s)), zap.Bool("ok", ok))
	}()

	cur := a.reg.head
	for cur != nil && cur != b {
		cur = cur.next
	}
	if cur == nil {
		return false
	}

	for cur.next != nil && cur.next.status == statusFree {
		next := cur.next
		cur.size += next.size + headerSize
		cur.next = next.next
		if cur.size >= s {
			a.split(cur, s)
			return true
		}
	}

	if cur.next == nil || cur.next.status == statusMapped {
		next := cur.next
		a.adapter.requestBreak(s - cur.size)
		cur.configure(s, statusHeapAlloc)
		cur.next = next
		return true
	}

	return false
}

func copyBytes(dst, src unsafe.Pointer, n uintptr) {
	if n == 0 {
		return
	}
	d := unsafe.Slice((*byte)(dst), int(n))
	s := unsafe.Slice((*byte)(src), int(n))
	copy(d, s)
}
