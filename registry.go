// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

// registry is the block descriptor list: zero or more FREE/HEAP_ALLOC
// descriptors in insertion order, followed by zero or more MAPPED
// descriptors in insertion order (spec §3, "Registry").
type registry struct {
	head *descriptor
}

// insert places d respecting the partition invariant: mapped descriptors
// are appended after the last node, heap descriptors are inserted
// immediately before the first mapped node (or appended if there is none).
func (r *registry) insert(d *descriptor, status blockStatus) {
	if r.head == nil {
		r.head = d
		return
	}

	if status == statusMapped {
		cur := r.head
		for cur.next != nil {
			cur = cur.next
		}
		cur.next = d
		d.next = nil
		return
	}

	// Heap insert: unshift when the whole list is currently mapped.
	if r.head.status == statusMapped {
		d.next = r.head
		r.head = d
		return
	}

	cur := r.head
	next := cur.next
	for next != nil {
		if next.status == statusMapped {
			break
		}
		cur = next
		next = cur.next
	}
	d.next = next
	cur.next = d
}

// remove unlinks d by identity. It is a no-op when the list is empty or d
// is not present.
//
// Preserved bug (spec §9, "Buggy single-node remove"): when the list has
// exactly one node, remove clears the head unconditionally, without
// checking that the node is d. This matches the original C
// deleteElementFromList and is kept rather than fixed.
func (r *registry) remove(d *descriptor) {
	if r.head == nil {
		return
	}

	if r.head.next == nil {
		r.head = nil
		return
	}

	if r.head == d {
		r.head = d.next
		return
	}

	cur := r.head
	for cur.next != nil && cur.next != d {
		cur = cur.next
	}
	if cur.next == nil {
		return
	}
	cur.next = d.next
}

// lastHeap returns the descriptor whose next is either absent or MAPPED,
// provided it is itself a heap descriptor (FREE or HEAP_ALLOC); otherwise
// none. It is the only descriptor whose payload may abut the program break.
func (r *registry) lastHeap() *descriptor {
	if r.head == nil {
		return nil
	}

	cur := r.head
	for cur.next != nil {
		if cur.next.status == statusMapped {
			break
		}
		cur = cur.next
	}

	if cur.status == statusHeapAlloc || cur.status == statusFree {
		return cur
	}
	return nil
}
