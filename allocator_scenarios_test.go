// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"os"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// These tests pin the seven literal end-to-end scenarios of spec.md §8.

func TestScenario1_SmallFirstAllocPreallocates(t *testing.T) {
	a, f := newTestAllocator(1 << 20)

	p := a.Alloc(100)
	require.NotNil(t, p)
	require.Equal(t, []uintptr{mapThreshold}, f.breakCalls)
	require.Equal(t, mapThreshold-headerSize, descriptorOf(p).size,
		"firstHeapAlloc hands the whole preallocated block to the first caller, unsplit")

	// The first block is entirely HEAP_ALLOC with no FREE residual (it was
	// never split), so a second small alloc still in the same arena must
	// grow the break again rather than reuse any of it.
	q := a.Alloc(200)
	require.NotNil(t, q)
	require.Len(t, f.breakCalls, 2)
	require.Empty(t, f.mapCalls)

	// Once the first block is released, its space becomes reusable.
	a.Release(p)
	breaksBefore := len(f.breakCalls)
	r := a.Alloc(64)
	require.Equal(t, p, r)
	require.Len(t, f.breakCalls, breaksBefore, "residual space reused after release, no new break move")
}

// TestScenario1b_ZeroedAllocFirstTouchUsesMallocThreshold guards against a
// regression where the one-time heap preallocation used ZeroedAlloc's own
// (page-sized) mapping threshold instead of the fixed 128 KiB T_malloc
// (spec §6; original_source/osmem.c's os_malloc_calloc_helper calls
// firstHeapAlloc(THRESHOLD) unconditionally, never the page-size
// threshold). It also checks the payload actually comes back zeroed.
func TestScenario1b_ZeroedAllocFirstTouchUsesMallocThreshold(t *testing.T) {
	a, f := newTestAllocator(1 << 20)
	require.Less(t, uintptr(os.Getpagesize()), uintptr(mapThreshold),
		"test assumes the OS page size is well under T_malloc")

	p := a.ZeroedAlloc(1, 64)
	require.NotNil(t, p)
	require.Equal(t, []uintptr{mapThreshold}, f.breakCalls,
		"first heap touch must preallocate T_malloc bytes regardless of entry point")
	require.Equal(t, mapThreshold-headerSize, descriptorOf(p).size)

	b := unsafe.Slice((*byte)(p), 64)
	for i, v := range b {
		require.Zerof(t, v, "byte %d not zeroed", i)
	}
}

func TestScenario2_LargeAllocMaps(t *testing.T) {
	a, f := newTestAllocator(1 << 20)

	p := a.Alloc(200000)
	require.NotNil(t, p)
	require.Equal(t, []uintptr{200000 + headerSize}, f.mapCalls)

	a.Release(p)
	require.Len(t, f.unmapCalls, 1)
	require.Equal(t, uintptr(unsafe.Pointer(descriptorOf(p))), uintptr(f.unmapCalls[0].base))
	require.Equal(t, uintptr(200000)+headerSize, f.unmapCalls[0].length)
}

func TestScenario3_SplitAndReuse(t *testing.T) {
	a, _ := newTestAllocator(1 << 20)

	p := a.Alloc(100)
	a.Release(p)

	p2 := a.Alloc(48)
	require.Equal(t, p, p2)

	p3 := a.Alloc(16)
	require.Equal(t, unsafe.Add(p, 48+int(headerSize)), p3)
}

func TestScenario4_CoalesceThreeNeighbors(t *testing.T) {
	a, f := newTestAllocator(1 << 20)
	a.preallocated = true // bypass first-heap-touch; force otherHeapAlloc growth

	pa := a.Alloc(64)
	pb := a.Alloc(96)
	pc := a.Alloc(32)
	require.Len(t, f.breakCalls, 3)

	sizeA, sizeB, sizeC := descriptorOf(pa).size, descriptorOf(pb).size, descriptorOf(pc).size

	a.Release(pa)
	a.Release(pc)
	a.Release(pb)

	breaksBefore := len(f.breakCalls)
	merged := a.Alloc(sizeA + sizeB + sizeC + 2*headerSize)
	require.Equal(t, pa, merged)
	require.Len(t, f.breakCalls, breaksBefore, "a fit existed; no new break move should occur")
}

func TestScenario5_GrowInPlaceViaAbsorption(t *testing.T) {
	a, f := newTestAllocator(1 << 20)
	a.preallocated = true

	px := a.Alloc(64)
	py := a.Alloc(32)
	sizeY := descriptorOf(py).size

	a.Release(py)

	breaksBefore := len(f.breakCalls)
	sizeX := descriptorOf(px).size
	grown := a.Resize(px, sizeX+sizeY+headerSize)
	require.Equal(t, px, grown)
	require.Len(t, f.breakCalls, breaksBefore)
}

func TestScenario6_GrowTopmostViaBreak(t *testing.T) {
	a, f := newTestAllocator(1 << 20)
	a.preallocated = true

	px := a.Alloc(64)
	sizeX := descriptorOf(px).size

	grown := a.Resize(px, sizeX+4096)
	require.Equal(t, px, grown)
	require.Len(t, f.breakCalls, 2) // the initial otherHeapAlloc plus the extend
	require.Equal(t, uintptr(4096), f.breakCalls[len(f.breakCalls)-1])
}

func TestScenario7_RelocateOnGrowFailure(t *testing.T) {
	a, _ := newTestAllocator(1 << 20)
	a.preallocated = true

	px := a.Alloc(64)
	_ = a.Alloc(32) // py: kept live, blocks in-place growth of px
	sizeX := descriptorOf(px).size

	moved := a.Resize(px, sizeX+1)
	require.NotEqual(t, px, moved)
	require.NotNil(t, moved)
}
