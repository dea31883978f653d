// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

// Modifications (c) 2017 The Memory Authors.
// Further modifications for address-based (rather than []byte-based)
// mapping, and fatal-on-failure semantics per spec §4.1/§7.

package memory

import (
	"os"
	"sync"
	"syscall"
	"unsafe"
)

var osPageSize = os.Getpagesize()
var osPageMask = osPageSize - 1

// mmap on Windows is a two-step process: CreateFileMapping gets a handle,
// then MapViewOfFile gets an actual pointer into memory.

var (
	handleMu  sync.Mutex
	handleMap = map[uintptr]syscall.Handle{}
)

// rawMapPages obtains an anonymous, private, read/write mapping of at
// least length bytes. Failure is fatal (spec §4.1).
func rawMapPages(length uintptr) unsafe.Pointer {
	flProtect := uint32(syscall.PAGE_READWRITE)
	dwDesiredAccess := uint32(syscall.FILE_MAP_WRITE)

	maxSizeHigh := uint32(uint64(length) >> 32)
	maxSizeLow := uint32(uint64(length) & 0xFFFFFFFF)
	h, err := syscall.CreateFileMapping(syscall.InvalidHandle, nil, flProtect, maxSizeHigh, maxSizeLow, nil)
	if h == 0 {
		fatalf("CreateFileMapping", os.NewSyscallError("CreateFileMapping", err))
	}

	addr, err := syscall.MapViewOfFile(h, dwDesiredAccess, 0, 0, length)
	if addr == 0 {
		fatalf("MapViewOfFile", os.NewSyscallError("MapViewOfFile", err))
	}

	if addr&uintptr(osPageMask) != 0 {
		fatalf("MapViewOfFile", os.NewSyscallError("MapViewOfFile", syscall.EINVAL))
	}

	handleMu.Lock()
	handleMap[addr] = h
	handleMu.Unlock()
	return unsafe.Pointer(addr)
}

// rawUnmapPages releases a mapping obtained from rawMapPages. Failure is
// fatal.
func rawUnmapPages(base unsafe.Pointer, length uintptr) {
	addr := uintptr(base)
	if err := syscall.UnmapViewOfFile(addr); err != nil {
		fatalf("UnmapViewOfFile", err)
	}

	handleMu.Lock()
	handle, ok := handleMap[addr]
	delete(handleMap, addr)
	handleMu.Unlock()
	if !ok {
		fatalf("UnmapViewOfFile", os.NewSyscallError("UnmapViewOfFile", syscall.EINVAL))
	}

	if err := syscall.CloseHandle(handle); err != nil {
		fatalf("CloseHandle", os.NewSyscallError("CloseHandle", err))
	}
}
