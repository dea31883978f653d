// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"
	"syscall"
	"unsafe"

	"go.uber.org/zap"
)

// defaultReservation is the size of the single anonymous mapping the
// adapter reserves on its first requestBreak call, used to emulate a
// movable program break (see SPEC_FULL.md §4.1 for why a real sbrk/brk is
// not used).
const defaultReservation = 1 << 30 // 1 GiB

// osAdapter is the syscall boundary: moving the program break and
// mapping/unmapping anonymous pages. Both failure modes are fatal per
// spec §4.1 — there is no byte to return to the caller on failure, so the
// adapter terminates the process instead of returning an error.
//
// It is an interface so tests can substitute a deterministic fake that
// counts calls and records arguments without touching real OS memory.
type osAdapter interface {
	requestBreak(delta uintptr) uintptr
	mapPages(length uintptr) unsafe.Pointer
	unmapPages(base unsafe.Pointer, length uintptr)
}

// realAdapter is the production osAdapter: mapPages/unmapPages hit real
// anonymous mappings (OS-specific, see adapter_unix.go/adapter_windows.go);
// requestBreak emulates sbrk over one lazily-reserved mapping.
type realAdapter struct {
	reservation uintptr // size of the lazily-created break arena
	base        unsafe.Pointer
	brk         uintptr // logical offset of the current break within base
}

func newRealAdapter(reservation uintptr) *realAdapter {
	if reservation == 0 {
		reservation = defaultReservation
	}
	return &realAdapter{reservation: reservation}
}

// requestBreak moves the emulated program break by delta bytes and returns
// the break's previous position (matching sbrk's contract: previous break
// on success, fatal on failure). The first call reserves the whole arena
// via one real anonymous mapping; subsequent calls just advance the
// cursor, since overcommitted anonymous pages are already zero-filled and
// usable without a further syscall.
func (a *realAdapter) requestBreak(delta uintptr) uintptr {
	if a.base == nil {
		a.base = rawMapPages(a.reservation)
	}
	prev := a.brk
	if prev+delta > a.reservation {
		fatalf("requestBreak", fmt.Errorf("program break reservation of %d bytes exhausted", a.reservation))
	}
	a.brk = prev + delta
	return uintptr(a.base) + prev
}

func (a *realAdapter) mapPages(length uintptr) unsafe.Pointer {
	return rawMapPages(length)
}

func (a *realAdapter) unmapPages(base unsafe.Pointer, length uintptr) {
	rawUnmapPages(base, length)
}

// fatalf logs the failing call, its source location, and err via zap, then
// terminates the process with the system errno when one is available —
// the Go realization of the original DIE macro's "print call, file:line,
// system error, then exit(errno)" contract (helpers.h, spec §7).
func fatalf(call string, err error) {
	_, fn, line, _ := runtime.Caller(2)
	fatalLogger().Fatal("fatal syscall failure",
		zap.String("call", call),
		zap.String("source", fmt.Sprintf("%s:%d", path.Base(fn), line)),
		zap.Error(err),
	)
	// The fatal logger's hook is returnAfterWrite (logging.go), so control
	// reaches here instead of zap calling os.Exit(1) itself.
	code := 1
	var errno syscall.Errno
	if ok := asErrno(err, &errno); ok {
		code = int(errno)
	}
	os.Exit(code)
}

func asErrno(err error, target *syscall.Errno) bool {
	return errors.As(err, target)
}
