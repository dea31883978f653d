// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
)

// Release implements the public release policy (spec §4.5). Releasing a
// nil address, or an address already FREE, is a no-op (the latter is left
// undefined by the source; treated as a no-op here, as spec §4.5 advises).
func (a *Allocator) Release(ptr unsafe.Pointer) {
	debugf("Release", zap.String("ptr", fmt.Sprintf("%p", ptr)))

	if ptr == nil {
		return
	}

	b := descriptorOf(ptr)
	switch b.status {
	case statusHeapAlloc:
		b.status = statusFree
	case statusMapped:
		size := b.size
		a.reg.remove(b)
		a.adapter.unmapPages(unsafe.Pointer(b), size+headerSize)
	case statusFree:
		// No-op: behavior is unspecified by the source (spec §4.5).
	}
}
