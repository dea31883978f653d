// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memory

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// fatalLogger is built once, lazily: a zap logger configured to log a
// Fatal record to stderr and then return control to the caller instead of
// calling os.Exit itself — fatalf (adapter.go) picks the exact exit code
// (the syscall's errno, when known) after the record is written.
var fatalLogger = sync.OnceValue(func() *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "" // no ambient wall-clock read in a hot allocation path
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), zapcore.FatalLevel)
	return zap.New(core, zap.WithFatalHook(returnAfterWrite{}))
})

// returnAfterWrite is a fatal hook that does nothing after the record is
// written, so control returns to the caller. zap replaces
// zapcore.WriteThenNoop with an exiting hook on Fatal, hence a type of
// our own.
type returnAfterWrite struct{}

func (returnAfterWrite) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}

// debugf emits a trace-gated structured record, generalizing the teacher's
// `if trace { fmt.Fprintf(os.Stderr, ...) }` convention (memory.go) to
// zap fields now that zap is already pulled in for the fatal path.
func debugf(msg string, fields ...zap.Field) {
	if !trace {
		return
	}
	debugLogger().Debug(msg, fields...)
}

var debugLogger = sync.OnceValue(func() *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		// Falling back to a no-op logger keeps debugf from ever being the
		// reason an allocation fails; tracing is a diagnostic aid only.
		return zap.NewNop()
	}
	return l
})
