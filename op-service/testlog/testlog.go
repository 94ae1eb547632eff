// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

var useColor = os.Getenv("OP_TESTLOG_DISABLE_COLOR") != "true"

// Testing is the subset of testing.TB the logger needs.
type Testing interface {
	Logf(format string, args ...any)
	Helper()
	FailNow()
}

// logger implements log.Logger such that all output goes to the unit test log via t.Logf().
// Every method is marked as a test helper, so the reported file and line are the call site.
type logger struct {
	t   Testing
	l   log.Logger
	mu  *sync.Mutex
	buf *syncBuffer
}

var _ log.Logger = (*logger)(nil)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t Testing, level slog.Level) log.Logger {
	l := &logger{t: t, mu: new(sync.Mutex), buf: &syncBuffer{b: new(bytes.Buffer)}}
	l.l = log.NewLogger(log.NewTerminalHandlerWithLevel(l.buf, level, useColor))
	return l
}

func (l *logger) Handler() slog.Handler {
	return l.l.Handler()
}

func (l *logger) SetContext(ctx context.Context) {}

func (l *logger) LogAttrs(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l.t.Helper()
	l.do(func() { l.l.LogAttrs(ctx, level, msg, attrs...) })
}

func (l *logger) TraceContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.do(func() { l.l.TraceContext(ctx, msg, args...) })
}

func (l *logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.do(func() { l.l.DebugContext(ctx, msg, args...) })
}

func (l *logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.do(func() { l.l.InfoContext(ctx, msg, args...) })
}

func (l *logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.do(func() { l.l.WarnContext(ctx, msg, args...) })
}

func (l *logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.t.Helper()
	l.do(func() { l.l.ErrorContext(ctx, msg, args...) })
}

func (l *logger) Trace(msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Trace(msg, ctx...) })
}

func (l *logger) Debug(msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Debug(msg, ctx...) })
}

func (l *logger) Info(msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Info(msg, ctx...) })
}

func (l *logger) Warn(msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Warn(msg, ctx...) })
}

func (l *logger) Error(msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Error(msg, ctx...) })
}

func (l *logger) Crit(msg string, ctx ...any) {
	l.t.Helper()
	// l.l.Crit would exit the process before the buffer is flushed.
	l.do(func() { l.l.Write(log.LevelCrit, msg, ctx...) })
	l.t.FailNow()
}

func (l *logger) Log(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Log(level, msg, ctx...) })
}

func (l *logger) Write(level slog.Level, msg string, ctx ...any) {
	l.t.Helper()
	l.do(func() { l.l.Log(level, msg, ctx...) })
}

func (l *logger) WriteCtx(ctx context.Context, level slog.Level, msg string, args ...any) {
	l.t.Helper()
	l.do(func() { l.l.WriteCtx(ctx, level, msg, args...) })
}

func (l *logger) New(ctx ...any) log.Logger {
	return &logger{l.t, l.l.New(ctx...), l.mu, l.buf}
}

func (l *logger) With(ctx ...any) log.Logger {
	return l.New(ctx...)
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.l.Enabled(ctx, level)
}

func (l *logger) do(fn func()) {
	l.t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	fn()
	l.flush()
}

// flush writes all buffered lines to the test log and clears the buffer.
func (l *logger) flush() {
	l.t.Helper()
	scanner := bufio.NewScanner(l.buf)
	for scanner.Scan() {
		l.t.Logf("%s", scanner.Text())
	}
	l.buf.Reset()
}

type syncBuffer struct {
	mu sync.Mutex
	b  *bytes.Buffer
}

var _ io.ReadWriter = (*syncBuffer)(nil)

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *syncBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Read(p)
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.b.Reset()
}
