// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors creates and wraps errors for the local runner. Wrapped errors
// print a top-level message first, then each layer of context, then the root
// cause, which keeps failures deep in bundle evaluation readable.
//
// Two sentinel kinds classify caller misuse: ErrInvalidArgument and
// ErrIllegalState. Errors built with InvalidArgumentf or IllegalStatef match
// them with Is, through any amount of wrapping.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidArgument marks a required value that was missing or malformed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalState marks an operation attempted in a state that forbids it,
	// such as committing a bundle twice.
	ErrIllegalState = errors.New("illegal state")
)

// New returns an error with the given message.
func New(message string) error {
	return errors.New(message)
}

// Errorf returns an error formatted according to the format specifier. %w
// verbs wrap as they do with fmt.Errorf.
func Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// InvalidArgumentf returns an error that matches ErrInvalidArgument.
func InvalidArgumentf(format string, args ...any) error {
	return &kindError{kind: ErrInvalidArgument, msg: fmt.Sprintf(format, args...)}
}

// IllegalStatef returns an error that matches ErrIllegalState.
func IllegalStatef(format string, args ...any) error {
	return &kindError{kind: ErrIllegalState, msg: fmt.Sprintf(format, args...)}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return fmt.Sprintf("%v: %s", e.kind, e.msg)
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

// Wrap annotates err with message. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &runnerError{cause: err, msg: message, top: topOf(err)}
}

// Wrapf annotates err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &runnerError{cause: err, msg: fmt.Sprintf(format, args...), top: topOf(err)}
}

// WithContext adds context describing where err surfaced. Returns nil if err is nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return &runnerError{cause: err, context: context, top: topOf(err)}
}

// WithContextf adds formatted context to err. Returns nil if err is nil.
func WithContextf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &runnerError{cause: err, context: fmt.Sprintf(format, args...), top: topOf(err)}
}

// SetTopLevelMsg sets the first line printed for err and anything that later
// wraps it.
func SetTopLevelMsg(err error, top string) error {
	if err == nil {
		return nil
	}
	return &runnerError{cause: err, top: top}
}

// SetTopLevelMsgf is SetTopLevelMsg with a format specifier.
func SetTopLevelMsgf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &runnerError{cause: err, top: fmt.Sprintf(format, args...)}
}

func topOf(err error) string {
	if re, ok := err.(*runnerError); ok {
		return re.top
	}
	return ""
}

// runnerError is one layer of an error chain. A layer with a context but no
// message describes where the cause happened; a layer with a message is an
// error in its own right, caused by the next layer. top propagates upward from
// the innermost layer that set it.
type runnerError struct {
	cause   error
	context string
	msg     string
	top     string
}

func (e *runnerError) Error() string {
	var sb strings.Builder
	if e.top != "" {
		fmt.Fprintf(&sb, "%s\nFull error:\n", e.top)
	}
	e.write(&sb)
	return sb.String()
}

func (e *runnerError) write(sb *strings.Builder) {
	if e.context != "" {
		fmt.Fprintf(sb, "\t%s\n", strings.ReplaceAll(e.context, "\n", "\n\t"))
	}
	if e.msg != "" {
		sb.WriteString(e.msg)
		sb.WriteString("\n\tcaused by:\n")
	}
	if inner, ok := e.cause.(*runnerError); ok {
		inner.write(sb)
		return
	}
	sb.WriteString(e.cause.Error())
}

// Format implements fmt.Formatter so %v and %s print the full chain.
func (e *runnerError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// Unwrap returns the wrapped cause.
func (e *runnerError) Unwrap() error {
	return e.cause
}
