// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package applog is a tiny set of fmt.Printf helpers that write to stdout
// with every line prefixed by an RFC3339 timestamp, the way the rest of this
// codebase prints its own ad hoc status lines.
package applog

import (
	"fmt"
	"time"
)

func stamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Info prints an informational line.
func Info(format string, args ...interface{}) {
	fmt.Printf("[%s] %s\n", stamp(), fmt.Sprintf(format, args...))
}

// Warn prints a warning line. Used for LockHeld and other recoverable
// conditions that should not interrupt the caller.
func Warn(format string, args ...interface{}) {
	fmt.Printf("[%s] WARN: %s\n", stamp(), fmt.Sprintf(format, args...))
}

// Error prints an error line. The caller has already decided this is not
// fatal (fatal conditions propagate instead of going through the logger).
func Error(format string, args ...interface{}) {
	fmt.Printf("[%s] ERROR: %s\n", stamp(), fmt.Sprintf(format, args...))
}

// yellow wraps s in the same ANSI yellow used for end-of-run summaries.
func yellow(s string) string {
	return "\x1b[33m" + s + "\x1b[0m"
}

// Summary prints a highlighted, end-of-run summary line.
func Summary(format string, args ...interface{}) {
	fmt.Print(yellow(fmt.Sprintf("[%s] %s\n", stamp(), fmt.Sprintf(format, args...))))
}
