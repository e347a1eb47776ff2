/*
Maillogd - Internal log server for mail systems.
Copyright © 2023 Max Mazurov <fox.cpp@disroot.org>, Maillogd contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package logwriter implements the append-only writer for the dedicated
// mail log file.
package logwriter

import (
	"os"
	"sync"

	"github.com/foxcpp/maillogd/framework/exterrors"
)

// Writer appends records to the mail log file.
//
// Records are written verbatim, in one write call each. Callers are
// expected to provide their own record framing, the writer adds or
// strips nothing. On POSIX systems a single O_APPEND write is atomic so
// records from the writer never interleave with records of other
// writers of the same file.
type Writer struct {
	path string

	// Guards f against Reopen running from the signal handling
	// goroutine while the serve loop writes.
	fLck sync.Mutex
	f    *os.File
}

// Open opens (creating if necessary) the log file at path for append.
//
// The file is opened with permissions 0600, it is expected to be opened
// while the daemon still runs privileged.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return nil, exterrors.WithFields(err, map[string]interface{}{"path": path})
	}
	return &Writer{path: path, f: f}, nil
}

// Write appends rec to the log file. Exactly len(rec) bytes are
// written, byte-identical to rec.
//
// The error is reported to the caller and nowhere else, a failed write
// is not retried.
func (w *Writer) Write(rec []byte) error {
	w.fLck.Lock()
	defer w.fLck.Unlock()

	if _, err := w.f.Write(rec); err != nil {
		return exterrors.WithFields(err, map[string]interface{}{"path": w.path})
	}
	return nil
}

// Reopen closes and reopens the log file at the same path. It is meant
// to be called after the file was rotated away so new records go to the
// new file.
//
// If the reopen fails, the old handle is kept so records are not lost
// to a closed descriptor.
func (w *Writer) Reopen() error {
	newF, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return exterrors.WithFields(err, map[string]interface{}{"path": w.path})
	}

	w.fLck.Lock()
	old := w.f
	w.f = newF
	w.fLck.Unlock()

	return old.Close()
}

// Path returns the path the writer was opened with.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) Close() error {
	w.fLck.Lock()
	defer w.fLck.Unlock()
	return w.f.Close()
}
