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

// Package relay implements the record relay decision: each record
// received on the mail log socket is appended to the dedicated log file
// if one is configured for this instance, otherwise it is forwarded to
// the system syslog daemon.
package relay

import (
	"github.com/foxcpp/maillogd/internal/logwriter"
)

// Fallback is the always-available system-wide logging facility used
// when no dedicated log file is configured. Emit is fire-and-forget.
type Fallback interface {
	Emit(rec []byte)
}

// Relay routes records to the log file or the fallback logger.
//
// Relay has exactly two states: sink configured and sink absent. The
// only transition is SetSink, performed once by the lifecycle code
// before any request is served. Request traffic never changes the
// state, so Dispatch needs no locking: there is one worker per daemon
// instance.
type Relay struct {
	sink     *logwriter.Writer
	fallback Fallback
}

func New(fallback Fallback) *Relay {
	return &Relay{fallback: fallback}
}

// SetSink configures the dedicated log file for this instance. It must
// be called before serving begins and at most once. Whether a log file
// is configured at all is decided by the configuration snapshot taken
// at process start: instances are short-lived, a changed setting takes
// effect in the next one.
func (r *Relay) SetSink(w *logwriter.Writer) {
	if r.sink != nil {
		panic("relay: sink already configured")
	}
	r.sink = w
}

// HasSink reports whether a dedicated log file is configured.
func (r *Relay) HasSink() bool {
	return r.sink != nil
}

// Dispatch routes one record.
//
// With a sink configured, exactly len(rec) bytes are appended to it
// byte-identical to rec. A failed write is returned to the caller and
// nothing else: the record is not retried, not buffered and not
// escalated to the fallback logger.
//
// Without a sink, the record is forwarded verbatim to the fallback
// logger in exactly one emission. Any timestamp already embedded in the
// record is left alone, the record is relayed byte-for-byte.
func (r *Relay) Dispatch(rec []byte) error {
	if r.sink != nil {
		if err := r.sink.Write(rec); err != nil {
			relayedRecords.WithLabelValues("file", "error").Inc()
			return err
		}
		relayedRecords.WithLabelValues("file", "ok").Inc()
		return nil
	}

	r.fallback.Emit(rec)
	relayedRecords.WithLabelValues("syslog", "ok").Inc()
	return nil
}
