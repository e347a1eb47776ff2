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

// Package dgram implements the unix datagram transport the mail log
// socket is served on.
package dgram

import (
	"errors"
	"net"
	"os"
	"time"

	"github.com/foxcpp/maillogd/framework/log"
	"github.com/foxcpp/maillogd/internal/watchdog"
)

// MaxRecordSize is the largest datagram accepted on the log socket.
// Senders format complete records client-side, anything longer is cut
// at the datagram boundary by the kernel.
const MaxRecordSize = 8192

// Endpoint owns the mail log socket.
//
// The socket is bound while the process is still privileged and then
// served after the privilege drop. Serving is strictly sequential: the
// next datagram is read only after the dispatch of the current one
// returned, so dispatch implementations need no locking.
type Endpoint struct {
	// Filesystem path of the unixgram socket.
	Path string

	// IdleTimeout bounds the time the instance sits without traffic.
	// Reaching it is a clean exit: the supervisor spawns a fresh
	// instance (with a fresh configuration snapshot) on the next
	// record. Zero means no idle bound.
	IdleTimeout time.Duration

	// UseLimit makes Serve return after that many records. The
	// lifecycle code forces it to 0 (no limit) after the privilege
	// drop: this daemon must stay available across any number of
	// client requests, only time-based bounds may end the instance.
	UseLimit int

	// Watchdog, if non-nil, is armed around each dispatch call.
	Watchdog *watchdog.Watchdog

	Log log.Logger

	conn *net.UnixConn
}

// Bind creates the socket at e.Path, replacing a stale socket file left
// by a previous instance. The socket is made writable for everyone:
// unprivileged mail processes must be able to send records to it.
//
// Bind must be called before the privilege drop.
func (e *Endpoint) Bind() error {
	if info, err := os.Lstat(e.Path); err == nil && info.Mode()&os.ModeSocket != 0 {
		if err := os.Remove(e.Path); err != nil {
			return err
		}
	}

	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: e.Path, Net: "unixgram"})
	if err != nil {
		return err
	}
	if err := os.Chmod(e.Path, 0o666); err != nil {
		conn.Close()
		os.Remove(e.Path)
		return err
	}

	e.conn = conn
	return nil
}

// Serve reads datagrams one by one and passes each to dispatch, with
// the raw bytes exactly as received. It returns nil on a clean end of
// the instance: idle timeout, use limit or Close.
func (e *Endpoint) Serve(dispatch func(rec []byte)) error {
	buf := make([]byte, MaxRecordSize)
	served := 0

	for {
		if e.IdleTimeout > 0 {
			if err := e.conn.SetReadDeadline(time.Now().Add(e.IdleTimeout)); err != nil {
				// Close may land between iterations.
				if errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
		}

		n, _, err := e.conn.ReadFromUnix(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				e.Log.Debugln("idle timeout reached, exiting")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if e.Watchdog != nil {
			e.Watchdog.Arm()
		}
		dispatch(buf[:n])
		if e.Watchdog != nil {
			e.Watchdog.Disarm()
		}

		served++
		if e.UseLimit > 0 && served >= e.UseLimit {
			e.Log.Debugln("use limit reached, exiting")
			return nil
		}
	}
}

// Close shuts the socket down and removes the socket file. A Serve call
// in progress returns nil.
func (e *Endpoint) Close() error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	if rmErr := os.Remove(e.Path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
