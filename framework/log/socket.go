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

package log

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// SocketOut sends each message as one datagram to the mail log socket,
// formatted the way ordinary mail-system clients format their records:
//
//	Jun  1 15:04:05 host tag[pid]: message
//
// maillogd uses it for its own diagnostics during startup, when the
// dedicated log file (if any) is not open yet. This makes early
// failures visible through whatever currently serves the socket.
//
// Once the daemon starts serving the socket itself, routing its own
// messages through it would mean the daemon feeds its own inbound
// channel. RedirectToSink breaks that cycle.
type SocketOut struct {
	path     string
	tag      string
	hostname string

	// Guards conn and direct. This output ends up as DefaultLogger.Out
	// and is written to from the serve loop, the metrics listener and
	// the signal handler at once.
	lck  sync.Mutex
	conn net.Conn

	// Non-nil after RedirectToSink. All writes go here, never to the
	// socket.
	direct Output
}

// SocketOutput returns a SocketOut sending messages to the unixgram
// socket at path, tagged with tag.
//
// The connection is established lazily on first write: during the very
// first daemon startup the socket may not exist until the daemon itself
// binds it. Messages that cannot be delivered are written to stderr
// instead of being dropped.
func SocketOutput(path, tag string) *SocketOut {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	return &SocketOut{path: path, tag: tag, hostname: hostname}
}

// FormatRecord renders msg as a mail-system log record, the same shape
// ordinary clients produce before sending it to the log socket.
func FormatRecord(stamp time.Time, hostname, tag string, pid int, msg string) string {
	return fmt.Sprintf("%s %s %s[%d]: %s",
		stamp.Format(time.Stamp), hostname, tag, pid, msg)
}

func (s *SocketOut) Write(stamp time.Time, debug bool, msg string) {
	s.lck.Lock()
	defer s.lck.Unlock()

	if s.direct != nil {
		s.direct.Write(stamp, debug, msg)
		return
	}

	record := FormatRecord(stamp, s.hostname, s.tag, os.Getpid(), msg)

	if s.conn == nil {
		conn, err := net.Dial("unixgram", s.path)
		if err != nil {
			fmt.Fprintln(os.Stderr, record)
			return
		}
		s.conn = conn
	}

	if _, err := s.conn.Write([]byte(record)); err != nil {
		// The connection may point at a stale socket replaced since the
		// dial. Drop it so the next write dials the current one.
		s.conn.Close()
		s.conn = nil
		fmt.Fprintln(os.Stderr, record)
	}
}

// RedirectToSink registers direct as the destination for all subsequent
// messages, bypassing the socket entirely. The lifecycle code calls it
// exactly once, right after the dedicated log file is opened. After it
// returns, no self-originated bytes are sent through the socket.
//
// The first registration wins, later calls are no-ops.
func (s *SocketOut) RedirectToSink(direct Output) {
	s.lck.Lock()
	defer s.lck.Unlock()

	if s.direct != nil {
		return
	}
	s.direct = direct

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *SocketOut) Close() error {
	s.lck.Lock()
	defer s.lck.Unlock()

	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	if s.direct != nil {
		return s.direct.Close()
	}
	return nil
}
