//go:build !windows && !plan9
// +build !windows,!plan9

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
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func listenLogSocket(t *testing.T) (string, *net.UnixConn) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("Failed to bind log socket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return path, conn
}

func readDatagram(t *testing.T, conn *net.UnixConn, timeout time.Duration) (string, bool) {
	t.Helper()
	buf := make([]byte, 4096)
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	n, _, err := conn.ReadFromUnix(buf)
	if err != nil {
		return "", false
	}
	return string(buf[:n]), true
}

func TestSocketOutput_ClientStyleRecord(t *testing.T) {
	path, conn := listenLogSocket(t)

	out := SocketOutput(path, "maillogd")
	defer out.Close()

	stamp := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)
	out.Write(stamp, false, "daemon started")

	rec, ok := readDatagram(t, conn, time.Second)
	if !ok {
		t.Fatal("No datagram received")
	}
	if !strings.HasPrefix(rec, "Jun  1 12:00:00 ") {
		t.Errorf("Record does not start with a client-style timestamp: %q", rec)
	}
	if !strings.HasSuffix(rec, "]: daemon started") {
		t.Errorf("Record does not carry tag[pid] and message: %q", rec)
	}
}

func TestSocketOutput_RedirectToSink(t *testing.T) {
	path, conn := listenLogSocket(t)

	out := SocketOutput(path, "maillogd")
	defer out.Close()

	// Establish the lazy connection first so the redirect has
	// something to tear down.
	out.Write(time.Now(), false, "early diagnostic")
	if _, ok := readDatagram(t, conn, time.Second); !ok {
		t.Fatal("Early diagnostic did not reach the socket")
	}

	direct := []string{}
	out.RedirectToSink(FuncOutput(func(_ time.Time, _ bool, msg string) {
		direct = append(direct, msg)
	}, func() error { return nil }))

	out.Write(time.Now(), false, "redirected diagnostic")

	if len(direct) != 1 || direct[0] != "redirected diagnostic" {
		t.Errorf("Redirected message not seen by direct output: %v", direct)
	}
	if rec, ok := readDatagram(t, conn, 100*time.Millisecond); ok {
		t.Errorf("Self-originated bytes on the socket after redirect: %q", rec)
	}
}

func TestSocketOutput_RedirectIsOneShot(t *testing.T) {
	path, _ := listenLogSocket(t)

	out := SocketOutput(path, "maillogd")
	defer out.Close()

	first := []string{}
	out.RedirectToSink(FuncOutput(func(_ time.Time, _ bool, msg string) {
		first = append(first, msg)
	}, func() error { return nil }))
	out.RedirectToSink(NopOutput{})

	out.Write(time.Now(), false, "still here")

	if len(first) != 1 {
		t.Errorf("First registration not retained after second call: %v", first)
	}
}

func TestSocketOutput_ConcurrentWrites(t *testing.T) {
	// This output serves as DefaultLogger.Out while the serve loop,
	// the metrics listener and the signal handler all log through it.
	path, conn := listenLogSocket(t)

	out := SocketOutput(path, "maillogd")
	defer out.Close()

	const writers = 4
	const perWriter = 8

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			for j := 0; j < perWriter; j++ {
				out.Write(time.Now(), false, fmt.Sprintf("writer %d message %d", i, j))
			}
		}(i)
	}
	close(start)
	wg.Wait()

	received := 0
	for {
		if _, ok := readDatagram(t, conn, 100*time.Millisecond); !ok {
			break
		}
		received++
	}
	if received != writers*perWriter {
		t.Errorf("Expected %d datagrams, got %d", writers*perWriter, received)
	}
}

func TestSocketOutput_RedialsAfterSocketReplaced(t *testing.T) {
	path, conn := listenLogSocket(t)

	out := SocketOutput(path, "maillogd")
	defer out.Close()

	out.Write(time.Now(), false, "first instance")
	if _, ok := readDatagram(t, conn, time.Second); !ok {
		t.Fatal("Record did not reach the first socket")
	}

	// A new instance replaces the socket file, as Bind does over a
	// stale one.
	conn.Close()
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	fresh, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("Failed to rebind log socket: %v", err)
	}
	defer fresh.Close()

	// This write still targets the replaced socket and goes to stderr.
	out.Write(time.Now(), false, "lost to the stale socket")

	out.Write(time.Now(), false, "second instance")
	rec, ok := readDatagram(t, fresh, time.Second)
	if !ok {
		t.Fatal("Output did not redial the replaced socket")
	}
	if !strings.HasSuffix(rec, "]: second instance") {
		t.Errorf("Unexpected record on the fresh socket: %q", rec)
	}
}

func TestSocketOutput_NoSocketFallsBackToStderr(t *testing.T) {
	// Socket path does not exist, Write must not panic or block.
	out := SocketOutput(filepath.Join(t.TempDir(), "missing.sock"), "maillogd")
	defer out.Close()
	out.Write(time.Now(), false, "nowhere to go")
}
