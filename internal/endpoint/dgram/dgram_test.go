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

package dgram

import (
	"net"
	"path/filepath"
	"testing"
	"time"
)

func boundEndpoint(t *testing.T, e *Endpoint) {
	t.Helper()
	e.Path = filepath.Join(t.TempDir(), "log.sock")
	if err := e.Bind(); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	t.Cleanup(func() { e.Close() })
}

func sendRecord(t *testing.T, path string, rec []byte) {
	t.Helper()
	conn, err := net.Dial("unixgram", path)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func TestServe_DispatchesVerbatim(t *testing.T) {
	e := &Endpoint{UseLimit: 2}
	boundEndpoint(t, e)

	records := make(chan []byte, 2)
	done := make(chan error, 1)
	go func() {
		done <- e.Serve(func(rec []byte) {
			cpy := make([]byte, len(rec))
			copy(cpy, rec)
			records <- cpy
		})
	}()

	sendRecord(t, e.Path, []byte("Jun 1 evt: test"))
	sendRecord(t, e.Path, []byte("second record\n"))

	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	close(records)

	first := <-records
	if string(first) != "Jun 1 evt: test" || len(first) != 15 {
		t.Errorf("First record not dispatched verbatim: %q", first)
	}
	if second := <-records; string(second) != "second record\n" {
		t.Errorf("Second record not dispatched verbatim: %q", second)
	}
}

func TestServe_IdleTimeoutIsCleanExit(t *testing.T) {
	e := &Endpoint{IdleTimeout: 50 * time.Millisecond}
	boundEndpoint(t, e)

	done := make(chan error, 1)
	go func() {
		done <- e.Serve(func([]byte) {})
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Idle timeout returned an error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return on idle timeout")
	}
}

func TestServe_CloseIsCleanExit(t *testing.T) {
	e := &Endpoint{}
	boundEndpoint(t, e)

	done := make(chan error, 1)
	go func() {
		done <- e.Serve(func([]byte) {})
	}()

	time.Sleep(20 * time.Millisecond)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned an error on Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return on Close")
	}
}

func TestServe_CloseBetweenIterationsIsCleanExit(t *testing.T) {
	// Serve entered after Close hits the deadline call on a closed
	// conn, which must still be a clean end of the instance.
	e := &Endpoint{IdleTimeout: 50 * time.Millisecond}
	boundEndpoint(t, e)

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := e.Serve(func([]byte) {}); err != nil {
		t.Fatalf("Serve returned an error on a closed endpoint: %v", err)
	}
}

func TestServe_Sequential(t *testing.T) {
	e := &Endpoint{UseLimit: 3}
	boundEndpoint(t, e)

	inDispatch := false
	done := make(chan error, 1)
	go func() {
		done <- e.Serve(func([]byte) {
			if inDispatch {
				t.Error("Dispatch reentered")
			}
			inDispatch = true
			time.Sleep(10 * time.Millisecond)
			inDispatch = false
		})
	}()

	for i := 0; i < 3; i++ {
		sendRecord(t, e.Path, []byte("record"))
	}

	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestBind_ReplacesStaleSocket(t *testing.T) {
	e := &Endpoint{}
	boundEndpoint(t, e)
	e.conn.Close()

	e2 := &Endpoint{Path: e.Path}
	if err := e2.Bind(); err != nil {
		t.Fatalf("Bind over stale socket: %v", err)
	}
	e2.Close()
}
