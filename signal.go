//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd linux netbsd openbsd solaris

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

package maillogd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/foxcpp/maillogd/framework/hooks"
	"github.com/foxcpp/maillogd/framework/log"
)

// handleSignals creates and listens on the OS signals channel.
//
// Signals that correspond to program termination (SIGTERM, SIGHUP,
// SIGINT) cause this function to return, as does ctx cancellation
// (used when the server loop ended on its own, e.g. on idle timeout).
//
// SIGUSR1 runs the log rotation hooks without returning.
func handleSignals(ctx context.Context) {
	sig := make(chan os.Signal, 5)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGINT, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case s := <-sig:
			if s == syscall.SIGUSR1 {
				log.Println("SIGUSR1 received, reopening the log file")
				hooks.RunHooks(hooks.EventLogRotate)
				continue
			}

			go func() {
				s := <-sig
				log.Printf("forced shutdown due to signal (%v)!", s)
				os.Exit(1)
			}()

			log.Printf("signal received (%v), next signal will force immediate shutdown.", s)
			return
		case <-ctx.Done():
			return
		}
	}
}
