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

// Package watchdog implements the hard per-request time bound.
//
// A request that does not complete within the bound is not a
// recoverable error: a hung write to the log file means something is
// systemically wrong (a wedged filesystem, for example) and a local
// retry cannot fix it. The expiry callback is expected to terminate the
// process.
package watchdog

import (
	"time"
)

// Watchdog bounds the wall-clock time of one unit of request
// processing.
//
// Arm and Disarm are meant to be called around each unit from a single
// worker goroutine. The expiry callback runs on a separate timer
// goroutine.
type Watchdog struct {
	timeout time.Duration
	expired func()

	timer *time.Timer
}

// New returns a Watchdog firing expired() when an armed period exceeds
// timeout.
func New(timeout time.Duration, expired func()) *Watchdog {
	return &Watchdog{timeout: timeout, expired: expired}
}

// Arm starts (or restarts) the countdown for one unit of processing.
func (w *Watchdog) Arm() {
	if w.timer == nil {
		w.timer = time.AfterFunc(w.timeout, w.expired)
		return
	}
	w.timer.Reset(w.timeout)
}

// Disarm stops the countdown. The unit of processing completed in time.
func (w *Watchdog) Disarm() {
	if w.timer != nil {
		w.timer.Stop()
	}
}
