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

package watchdog

import (
	"testing"
	"time"
)

func TestArm_FiresOnExpiry(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := New(20*time.Millisecond, func() { fired <- struct{}{} })

	w.Arm()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Watchdog did not fire")
	}
}

func TestDisarm_PreventsFiring(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := New(20*time.Millisecond, func() { fired <- struct{}{} })

	w.Arm()
	w.Disarm()

	select {
	case <-fired:
		t.Fatal("Watchdog fired after Disarm")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestArm_ReusableAfterDisarm(t *testing.T) {
	fired := make(chan struct{}, 1)
	w := New(20*time.Millisecond, func() { fired <- struct{}{} })

	w.Arm()
	w.Disarm()
	w.Arm()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Watchdog did not fire after re-arm")
	}
}

func TestDisarm_BeforeFirstArm(t *testing.T) {
	w := New(time.Second, func() { t.Error("fired") })
	w.Disarm()
}
