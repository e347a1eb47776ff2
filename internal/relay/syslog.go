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

package relay

import (
	"log/syslog"
)

type syslogFallback struct {
	w *syslog.Writer
}

// NewSyslogFallback returns a Fallback forwarding records to the system
// syslog daemon with the mail facility and info severity.
//
// Records are passed as-is. Stripping the timestamp a client already
// put into the record would mean dealing with short records, so no
// transformation is attempted.
func NewSyslogFallback(tag string) (Fallback, error) {
	w, err := syslog.New(syslog.LOG_MAIL|syslog.LOG_INFO, tag)
	if err != nil {
		return nil, err
	}
	return syslogFallback{w}, nil
}

func (s syslogFallback) Emit(rec []byte) {
	// Fire-and-forget, there is nowhere to report a syslog failure to.
	_ = s.w.Info(string(rec))
}
