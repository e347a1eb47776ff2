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

var (
	defaultConfigDirectory = "/etc/maillogd"

	// DefaultSocketPath is where mail processes expect the log socket
	// to be unless 'listen' says otherwise.
	DefaultSocketPath = "/var/run/maillogd/log.sock"
)

func ConfigDirectory() string {
	return defaultConfigDirectory
}
