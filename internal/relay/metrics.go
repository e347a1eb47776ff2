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

import "github.com/prometheus/client_golang/prometheus"

var relayedRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "maillogd",
		Subsystem: "relay",
		Name:      "relayed_records",
		Help:      "Amount of log records relayed, by destination and result",
	},
	[]string{"destination", "result"},
)

func init() {
	prometheus.MustRegister(relayedRecords)
}
