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

// Package openmetrics exposes the relay counters for scraping.
package openmetrics

import (
	"errors"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/foxcpp/maillogd/framework/log"
)

const modName = "openmetrics"

type Endpoint struct {
	addr   string
	logger log.Logger

	serv http.Server
}

func New(addr string) *Endpoint {
	e := &Endpoint{
		addr:   addr,
		logger: log.Logger{Name: modName, Debug: log.DefaultLogger.Debug},
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	e.serv.Handler = mux

	return e
}

// Serve listens on the configured TCP address and blocks until Close.
func (e *Endpoint) Serve() error {
	l, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}

	e.logger.Println("listening on", e.addr)
	if err := e.serv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (e *Endpoint) Close() error {
	return e.serv.Close()
}
