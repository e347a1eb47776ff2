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

// Package maillogd ties the pieces of the log relay daemon together.
//
// One process instance is short-lived by design: it captures its
// configuration once at startup, serves the mail log socket until the
// idle timeout (or a signal, or the watchdog) ends it, and the
// supervisor spawns a fresh instance with a fresh configuration
// snapshot when new records arrive. Configuration changes therefore
// take effect on the next instance, never mid-instance.
package maillogd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/foxcpp/maillogd/framework/config"
	"github.com/foxcpp/maillogd/framework/hooks"
	"github.com/foxcpp/maillogd/framework/log"
	"github.com/foxcpp/maillogd/internal/endpoint/dgram"
	"github.com/foxcpp/maillogd/internal/endpoint/openmetrics"
	"github.com/foxcpp/maillogd/internal/logwriter"
	"github.com/foxcpp/maillogd/internal/privdrop"
	"github.com/foxcpp/maillogd/internal/relay"
	"github.com/foxcpp/maillogd/internal/watchdog"
)

// Config is the immutable per-instance configuration snapshot. It is
// captured once in ReadConfig and never refreshed in place.
type Config struct {
	// Path of the dedicated mail log file. Empty means no dedicated
	// file: every record is forwarded to syslog for the whole life of
	// this instance.
	LogFile string

	// Filesystem path of the unixgram socket records arrive on.
	SocketPath string

	// Hard bound on processing one record.
	WatchdogTimeout time.Duration

	// Time without traffic after which the instance exits cleanly.
	IdleTimeout time.Duration

	// Credentials to drop to after the privileged setup. Empty means
	// no privilege drop (useful for development).
	User  string
	Group string

	// Directory to chroot into during the privilege drop, empty
	// disables the chroot.
	Chroot string

	// TCP address for the metrics endpoint, empty disables it.
	MetricsAddr string

	Debug bool
}

// ReadConfig loads the configuration snapshot from path. A missing
// file is not an error: the daemon then runs with defaults, meaning
// pure fallback mode.
func ReadConfig(path string) (*Config, error) {
	cfg := &Config{}

	blk, err := config.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		blk = config.Node{}
	}

	m := config.NewMap(blk)
	m.String("log_file", false, "", &cfg.LogFile)
	m.String("listen", false, DefaultSocketPath, &cfg.SocketPath)
	m.Duration("watchdog_timeout", false, 10*time.Second, &cfg.WatchdogTimeout)
	m.Duration("idle_timeout", false, 100*time.Second, &cfg.IdleTimeout)
	m.String("user", false, "", &cfg.User)
	m.String("group", false, "", &cfg.Group)
	m.String("chroot", false, "", &cfg.Chroot)
	m.String("openmetrics", false, "", &cfg.MetricsAddr)
	m.Bool("debug", false, &cfg.Debug)
	if _, err := m.Process(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Run is the entry point for the 'run' subcommand. It walks the
// startup sequence in its required order: privileged setup, privilege
// drop, post-drop setup, serve.
func Run(c *cli.Context) error {
	// This daemon takes no positional arguments, an unexpected one is
	// a startup validation error.
	if c.NArg() != 0 {
		return cli.Exit(fmt.Sprintf("unexpected command-line argument: %s", c.Args().First()), 2)
	}

	cfg, err := ReadConfig(c.String("config"))
	if err != nil {
		systemdStatusErr(err)
		return cli.Exit(err.Error(), 2)
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}

	// Until a dedicated log file is opened, the daemon's own
	// diagnostics travel through the log socket like any other mail
	// process's records, so early failures stay visible.
	socketOut := log.SocketOutput(cfg.SocketPath, "maillogd")
	logOut, err := logOutputOption(socketOut, c.StringSlice("log"))
	if err != nil {
		systemdStatusErr(err)
		return cli.Exit(err.Error(), 2)
	}
	log.DefaultLogger = log.Logger{Out: logOut, Debug: cfg.Debug}
	logger := log.DefaultLogger

	// --- Privileged setup ---------------------------------------------

	fallback, err := relay.NewSyslogFallback("maillogd")
	if err != nil {
		systemdStatusErr(err)
		logger.Error("failed to connect to the syslog daemon", err)
		return cli.Exit("startup failed", 2)
	}
	rly := relay.New(fallback)

	if cfg.LogFile != "" {
		sink, err := logwriter.Open(cfg.LogFile)
		if err != nil {
			// Startup-fatal: the instance cannot honor the configured
			// log file, there is no partial-service mode.
			systemdStatusErr(err)
			logger.Error("failed to open the mail log file", err)
			return cli.Exit("startup failed", 2)
		}
		rly.SetSink(sink)

		hooks.AddHook(hooks.EventLogRotate, func() {
			if err := sink.Reopen(); err != nil {
				logger.Error("log file reopen failed", err)
				return
			}
			logger.Debugln("log file reopened")
		})
		hooks.AddHook(hooks.EventShutdown, func() {
			if err := sink.Close(); err != nil {
				logger.Error("log file close failed", err)
			}
		})

		// From now on the daemon is its own client: diagnostics go
		// through the relay write path directly and never through the
		// socket this process is about to serve. Keeping them on the
		// socket would feed the daemon's own inbound channel.
		socketOut.RedirectToSink(selfDiagOutput(rly))
	}

	endp := &dgram.Endpoint{
		Path:        cfg.SocketPath,
		IdleTimeout: cfg.IdleTimeout,
		Log:         log.Logger{Name: "dgram", Debug: cfg.Debug},
	}
	if err := endp.Bind(); err != nil {
		systemdStatusErr(err)
		logger.Error("failed to bind the log socket", err, "path", cfg.SocketPath)
		return cli.Exit("startup failed", 2)
	}

	// --- Privilege drop -----------------------------------------------

	if err := privdrop.Drop(cfg.User, cfg.Group, cfg.Chroot); err != nil {
		systemdStatusErr(err)
		logger.Error("privilege drop failed", err)
		endp.Close()
		return cli.Exit("startup failed", 2)
	}

	// --- Post-drop setup ----------------------------------------------

	// The instance must stay available across any number of client
	// requests. Only the idle bound or the watchdog may end it.
	endp.UseLimit = 0
	endp.Watchdog = watchdog.New(cfg.WatchdogTimeout, watchdogExpired)

	logger.Debugln("instance ready", "log_file:", cfg.LogFile)
	systemdStatus(SDReady, "")

	// --- Serve --------------------------------------------------------

	var om *openmetrics.Endpoint
	if cfg.MetricsAddr != "" {
		om = openmetrics.New(cfg.MetricsAddr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g := new(errgroup.Group)

	g.Go(func() error {
		defer cancel()
		return endp.Serve(func(rec []byte) {
			// A failed file write is reported through the sink's own
			// error path and counted, the record is lost. No retry, no
			// escalation to syslog for that record.
			_ = rly.Dispatch(rec)
		})
	})
	if om != nil {
		g.Go(func() error {
			defer cancel()
			return om.Serve()
		})
	}
	g.Go(func() error {
		handleSignals(ctx)
		_ = endp.Close()
		if om != nil {
			_ = om.Close()
		}
		return nil
	})

	err = g.Wait()

	systemdStatus(SDStopping, "")
	hooks.RunHooks(hooks.EventShutdown)

	if err != nil {
		logger.Error("unclean shutdown", err)
		return cli.Exit("unclean shutdown", 2)
	}
	return nil
}

// selfDiagOutput renders the daemon's own diagnostics as ordinary
// client records and hands them to the relay write path.
func selfDiagOutput(rly *relay.Relay) log.Output {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	pid := os.Getpid()

	return log.FuncOutput(func(stamp time.Time, _ bool, msg string) {
		rec := log.FormatRecord(stamp, hostname, "maillogd", pid, msg)
		_ = rly.Dispatch(append([]byte(rec), '\n'))
	}, func() error { return nil })
}

// watchdogExpired handles the hard per-request bound firing. A request
// stuck for that long means a wedged sink or worse, nothing recoverable
// locally, so the process is ended on the spot and the supervisor takes
// it from there.
func watchdogExpired() {
	// The sink may be the very thing that is stuck, report straight to
	// stderr instead of logging through it.
	fmt.Fprintln(os.Stderr, "maillogd: watchdog timeout, terminating")
	os.Exit(0)
}

// logOutputOption implements the -log flag: a list of 'socket',
// 'stderr', 'syslog' and 'off' targets for the daemon's own
// diagnostics. The default is 'socket', see SocketOut for why.
func logOutputOption(socketOut *log.SocketOut, targets []string) (log.Output, error) {
	outs := make([]log.Output, 0, len(targets))
	for _, t := range targets {
		switch t {
		case "socket":
			outs = append(outs, socketOut)
		case "stderr":
			outs = append(outs, log.WriterOutput(os.Stderr, true))
		case "syslog":
			sysOut, err := log.SyslogOutput()
			if err != nil {
				return nil, fmt.Errorf("failed to connect to syslog daemon: %v", err)
			}
			outs = append(outs, sysOut)
		case "off":
			if len(targets) != 1 {
				return nil, fmt.Errorf("'off' can't be combined with other log targets")
			}
			return log.NopOutput{}, nil
		default:
			return nil, fmt.Errorf("unknown log target: %v", t)
		}
	}

	if len(outs) == 1 {
		return outs[0], nil
	}
	return log.MultiOutput(outs...), nil
}
