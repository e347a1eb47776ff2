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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxcpp/maillogd/framework/log"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maillogd.conf")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfig(t *testing.T) {
	path := writeConfig(t, `
log_file /var/log/mail.log
listen /run/maillogd/log.sock
watchdog_timeout 30s
idle_timeout 2m
user maillog
group maillog
chroot /var/spool/maillogd
openmetrics 127.0.0.1:9749
debug
`)

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	if cfg.LogFile != "/var/log/mail.log" {
		t.Errorf("wrong LogFile: %v", cfg.LogFile)
	}
	if cfg.SocketPath != "/run/maillogd/log.sock" {
		t.Errorf("wrong SocketPath: %v", cfg.SocketPath)
	}
	if cfg.WatchdogTimeout != 30*time.Second {
		t.Errorf("wrong WatchdogTimeout: %v", cfg.WatchdogTimeout)
	}
	if cfg.IdleTimeout != 2*time.Minute {
		t.Errorf("wrong IdleTimeout: %v", cfg.IdleTimeout)
	}
	if cfg.User != "maillog" || cfg.Group != "maillog" {
		t.Errorf("wrong credentials: %v/%v", cfg.User, cfg.Group)
	}
	if cfg.Chroot != "/var/spool/maillogd" {
		t.Errorf("wrong Chroot: %v", cfg.Chroot)
	}
	if cfg.MetricsAddr != "127.0.0.1:9749" {
		t.Errorf("wrong MetricsAddr: %v", cfg.MetricsAddr)
	}
	if !cfg.Debug {
		t.Error("debug directive not picked up")
	}
}

func TestReadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := ReadConfig(path)
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}

	if cfg.LogFile != "" {
		t.Errorf("LogFile should default to empty, got %v", cfg.LogFile)
	}
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("wrong default SocketPath: %v", cfg.SocketPath)
	}
	if cfg.WatchdogTimeout != 10*time.Second {
		t.Errorf("wrong default WatchdogTimeout: %v", cfg.WatchdogTimeout)
	}
	if cfg.IdleTimeout != 100*time.Second {
		t.Errorf("wrong default IdleTimeout: %v", cfg.IdleTimeout)
	}
	if cfg.Debug {
		t.Error("Debug should default to false")
	}
}

func TestReadConfig_Missing(t *testing.T) {
	cfg, err := ReadConfig(filepath.Join(t.TempDir(), "nonexistent.conf"))
	if err != nil {
		t.Fatalf("missing config file should not be an error: %v", err)
	}
	if cfg.SocketPath != DefaultSocketPath {
		t.Errorf("wrong default SocketPath: %v", cfg.SocketPath)
	}
}

func TestReadConfig_UnknownDirective(t *testing.T) {
	path := writeConfig(t, "log_fiel /var/log/mail.log\n")

	if _, err := ReadConfig(path); err == nil {
		t.Error("expected an error for the unknown directive")
	}
}

func TestLogOutputOption(t *testing.T) {
	socketOut := log.SocketOutput(filepath.Join(t.TempDir(), "log.sock"), "maillogd")
	defer socketOut.Close()

	out, err := logOutputOption(socketOut, []string{"socket"})
	if err != nil {
		t.Fatalf("logOutputOption: %v", err)
	}
	if out != socketOut {
		t.Error("'socket' should select the socket output as-is")
	}

	if _, err := logOutputOption(socketOut, []string{"bananas"}); err == nil {
		t.Error("expected an error for an unknown target")
	}
	if _, err := logOutputOption(socketOut, []string{"off", "stderr"}); err == nil {
		t.Error("expected an error for 'off' combined with another target")
	}

	out, err = logOutputOption(socketOut, []string{"off"})
	if err != nil {
		t.Fatalf("logOutputOption: %v", err)
	}
	if _, ok := out.(log.NopOutput); !ok {
		t.Errorf("'off' should select the no-op output, got %T", out)
	}
}

func TestSelfDiagRecordShape(t *testing.T) {
	stamp := time.Date(2023, time.June, 1, 12, 0, 0, 0, time.UTC)
	rec := log.FormatRecord(stamp, "mx1", "maillogd", 1234, "daemon started")

	if !strings.HasPrefix(rec, "Jun  1 12:00:00 mx1 maillogd[1234]: ") {
		t.Errorf("malformed record prefix: %q", rec)
	}
	if !strings.HasSuffix(rec, "daemon started") {
		t.Errorf("malformed record suffix: %q", rec)
	}
}
