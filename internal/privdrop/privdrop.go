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

// Package privdrop implements the privilege drop performed after all
// privileged setup (opening the log file, binding the socket) is done.
// Nothing in the process may assume privileged operations are possible
// once Drop returns.
package privdrop

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/foxcpp/maillogd/framework/exterrors"
)

// Drop chroots the process into chrootDir (if non-empty) and switches
// it to the named user and group. An empty group defaults to the
// user's primary group. Drop with all arguments empty is a no-op.
//
// The account lookups happen before the chroot, the passwd database is
// not expected to exist inside it. The group is changed before the
// user: once the uid is gone so is the right to call setgid.
func Drop(userName, groupName, chrootDir string) error {
	if userName == "" && groupName == "" && chrootDir == "" {
		return nil
	}

	var (
		uid, gid int
		err      error
	)

	if userName != "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return exterrors.WithFields(err, map[string]interface{}{"user": userName})
		}
		uid, err = strconv.Atoi(u.Uid)
		if err != nil {
			return fmt.Errorf("privdrop: non-numeric uid for %s: %w", userName, err)
		}
		if groupName == "" {
			gid, err = strconv.Atoi(u.Gid)
			if err != nil {
				return fmt.Errorf("privdrop: non-numeric gid for %s: %w", userName, err)
			}
		}
	}
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return exterrors.WithFields(err, map[string]interface{}{"group": groupName})
		}
		gid, err = strconv.Atoi(g.Gid)
		if err != nil {
			return fmt.Errorf("privdrop: non-numeric gid for %s: %w", groupName, err)
		}
	}

	if chrootDir != "" {
		if err = unix.Chroot(chrootDir); err != nil {
			return exterrors.WithFields(fmt.Errorf("privdrop: chroot: %w", err),
				map[string]interface{}{"dir": chrootDir})
		}
		if err = unix.Chdir("/"); err != nil {
			return fmt.Errorf("privdrop: chdir: %w", err)
		}
	}

	if userName == "" && groupName == "" {
		return nil
	}

	if err = unix.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("privdrop: setgroups: %w", err)
	}
	if err = unix.Setgid(gid); err != nil {
		return fmt.Errorf("privdrop: setgid %d: %w", gid, err)
	}
	if userName != "" {
		if err = unix.Setuid(uid); err != nil {
			return fmt.Errorf("privdrop: setuid %d: %w", uid, err)
		}
	}

	return nil
}
