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

package exterrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestFields_OuterOverridesInner(t *testing.T) {
	inner := WithFields(errors.New("base"), map[string]interface{}{
		"path": "/inner",
		"op":   "open",
	})
	outer := WithFields(fmt.Errorf("wrapped: %w", inner), map[string]interface{}{
		"path": "/outer",
	})

	fields := Fields(outer)
	if fields["path"] != "/outer" {
		t.Errorf("Expected outer path to win, got %v", fields["path"])
	}
	if fields["op"] != "open" {
		t.Errorf("Inner field lost, got %v", fields["op"])
	}
}

func TestWithFields_ErrorsIsTransparent(t *testing.T) {
	base := errors.New("base")
	wrapped := WithFields(base, map[string]interface{}{"k": "v"})

	if !errors.Is(wrapped, base) {
		t.Error("errors.Is does not see through WithFields")
	}
}

func TestFields_PlainError(t *testing.T) {
	if fields := Fields(errors.New("plain")); len(fields) != 0 {
		t.Errorf("Unexpected fields for plain error: %v", fields)
	}
}
