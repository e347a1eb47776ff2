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

package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestRead_Flat(t *testing.T) {
	nodes, err := Read(strings.NewReader(`
# comment
log_file /var/log/mail.log
watchdog_timeout 10s
debug
`), "test")
	if err != nil {
		t.Fatalf("Unexpected failure: %v", err)
	}

	want := []Node{
		{Name: "log_file", Args: []string{"/var/log/mail.log"}, File: "test", Line: 3},
		{Name: "watchdog_timeout", Args: []string{"10s"}, File: "test", Line: 4},
		{Name: "debug", File: "test", Line: 5},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Errorf("Wrong tree:\n got %+v\nwant %+v", nodes, want)
	}
}

func TestRead_Block(t *testing.T) {
	nodes, err := Read(strings.NewReader(`
openmetrics tcp://127.0.0.1:9749 {
  debug yes
}
`), "test")
	if err != nil {
		t.Fatalf("Unexpected failure: %v", err)
	}

	if len(nodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(nodes))
	}
	node := nodes[0]
	if node.Name != "openmetrics" || len(node.Args) != 1 {
		t.Errorf("Wrong node: %+v", node)
	}
	if len(node.Children) != 1 || node.Children[0].Name != "debug" {
		t.Errorf("Wrong children: %+v", node.Children)
	}
}

func TestRead_QuotedArg(t *testing.T) {
	nodes, err := Read(strings.NewReader(`log_file "/var/log/mail events.log"`), "test")
	if err != nil {
		t.Fatalf("Unexpected failure: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Args[0] != "/var/log/mail events.log" {
		t.Errorf("Wrong parse of quoted argument: %+v", nodes)
	}
}

func TestRead_UnbalancedBraces(t *testing.T) {
	for _, input := range []string{
		"directive {\n",
		"}\n",
	} {
		if _, err := Read(strings.NewReader(input), "test"); err == nil {
			t.Errorf("Expected failure for %q", input)
		}
	}
}

func TestRead_Empty(t *testing.T) {
	nodes, err := Read(strings.NewReader(""), "test")
	if err != nil {
		t.Fatalf("Unexpected failure: %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("Expected no nodes, got %+v", nodes)
	}
}
