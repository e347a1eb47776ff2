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
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type matcher struct {
	name       string
	required   bool
	defaultVal func() (interface{}, error)
	mapper     func(*Map, Node) (interface{}, error)
	store      *reflect.Value

	customCallback func(*Map, Node) error
}

func (m *matcher) assign(val interface{}) {
	valRefl := reflect.ValueOf(val)
	// Convert untyped nil into typed nil. Otherwise it will panic.
	if !valRefl.IsValid() {
		valRefl = reflect.Zero(m.store.Type())
	}

	m.store.Set(valRefl)
}

// Map implements reflection-based conversion between configuration
// directives and Go variables.
type Map struct {
	allowUnknown bool

	// All values saved by Map during processing.
	Values map[string]interface{}

	entries map[string]matcher

	// Config block used by Process.
	Block Node
}

func NewMap(block Node) *Map {
	return &Map{Block: block}
}

// AllowUnknown makes Map skip unknown configuration directives instead
// of failing.
func (m *Map) AllowUnknown() {
	m.allowUnknown = true
}

// Custom maps a configuration directive to a variable of an arbitrary type.
//
// If the directive is not present in the configuration and required is
// true, Process fails. Otherwise the value returned by defaultVal is
// used. mapper converts the parsed Node into the value to store.
//
// store must be a pointer of the type produced by mapper and defaultVal,
// or nil in which case the value is accessible only via Map.Values.
func (m *Map) Custom(name string, required bool, defaultVal func() (interface{}, error), mapper func(*Map, Node) (interface{}, error), store interface{}) {
	if m.entries == nil {
		m.entries = make(map[string]matcher)
	}
	if _, ok := m.entries[name]; ok {
		panic("Map.Custom: duplicate matcher")
	}

	var storeRefl *reflect.Value
	if store != nil {
		val := reflect.ValueOf(store).Elem()
		storeRefl = &val
	}

	m.entries[name] = matcher{
		name:       name,
		required:   required,
		defaultVal: defaultVal,
		mapper:     mapper,
		store:      storeRefl,
	}
}

// Callback creates a mapping that will call mapper() for each directive
// with the specified name. No further processing is done.
//
// It is intended to permit multiple independent values of a directive
// with implementation-defined handling.
func (m *Map) Callback(name string, mapper func(*Map, Node) error) {
	if m.entries == nil {
		m.entries = make(map[string]matcher)
	}
	if _, ok := m.entries[name]; ok {
		panic("Map.Callback: duplicate matcher")
	}

	m.entries[name] = matcher{
		name:           name,
		customCallback: mapper,
	}
}

// String maps a configuration directive to a string variable.
//
// The directive must be in the form 'name string'.
func (m *Map) String(name string, required bool, defaultVal string, store *string) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if err := expectArgs(node, 1); err != nil {
			return nil, err
		}
		return node.Args[0], nil
	}, store)
}

// StringList maps a configuration directive to a []string variable.
//
// The directive must be in the form 'name string1 string2 ...' with at
// least one argument.
func (m *Map) StringList(name string, required bool, defaultVal []string, store *[]string) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "can't declare a block here")
		}
		if len(node.Args) == 0 {
			return nil, NodeErr(node, "at least one argument is required")
		}
		return node.Args, nil
	}, store)
}

// Int maps a configuration directive to an int variable.
func (m *Map) Int(name string, required bool, defaultVal int, store *int) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if err := expectArgs(node, 1); err != nil {
			return nil, err
		}
		i, err := strconv.Atoi(node.Args[0])
		if err != nil {
			return nil, NodeErr(node, "invalid integer: %s", node.Args[0])
		}
		return i, nil
	}, store)
}

// Duration maps a configuration directive to a time.Duration variable.
//
// The directive must be in the form 'name duration' where duration is
// any non-negative value accepted by time.ParseDuration. Multiple
// arguments are joined without separators, so 'name 1h 2m' is read as
// '1h2m'.
func (m *Map) Duration(name string, required bool, defaultVal time.Duration, store *time.Duration) {
	m.Custom(name, required, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "can't declare a block here")
		}
		if len(node.Args) == 0 {
			return nil, NodeErr(node, "at least one argument is required")
		}

		dur, err := time.ParseDuration(strings.Join(node.Args, ""))
		if err != nil {
			return nil, NodeErr(node, "%v", err)
		}
		if dur < 0 {
			return nil, NodeErr(node, "duration must not be negative")
		}

		return dur, nil
	}, store)
}

// ParseBool parses a human-friendly boolean argument.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true", "on", "yes":
		return true, nil
	case "0", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("bool argument should be 'yes' or 'no'")
}

// Bool maps the presence of a configuration directive to a boolean
// variable. Additionally, 'name yes' and 'name no' are mapped to true
// and false correspondingly.
func (m *Map) Bool(name string, defaultVal bool, store *bool) {
	m.Custom(name, false, func() (interface{}, error) {
		return defaultVal, nil
	}, func(_ *Map, node Node) (interface{}, error) {
		if len(node.Children) != 0 {
			return nil, NodeErr(node, "can't declare a block here")
		}
		if len(node.Args) == 0 {
			return true, nil
		}
		if len(node.Args) != 1 {
			return nil, NodeErr(node, "expected exactly one argument")
		}
		b, err := ParseBool(node.Args[0])
		if err != nil {
			return nil, NodeErr(node, "%v", err)
		}
		return b, nil
	}, store)
}

func expectArgs(node Node, count int) error {
	if len(node.Children) != 0 {
		return NodeErr(node, "can't declare a block here")
	}
	if len(node.Args) != count {
		return NodeErr(node, "expected exactly %d argument(s)", count)
	}
	return nil
}

// Process maps variables from the block passed in NewMap.
//
// Returned unknown slice contains the directives no matcher was
// registered for, it is non-empty only if AllowUnknown was used.
func (m *Map) Process() (unknown []Node, err error) {
	return m.processWith(m.Block)
}

func (m *Map) processWith(block Node) (unknown []Node, err error) {
	unknown = make([]Node, 0, len(block.Children))
	matched := make(map[string]bool)
	m.Values = make(map[string]interface{})

	for _, subnode := range block.Children {
		matcher, ok := m.entries[subnode.Name]
		if !ok {
			if !m.allowUnknown {
				return nil, NodeErr(subnode, "unexpected directive: %s", subnode.Name)
			}
			unknown = append(unknown, subnode)
			continue
		}

		if matcher.customCallback != nil {
			if err := matcher.customCallback(m, subnode); err != nil {
				return nil, err
			}
			matched[subnode.Name] = true
			continue
		}

		if matched[subnode.Name] {
			return nil, NodeErr(subnode, "duplicate directive: %s", subnode.Name)
		}
		matched[subnode.Name] = true

		val, err := matcher.mapper(m, subnode)
		if err != nil {
			return nil, err
		}
		m.Values[matcher.name] = val
		if matcher.store != nil {
			matcher.assign(val)
		}
	}

	for _, matcher := range m.entries {
		if matched[matcher.name] {
			continue
		}
		if matcher.mapper == nil {
			continue
		}

		if matcher.required {
			return nil, NodeErr(block, "missing required directive: %s", matcher.name)
		}
		if matcher.defaultVal == nil {
			continue
		}

		val, err := matcher.defaultVal()
		if err != nil {
			return nil, err
		}

		m.Values[matcher.name] = val
		if matcher.store != nil {
			matcher.assign(val)
		}
	}

	return unknown, nil
}
