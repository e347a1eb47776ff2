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

// Package config provides the utilities for configuration parsing.
//
// The configuration file is a sequence of directives, one per line:
//
//	name arg0 arg1 {
//	  child0
//	  child1
//	}
//
// The block is optional and the opening brace must be placed on the
// directive's line. '#' starts a comment running to the end of the
// line. Arguments containing whitespace are quoted with '"'.
package config

import (
	"fmt"
	"io"
	"os"
)

// Node is one parsed configuration directive.
type Node struct {
	// First string at node's line.
	Name string
	// Any strings placed after the node name.
	Args []string

	// If node is a block - all nodes inside the block. Can be nil.
	Children []Node

	File string
	Line int
}

// NodeErr formats an error with the node's location prepended.
func NodeErr(node Node, f string, args ...interface{}) error {
	if node.File == "" {
		return fmt.Errorf(f, args...)
	}
	return fmt.Errorf("%s:%d: %s", node.File, node.Line, fmt.Sprintf(f, args...))
}

const maxNesting = 255

type treeParser struct {
	tokens []token
	pos    int
	file   string
}

func (p *treeParser) readNodes(nesting int) ([]Node, error) {
	if nesting > maxNesting {
		return nil, fmt.Errorf("%s: nesting limit reached", p.file)
	}

	nodes := []Node{}
	for p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]

		switch tok.Text {
		case "}":
			if nesting == 0 {
				return nil, fmt.Errorf("%s:%d: unexpected }", p.file, tok.Line)
			}
			p.pos++
			return nodes, nil
		case "{":
			return nil, fmt.Errorf("%s:%d: unexpected {", p.file, tok.Line)
		}

		node := Node{Name: tok.Text, File: p.file, Line: tok.Line}
		p.pos++

		// Arguments continue on the directive's line.
		for p.pos < len(p.tokens) {
			argTok := p.tokens[p.pos]
			if argTok.Line != tok.Line || argTok.Text == "{" || argTok.Text == "}" {
				break
			}
			node.Args = append(node.Args, argTok.Text)
			p.pos++
		}

		if p.pos < len(p.tokens) && p.tokens[p.pos].Text == "{" && p.tokens[p.pos].Line == tok.Line {
			p.pos++
			children, err := p.readNodes(nesting + 1)
			if err != nil {
				return nil, err
			}
			node.Children = children
		}

		nodes = append(nodes, node)
	}

	if nesting != 0 {
		return nil, fmt.Errorf("%s: unexpected end of file, missing }", p.file)
	}
	return nodes, nil
}

// Read parses the configuration from r. location is used only in error
// messages.
func Read(r io.Reader, location string) ([]Node, error) {
	tokens, err := allTokens(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}

	p := treeParser{tokens: tokens, file: location}
	return p.readNodes(0)
}

// ReadFile parses the configuration file at path and returns the
// top-level directives wrapped into a nameless block node for use with
// Map.
func ReadFile(path string) (Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return Node{}, err
	}
	defer f.Close()

	nodes, err := Read(f, path)
	if err != nil {
		return Node{}, err
	}
	return Node{Children: nodes, File: path, Line: 1}, nil
}
