// Copyright (c) 2024 The gosh Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package redir_test

import (
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/gosh-shell/gosh/internal/redir"
	"github.com/gosh-shell/gosh/internal/token"
)

func Test(t *testing.T) { TestingT(t) }

type S struct {
	dir string
}

var _ = Suite(&S{})

func (s *S) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func words(ss ...string) []token.Token {
	out := make([]token.Token, len(ss))
	for i, w := range ss {
		out[i] = token.Token{Kind: token.Word, Text: w}
	}
	return out
}

func (s *S) TestNoRedirection(c *C) {
	toks := words("echo", "hi")
	var fds redir.FDs
	out, err := redir.Resolve(toks, &fds)
	c.Assert(err, IsNil)
	c.Check(out, DeepEquals, toks)
	c.Check(fds.Stdin, IsNil)
	c.Check(fds.Stdout, IsNil)
}

func (s *S) TestInputRedirection(c *C) {
	path := filepath.Join(s.dir, "in.txt")
	c.Assert(os.WriteFile(path, []byte("hello\n"), 0644), IsNil)

	toks := append(words("cat"), token.Token{Kind: token.Less}, token.Token{Kind: token.Word, Text: path})
	var fds redir.FDs
	out, err := redir.Resolve(toks, &fds)
	c.Assert(err, IsNil)
	c.Check(out, DeepEquals, words("cat"))
	c.Assert(fds.Stdin, NotNil)
	defer fds.Stdin.Close()

	data := make([]byte, 16)
	n, _ := fds.Stdin.Read(data)
	c.Check(string(data[:n]), Equals, "hello\n")
}

func (s *S) TestOutputRedirectionCreatesFile(c *C) {
	path := filepath.Join(s.dir, "out.txt")
	toks := append(words("ls"), token.Token{Kind: token.Great}, token.Token{Kind: token.Word, Text: path})
	var fds redir.FDs
	out, err := redir.Resolve(toks, &fds)
	c.Assert(err, IsNil)
	c.Check(out, DeepEquals, words("ls"))
	c.Assert(fds.Stdout, NotNil)
	fds.Stdout.Close()

	info, err := os.Stat(path)
	c.Assert(err, IsNil)
	c.Check(info.Mode().Perm(), Equals, redir.FileMode)
}

func (s *S) TestRepeatedRedirectionClosesPrevious(c *C) {
	first := filepath.Join(s.dir, "first.txt")
	second := filepath.Join(s.dir, "second.txt")

	toks := []token.Token{
		{Kind: token.Word, Text: "cmd"},
		{Kind: token.Great}, {Kind: token.Word, Text: first},
		{Kind: token.Great}, {Kind: token.Word, Text: second},
	}
	var fds redir.FDs
	_, err := redir.Resolve(toks, &fds)
	c.Assert(err, IsNil)
	defer fds.Stdout.Close()

	_, err = fds.Stdout.WriteString("x")
	c.Assert(err, IsNil)

	data, err := os.ReadFile(second)
	c.Assert(err, IsNil)
	c.Check(string(data), Equals, "x")
}

func (s *S) TestMissingInputFileIsError(c *C) {
	toks := append(words("cat"), token.Token{Kind: token.Less}, token.Token{Kind: token.Word, Text: filepath.Join(s.dir, "nope")})
	var fds redir.FDs
	_, err := redir.Resolve(toks, &fds)
	c.Assert(err, NotNil)
	var rerr *redir.Error
	c.Assert(err, FitsTypeOf, rerr)
}

func (s *S) TestPreSeededPipeEndIsOverridden(c *C) {
	r, w, err := os.Pipe()
	c.Assert(err, IsNil)
	defer r.Close()
	w.Close()

	path := filepath.Join(s.dir, "override.txt")
	toks := append(words("cmd"), token.Token{Kind: token.Great}, token.Token{Kind: token.Word, Text: path})
	fds := redir.FDs{Stdout: w}
	_, err = redir.Resolve(toks, &fds)
	c.Assert(err, IsNil)
	defer fds.Stdout.Close()
	c.Check(fds.Stdout.Name(), Equals, path)
}
