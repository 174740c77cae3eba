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

package token_test

import (
	"testing"

	. "gopkg.in/check.v1"

	"github.com/gosh-shell/gosh/internal/token"
)

func Test(t *testing.T) { TestingT(t) }

type S struct{}

var _ = Suite(&S{})

func (s *S) TestWordsAndWhitespace(c *C) {
	got := token.Scan("  ls   -la  ")
	c.Check(got, DeepEquals, []token.Token{
		{Kind: token.Word, Text: "ls"},
		{Kind: token.Word, Text: "-la"},
	})
}

func (s *S) TestOperatorsWithoutSpaces(c *C) {
	got := token.Scan("a|b>out<in&")
	c.Check(got, DeepEquals, []token.Token{
		{Kind: token.Word, Text: "a"},
		{Kind: token.Pipe},
		{Kind: token.Word, Text: "b"},
		{Kind: token.Great},
		{Kind: token.Word, Text: "out"},
		{Kind: token.Less},
		{Kind: token.Word, Text: "in"},
		{Kind: token.Amp},
	})
}

func (s *S) TestPipeline(c *C) {
	got := token.Scan("ls -l | wc -l")
	c.Check(got, DeepEquals, []token.Token{
		{Kind: token.Word, Text: "ls"},
		{Kind: token.Word, Text: "-l"},
		{Kind: token.Pipe},
		{Kind: token.Word, Text: "wc"},
		{Kind: token.Word, Text: "-l"},
	})
}

func (s *S) TestEmptyLine(c *C) {
	c.Check(token.Scan(""), HasLen, 0)
	c.Check(token.Scan("   "), HasLen, 0)
}
