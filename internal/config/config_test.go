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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "gopkg.in/check.v1"

	"github.com/gosh-shell/gosh/internal/config"
)

func Test(t *testing.T) { TestingT(t) }

type S struct {
	dir string
}

var _ = Suite(&S{})

func (s *S) SetUpTest(c *C) {
	s.dir = c.MkDir()
}

func (s *S) TestMissingFileYieldsDefaults(c *C) {
	cfg, err := config.Load(filepath.Join(s.dir, "absent.yaml"))
	c.Assert(err, IsNil)
	c.Check(cfg, Equals, config.Default())
}

func (s *S) TestLoadsOverrides(c *C) {
	path := filepath.Join(s.dir, "goshrc.yaml")
	err := os.WriteFile(path, []byte("prompt: \"# \"\ngreeting: hi there\nredirectFileMode: 0600\n"), 0644)
	c.Assert(err, IsNil)

	cfg, err := config.Load(path)
	c.Assert(err, IsNil)
	c.Check(cfg.Prompt, Equals, "# ")
	c.Check(cfg.Greeting, Equals, "hi there")
	c.Check(cfg.RedirectFileMode, Equals, os.FileMode(0600))
}

func (s *S) TestMalformedFileIsFatal(c *C) {
	path := filepath.Join(s.dir, "bad.yaml")
	err := os.WriteFile(path, []byte("prompt: [this is not a string\n"), 0644)
	c.Assert(err, IsNil)

	_, err = config.Load(path)
	c.Assert(err, NotNil)
}

func (s *S) TestPartialOverrideKeepsOtherDefaults(c *C) {
	path := filepath.Join(s.dir, "prompt-only.yaml")
	err := os.WriteFile(path, []byte("prompt: \"gosh> \"\n"), 0644)
	c.Assert(err, IsNil)

	cfg, err := config.Load(path)
	c.Assert(err, IsNil)
	c.Check(cfg.Prompt, Equals, "gosh> ")
	c.Check(cfg.RedirectFileMode, Equals, os.FileMode(0644))
}
