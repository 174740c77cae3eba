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

package job

import (
	"errors"
	"os"
	"strings"
)

// errNotFound mirrors the "No such file or directory" reason command.c
// reports via strerror(errno) when every execve attempt fails.
var errNotFound = errors.New("No such file or directory")

// resolvePath implements SPEC_FULL.md §4.3's PATH search, adapted to
// run before forking rather than as repeated execve attempts inside an
// already-forked child (see SPEC_FULL.md §4 Go-realization notes: Go
// cannot fork without an immediate exec, so there is no child-side
// retry hook). If name contains '/', only that path is tried. Otherwise
// each ':'-separated PATH entry is tried in order; an absent PATH falls
// through to errNotFound, matching the spec.
func resolvePath(name string) (string, error) {
	if strings.Contains(name, "/") {
		if isExecutable(name) {
			return name, nil
		}
		return "", errNotFound
	}

	path := os.Getenv("PATH")
	if path == "" {
		return "", errNotFound
	}
	for _, dir := range strings.Split(path, ":") {
		if dir == "" {
			dir = "."
		}
		candidate := dir + "/" + name
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", errNotFound
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode()&0o111 != 0
}
