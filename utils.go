// Copyright 2024 Terminos Storage Protocol
// This file is part of the tos library.
//
// The tos library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tos library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tos library. If not, see <http://www.gnu.org/licenses/>.

package dhtring

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDir returns the default directory for a node's bootstrap files
// (cfgFile/predFile), based on the operating system. A ring node only ever
// needs somewhere to drop its own address.
func DefaultDataDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Dhtring")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Dhtring")
	default: // unix-like
		return filepath.Join(os.Getenv("HOME"), ".dhtring")
	}
}

// DefaultCfgFile returns the default path a node writes its own bootstrap
// address to, rooted at dataDir.
func DefaultCfgFile(dataDir string) string {
	return filepath.Join(dataDir, "node.cfg")
}
