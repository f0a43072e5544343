/*
NaiveSystems Analyze - A tool for static code analysis
Copyright (C) 2023  Naive Systems Ltd.

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

package atomic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteFile replaces the contents of name with data. The data is written to a
// temporary file in the same directory and renamed over name, so readers see
// either the previous contents or the new ones.
func WriteFile(name string, data []byte, perm os.FileMode) error {
	tmpName := filepath.Join(filepath.Dir(name), ".tmp-"+uuid.NewString()+"-"+filepath.Base(name))
	f, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("os.OpenFile: %v", err)
	}
	// Removing after a successful rename fails harmlessly.
	defer os.Remove(tmpName)
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write to file %s: %v", tmpName, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync file %s: %v", tmpName, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close file %s: %v", tmpName, err)
	}
	// Explicitly set the permissions since OpenFile is subject to umask.
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("os.Chmod: %v", err)
	}
	if err := os.Rename(tmpName, name); err != nil {
		return fmt.Errorf("failed to rename file %s to %s: %v", tmpName, name, err)
	}
	return nil
}
