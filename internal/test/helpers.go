package test

import (
	"path/filepath"
	"runtime"
)

// ProjectRoot is the module root, two directories above this file.
func ProjectRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// MigrationPath returns the path of a schema file under migrations/.
func MigrationPath(name string) string {
	return filepath.Join(ProjectRoot(), "migrations", name)
}
