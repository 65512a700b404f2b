//go:build mage

// Package main provides build targets for flipstore using Mage.
//
// Usage:
//
//	mage build       Compile flipstore to bin/
//	mage test        Run all tests
//	mage cover       Run tests with a coverage profile in bin/
//	mage lint        Run golangci-lint
//	mage clean       Remove build artifacts
//	mage install     Install flipstore to GOPATH/bin
//	mage migrations  List the embedded schema migrations
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName    = "flipstore"
	binaryDir     = "bin"
	cmdDir        = "./cmd/flipstore"
	versionVar    = "github.com/mesh-intelligence/flipstore/internal/cli.Version"
	migrationsDir = "internal/sqlite/migrations"
)

// version returns the VERSION environment variable or the latest git tag.
func version() string {
	if v := os.Getenv("VERSION"); v != "" {
		return strings.TrimPrefix(v, "v")
	}
	tag, err := sh.Output("git", "describe", "--tags", "--abbrev=0")
	if err != nil || tag == "" {
		return "0.0.0-dev"
	}
	return strings.TrimPrefix(tag, "v")
}

// Build compiles the flipstore binary to bin/ with the version stamped in.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	ldflags := fmt.Sprintf("-X %s=%s", versionVar, version())
	return sh.RunV("go", "build", "-v", "-ldflags", ldflags, "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Cover runs all tests and writes bin/coverage.out.
func Cover() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	profile := filepath.Join(binaryDir, "coverage.out")
	if err := sh.RunV("go", "test", "-coverprofile", profile, "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-func", profile)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Migrations lists the embedded schema migration scripts by file name.
func Migrations() error {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "V*__*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(matches)
	for _, path := range matches {
		fmt.Println(filepath.Base(path))
	}
	if len(matches) == 0 {
		return fmt.Errorf("no migrations in %s", migrationsDir)
	}
	return nil
}
