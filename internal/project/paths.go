// Package project resolves a project's on-disk layout and builds the
// immutable configuration every bridge component receives at startup.
//
// There is no ambient global lookup: the CLI builds one Config per bridge
// start and passes it by reference to the store, search, resolver and
// router.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Project layout names.
const (
	GrafbaseDirectoryName = "grafbase"
	DotGrafbaseDirectory  = ".grafbase"
	SchemaFileName        = "schema.graphql"
	TSConfigFileName      = "grafbase.config.ts"
	RegistryFileName      = "registry.json"
	DatabaseDirectoryName = "database"
	DatabaseFileName      = "data.sqlite"
	ConfigFileName        = "devbridge.yaml"
)

// ErrProjectNotFound is returned when no ancestor of the start directory
// contains a grafbase schema.
var ErrProjectNotFound = errors.New("could not find a grafbase directory with a schema in any ancestor")

// SchemaKind distinguishes the two schema sources a project may use.
type SchemaKind int

const (
	SchemaGraphQL SchemaKind = iota + 1
	SchemaTSConfig
)

// Paths is the resolved layout of one project.
type Paths struct {
	// Root is the project directory, the parent of GrafbaseDir.
	Root string
	// GrafbaseDir is $PROJECT/grafbase.
	GrafbaseDir string
	// SchemaPath is the schema.graphql or grafbase.config.ts file.
	SchemaPath string
	SchemaKind SchemaKind
	// DotDir is $PROJECT/.grafbase, the local cache directory.
	DotDir string
	// RegistryPath is $PROJECT/.grafbase/registry.json, written by the
	// external schema compiler.
	RegistryPath string
	// DatabaseDir holds the relational store file.
	DatabaseDir string
}

// DatabasePath returns the path of the relational store file.
func (p Paths) DatabasePath() string {
	return filepath.Join(p.DatabaseDir, DatabaseFileName)
}

// ConfigPath returns the default location of the optional bridge config file.
func (p Paths) ConfigPath() string {
	return filepath.Join(p.GrafbaseDir, ConfigFileName)
}

// Warning is a non-fatal observation made while resolving the project.
type Warning struct {
	Message string
	Hint    string
}

// Discover finds the nearest ancestor of startDir (inclusive) holding a
// grafbase directory with a schema.
//
// When startDir is itself inside a directory named "grafbase", that
// directory is checked too. If both grafbase.config.ts and schema.graphql
// exist, the TypeScript config wins and a warning is returned.
func Discover(startDir string) (Paths, []Warning, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return Paths{}, nil, fmt.Errorf("resolve start directory: %w", err)
	}

	var warnings []Warning
	for dir := abs; ; dir = filepath.Dir(dir) {
		if filepath.Base(dir) == GrafbaseDirectoryName {
			if schema, kind, ok := findSchema(dir, &warnings); ok {
				return newPaths(dir, schema, kind), warnings, nil
			}
		}

		candidate := filepath.Join(dir, GrafbaseDirectoryName)
		if schema, kind, ok := findSchema(candidate, &warnings); ok {
			return newPaths(candidate, schema, kind), warnings, nil
		}

		if filepath.Dir(dir) == dir {
			return Paths{}, warnings, ErrProjectNotFound
		}
	}
}

func findSchema(grafbaseDir string, warnings *[]Warning) (string, SchemaKind, bool) {
	tsConfig := filepath.Join(grafbaseDir, TSConfigFileName)
	graphql := filepath.Join(grafbaseDir, SchemaFileName)

	hasTS, hasGraphQL := isFile(tsConfig), isFile(graphql)
	switch {
	case hasTS && hasGraphQL:
		*warnings = append(*warnings, Warning{
			Message: "Found both grafbase.config.ts and schema.graphql files",
			Hint:    "Delete one of them to avoid conflicts",
		})
		return tsConfig, SchemaTSConfig, true
	case hasTS:
		return tsConfig, SchemaTSConfig, true
	case hasGraphQL:
		return graphql, SchemaGraphQL, true
	}
	return "", 0, false
}

func newPaths(grafbaseDir, schema string, kind SchemaKind) Paths {
	root := filepath.Dir(grafbaseDir)
	dot := filepath.Join(root, DotGrafbaseDirectory)
	return Paths{
		Root:         root,
		GrafbaseDir:  grafbaseDir,
		SchemaPath:   schema,
		SchemaKind:   kind,
		DotDir:       dot,
		RegistryPath: filepath.Join(dot, RegistryFileName),
		DatabaseDir:  filepath.Join(dot, DatabaseDirectoryName),
	}
}

// PathsAt builds the layout for a known project root without searching.
// Used by tests and by callers that already know where the project is.
func PathsAt(root string) Paths {
	grafbaseDir := filepath.Join(root, GrafbaseDirectoryName)
	return newPaths(grafbaseDir, filepath.Join(grafbaseDir, SchemaFileName), SchemaGraphQL)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
