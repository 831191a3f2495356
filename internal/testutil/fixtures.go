package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/roach88/devbridge/internal/project"
)

// TodoRegistry indexes Todo entities by title and slug.
const TodoRegistry = `{"version":"1","registry":{"search_config":{"indexes":{"Todo":{"schema":{"fields":{
	"title":{"type":"String"},
	"slug":{"type":"String"}
}}}}}}}`

// WriteProject lays out a project with grafbase/schema.graphql in a fresh
// temporary directory. A non-empty registry is written to
// .grafbase/registry.json.
func WriteProject(t testing.TB, registry string) project.Paths {
	t.Helper()

	paths := project.PathsAt(t.TempDir())
	mustMkdir(t, paths.GrafbaseDir)
	mustWrite(t, paths.SchemaPath, "type Query { ok: Boolean }\n")

	if registry != "" {
		mustMkdir(t, paths.DotDir)
		mustWrite(t, paths.RegistryPath, registry)
	}
	return paths
}

// Invocation is the body the bridge sends to a resolver worker.
type Invocation struct {
	ResolverName string          `json:"resolver_name"`
	Payload      json.RawMessage `json:"payload"`
}

// ResolverFunc handles one invocation. A non-nil error makes the worker
// answer 500.
type ResolverFunc func(Invocation) (any, error)

// EchoResolver answers {"resolver": name, "payload": payload}.
func EchoResolver(in Invocation) (any, error) {
	return map[string]any{"resolver": in.ResolverName, "payload": in.Payload}, nil
}

// StartWorker runs fn as a resolver worker on 127.0.0.1 and returns its
// port. The worker is stopped when the test ends.
func StartWorker(t testing.TB, fn ResolverFunc) int {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in Invocation
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		out, err := fn(in)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)

	return Port(t, srv)
}

// Port returns the port an httptest server listens on.
func Port(t testing.TB, srv *httptest.Server) int {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return port
}

func mustMkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWrite(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %s", filepath.Base(path), err)
	}
}
