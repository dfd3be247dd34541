package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// capturedRequest holds details captured from an incoming HTTP request.
type capturedRequest struct {
	Method  string
	Path    string
	Headers http.Header
	Body    string
}

// requestRecorder is a thread-safe recorder for HTTP requests received by httptest servers.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

// record captures req and replaces its body so handlers can still read it.
func (r *requestRecorder) record(req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, capturedRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Headers: req.Header.Clone(),
		Body:    string(body),
	})
}

func (r *requestRecorder) all() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.requests...)
}

// count returns how many requests matched "METHOD /path".
func (r *requestRecorder) count(route string) int {
	n := 0
	for _, req := range r.all() {
		if req.Method+" "+req.Path == route {
			n++
		}
	}
	return n
}

// fakeDune is an in-memory stand-in for the Dune API.
type fakeDune struct {
	rec requestRecorder

	mu            sync.Mutex
	nextID        int64
	names         map[int64]string
	sql           map[int64]string
	states        []string
	statusCalls   map[string]int
	rows          int
	failCreate    map[string]bool
	executeStatus int
}

func newFakeDune(t *testing.T) (*fakeDune, *httptest.Server) {
	t.Helper()
	f := &fakeDune{
		nextID:      1000,
		names:       map[int64]string{},
		sql:         map[int64]string{},
		states:      []string{"QUERY_STATE_COMPLETED"},
		statusCalls: map[string]int{},
		failCreate:  map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/query", f.createQuery)
	mux.HandleFunc("PATCH /api/v1/query/{id}", f.updateQuery)
	mux.HandleFunc("GET /api/v1/query/{id}", f.getQuery)
	mux.HandleFunc("POST /api/v1/query/{id}/execute", f.execute)
	mux.HandleFunc("GET /api/v1/execution/{eid}/status", f.status)
	mux.HandleFunc("GET /api/v1/execution/{eid}/results", f.results)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.rec.record(r)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeDune) seed(id int64, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[id] = name
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeDune) createQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		QuerySQL string `json:"query_sql"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate[body.Name] {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	id := f.nextID
	f.nextID++
	f.names[id] = body.Name
	f.sql[id] = body.QuerySQL
	writeJSON(w, http.StatusOK, map[string]int64{"query_id": id})
}

func (f *fakeDune) lookup(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad id"})
		return 0, false
	}
	f.mu.Lock()
	_, ok := f.names[id]
	f.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Query not found"})
		return 0, false
	}
	return id, true
}

func (f *fakeDune) updateQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := f.lookup(w, r)
	if !ok {
		return
	}
	var body struct {
		QuerySQL string `json:"query_sql"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.sql[id] = body.QuerySQL
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int64{"query_id": id})
}

func (f *fakeDune) getQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := f.lookup(w, r)
	if !ok {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{"query_id": id, "name": f.names[id], "query_sql": f.sql[id]})
}

func (f *fakeDune) execute(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status := f.executeStatus
	f.mu.Unlock()
	if status != 0 {
		writeJSON(w, status, map[string]string{"error": http.StatusText(status)})
		return
	}
	id, ok := f.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"execution_id": fmt.Sprintf("exec-%d", id),
		"state":        "QUERY_STATE_PENDING",
	})
}

func (f *fakeDune) status(w http.ResponseWriter, r *http.Request) {
	eid := r.PathValue("eid")
	f.mu.Lock()
	n := f.statusCalls[eid]
	f.statusCalls[eid]++
	state := f.states[len(f.states)-1]
	if n < len(f.states) {
		state = f.states[n]
	}
	f.mu.Unlock()

	resp := map[string]interface{}{"execution_id": eid, "state": state}
	if state == "QUERY_STATE_FAILED" {
		resp["error"] = map[string]string{"type": "FAILED_TYPE_EXECUTION_FAILED", "message": "line 1: syntax error"}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *fakeDune) results(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	n := f.rows
	f.mu.Unlock()
	rows := make([]map[string]int, n)
	for i := range rows {
		rows[i] = map[string]int{"n": i}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"execution_id": r.PathValue("eid"),
		"state":        "QUERY_STATE_COMPLETED",
		"result": map[string]interface{}{
			"rows":     rows,
			"metadata": map[string]int{"row_count": n},
		},
	})
}

// cliEnv is an isolated workspace with a queries directory and manifest path.
type cliEnv struct {
	queriesDir string
	manifest   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{
		"DUNE_API_URL", "DUNE_WEB_URL", "DUNE_QUERIES_DIR", "DUNE_MANIFEST",
		"DUNE_POLL_INTERVAL", "DUNE_POLL_TIMEOUT", "DUNE_HTTP_TIMEOUT",
		"DUNE_RATE_LIMIT_BURST", "LOG_LEVEL", "LOG_FORMAT", "DUNE_LOG_FILE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DUNE_API_KEY", "test-key")
	t.Setenv("DUNE_RATE_LIMIT_RPS", "-1")

	root := t.TempDir()
	e := &cliEnv{
		queriesDir: filepath.Join(root, "queries"),
		manifest:   filepath.Join(root, "queries.yml"),
	}
	require.NoError(t, os.Mkdir(e.queriesDir, 0o755))
	return e
}

func (e *cliEnv) writeQuery(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.queriesDir, name), []byte(content), 0o644))
}

func (e *cliEnv) writeManifest(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(e.manifest, []byte(content), 0o644))
}

func (e *cliEnv) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(e.queriesDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// exec runs the CLI against host with the workspace paths and a fast poll interval.
func (e *cliEnv) exec(host string, args ...string) cliResult {
	full := append([]string{}, args...)
	full = append(full,
		"--host", host,
		"--queries-dir", e.queriesDir,
		"--manifest", e.manifest,
		"--env-file", "",
		"--poll-interval", "1ms",
	)
	return execCLI(full...)
}

func execCLI(args ...string) cliResult {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}
