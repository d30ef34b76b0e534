package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// falconStub is a minimal Falcon API: token, device query, device details and device actions
type falconStub struct {
	mu       sync.Mutex
	requests []string
	actions  [][]string
	devices  []map[string]string
	queryErr string
}

func (s *falconStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/oauth2/token":
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":1799}`)
	case "/devices/queries/devices/v1":
		if s.queryErr != "" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, s.queryErr)
			return
		}
		ids := make([]string, 0, len(s.devices))
		for _, d := range s.devices {
			ids = append(ids, d["device_id"])
		}
		envelope(w, ids)
	case "/devices/entities/devices/v2":
		envelope(w, s.devices)
	case "/devices/entities/devices-actions/v2":
		var body struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.actions = append(s.actions, append([]string{r.URL.Query().Get("action_name")}, body.IDs...))
		w.WriteHeader(http.StatusAccepted)
		envelope(w, []interface{}{})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func envelope(w http.ResponseWriter, resources interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"meta":      map[string]string{"trace_id": "t"},
		"resources": resources,
		"errors":    []interface{}{},
	})
}

func (s *falconStub) calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.requests {
		if p == path {
			n++
		}
	}
	return n
}

// setup isolates the environment and starts a stub server
func setup(t *testing.T, withCreds bool) (*falconStub, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"FALCON_CLIENT_ID", "FALCON_CLIENT_SECRET", "FALCON_MEMBER_CID", "FALCON_CLOUD",
		"FALCON_BASE_URL", "FALCON_FILTER", "FALCON_LIMIT", "FALCON_BATCH_SIZE", "FALCON_TIMEOUT", "FALCON_RATE_LIMIT"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	if withCreds {
		t.Setenv("FALCON_CLIENT_ID", "client-id")
		t.Setenv("FALCON_CLIENT_SECRET", "client-secret")
	}

	stub := &falconStub{devices: []map[string]string{
		{"device_id": "A", "hostname": "MAC-1", "last_seen": "2024-01-01T00:00:00Z"},
		{"device_id": "B", "hostname": "MAC-1", "last_seen": "2024-02-01T00:00:00Z"},
		{"device_id": "C", "hostname": "MAC-2", "last_seen": "2024-01-15T00:00:00Z"},
	}}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	return stub, server.URL
}

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	code := execute(root, append(args, "--verbosity", "quiet"))
	return code, stdout.String(), stderr.String()
}

func TestMissingCredentialsFailBeforeNetwork(t *testing.T) {
	stub, baseURL := setup(t, false)

	code, _, stderr := run(t, "", "dedupe", "--base-url", baseURL, "--apply", "--yes")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "FALCON_CLIENT_ID")
	assert.Empty(t, stub.requests)
}

func TestDedupeDryRunByDefault(t *testing.T) {
	stub, baseURL := setup(t, true)

	code, stdout, stderr := run(t, "", "dedupe", "--base-url", baseURL)

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Removing duplicate MAC-1 (A) with last check-in on 2024-01-01T00:00:00Z")
	assert.NotContains(t, stdout, "(B)")
	assert.Contains(t, stdout, "DRY RUN: Would hide 1 hosts")
	assert.Zero(t, stub.calls("/devices/entities/devices-actions/v2"))
}

func TestDedupeApply(t *testing.T) {
	stub, baseURL := setup(t, true)

	code, stdout, stderr := run(t, "", "dedupe", "--base-url", baseURL, "--apply", "--yes")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Batch 1: hide accepted for 1 hosts")
	assert.Equal(t, [][]string{{"hide_host", "A"}}, stub.actions)
}

func TestDedupeApplyDeclined(t *testing.T) {
	stub, baseURL := setup(t, true)

	code, stdout, _ := run(t, "n\n", "dedupe", "--base-url", baseURL, "--apply")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Operation cancelled.")
	assert.Empty(t, stub.actions)
}

func TestQueryErrorPrintsEveryPair(t *testing.T) {
	stub, baseURL := setup(t, true)
	stub.queryErr = `{"meta":{},"resources":[],"errors":[{"code":403,"message":"access denied, authorization failed"},{"code":500,"message":"second"}]}`

	code, stdout, stderr := run(t, "", "dedupe", "--base-url", baseURL, "--apply", "--yes")

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "[Error 403] access denied, authorization failed\n[Error 500] second")
	assert.Contains(t, stderr, "Hosts: Read")
	assert.NotContains(t, stdout, "Removing duplicate")
	assert.Zero(t, stub.calls("/devices/entities/devices/v2"))
	assert.Empty(t, stub.actions)
}

func TestScanJSON(t *testing.T) {
	_, baseURL := setup(t, true)
	export := filepath.Join(t.TempDir(), "hosts.json")

	code, stdout, stderr := run(t, "", "scan", "--base-url", baseURL, "--output", "json", "--export", export)
	require.Equal(t, 0, code, stderr)

	var groups []struct {
		Hostname string `json:"hostname"`
		Kept     struct {
			ID string `json:"device_id"`
		} `json:"kept"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "MAC-1", groups[0].Hostname)
	assert.Equal(t, "B", groups[0].Kept.ID)

	// The export feeds the offline selector
	code, stdout, stderr = run(t, "", "select", "--input", export)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Removing duplicate MAC-1 (A)")
	assert.Contains(t, stdout, "1 of 3 host records selected")
}

func TestSelectRejectsInvalidTimestamps(t *testing.T) {
	setup(t, false)
	input := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"device_id":"A","hostname":"h1","last_seen":"2024-01-01"},
		{"device_id":"B","hostname":"h1","last_seen":"not a date"}
	]`), 0600))

	code, stdout, stderr := run(t, "", "select", "--input", input)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "B")
	assert.NotContains(t, stdout, "Removing duplicate")
}

func TestSelectJSONKeepsRawLastSeen(t *testing.T) {
	setup(t, false)
	input := filepath.Join(t.TempDir(), "hosts.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"device_id":"A","hostname":"h1","last_seen":"2024-01-01"},
		{"device_id":"B","hostname":"h1","last_seen":"2024-02-01"}
	]`), 0600))

	code, stdout, stderr := run(t, "", "select", "--input", input, "--output", "json")
	require.Equal(t, 0, code, stderr)

	var selected []map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &selected))
	require.Len(t, selected, 1)
	assert.Equal(t, "A", selected[0]["device_id"])
	assert.Equal(t, "2024-01-01", selected[0]["last_seen_raw"])
	assert.Equal(t, "2024-01-01T00:00:00Z", selected[0]["last_seen"])
}

func TestCommandsRejectPositionalArgs(t *testing.T) {
	stub, baseURL := setup(t, true)

	for _, args := range [][]string{
		{"scan", "extra", "--base-url", baseURL},
		{"dedupe", "extra", "--base-url", baseURL, "--apply", "--yes"},
		{"hide", "extra", "--base-url", baseURL, "--ids", "X", "--yes"},
		{"unhide", "extra", "--base-url", baseURL, "--ids", "X", "--yes"},
		{"select", "extra", "--input", "hosts.json"},
		{"config", "show", "extra"},
	} {
		code, _, stderr := run(t, "", args...)
		assert.Equal(t, 1, code, "args %v", args)
		assert.Contains(t, stderr, "unknown command \"extra\"", "args %v", args)
	}
	assert.Empty(t, stub.requests)
}

func TestHideIDs(t *testing.T) {
	stub, baseURL := setup(t, true)
	idsFile := filepath.Join(t.TempDir(), "ids.txt")
	require.NoError(t, os.WriteFile(idsFile, []byte("# extra\nY\nX\n"), 0600))

	code, _, stderr := run(t, "", "hide", "--base-url", baseURL, "--ids", "X", "--ids-file", idsFile, "--yes")
	require.Equal(t, 0, code, stderr)

	code, _, stderr = run(t, "", "unhide", "--base-url", baseURL, "--ids", "X", "--yes")
	require.Equal(t, 0, code, stderr)

	assert.Equal(t, [][]string{{"hide_host", "X", "Y"}, {"unhide_host", "X"}}, stub.actions)
}

func TestHideDryRun(t *testing.T) {
	stub, baseURL := setup(t, true)

	code, stdout, _ := run(t, "", "hide", "--base-url", baseURL, "--ids", "X,Y", "--dry-run")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "DRY RUN: Would hide 2 hosts")
	assert.Empty(t, stub.actions)
}

func TestConfigShowMasksSecret(t *testing.T) {
	setup(t, true)

	code, stdout, stderr := run(t, "", "config", "show", "--cloud", "eu-1")

	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "base_url: https://api.eu-1.crowdstrike.com")
	assert.NotContains(t, stdout, "client-secret")
	assert.Contains(t, stdout, "client_id: *****t-id")
}

func TestConfigInit(t *testing.T) {
	setup(t, false)
	path := filepath.Join(t.TempDir(), "cfg.yaml")

	code, _, stderr := run(t, "", "config", "init", "--path", path, "--filter", "hostname:'LAB-'")
	require.Equal(t, 0, code, stderr)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "LAB-")

	code, _, stderr = run(t, "", "config", "init", "--path", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--force")
}

func TestVersion(t *testing.T) {
	code, stdout, _ := run(t, "", "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "falcon-dedupe version dev")
}
