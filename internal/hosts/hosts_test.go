package hosts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/auth"
)

// fakeFalcon serves the token endpoint plus canned host endpoints and records calls
type fakeFalcon struct {
	mu        sync.Mutex
	queryArgs []url.Values
	detailIDs [][]string
	actions   []string
	actionIDs [][]string

	devices     map[string]Device
	queryIDs    []string
	queryStatus int
	queryBody   string
	actionBody  string
}

func (f *fakeFalcon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/oauth2/token":
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":1799}`)

	case queryDevicesPath:
		f.queryArgs = append(f.queryArgs, r.URL.Query())
		if f.queryStatus != 0 {
			w.WriteHeader(f.queryStatus)
			fmt.Fprint(w, f.queryBody)
			return
		}
		writeEnvelope(w, f.queryIDs)

	case deviceDetailsPath:
		var body idsBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.detailIDs = append(f.detailIDs, body.IDs)
		var page []Device
		for _, id := range body.IDs {
			if d, ok := f.devices[id]; ok {
				page = append(page, d)
			}
		}
		writeEnvelope(w, page)

	case deviceActionPath:
		var body idsBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.actions = append(f.actions, r.URL.Query().Get("action_name"))
		f.actionIDs = append(f.actionIDs, body.IDs)
		if f.actionBody != "" {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprint(w, f.actionBody)
			return
		}
		results := make([]ActionResult, 0, len(body.IDs))
		for _, id := range body.IDs {
			results = append(results, ActionResult{ID: id})
		}
		w.WriteHeader(http.StatusAccepted)
		writeEnvelope(w, results)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func writeEnvelope(w http.ResponseWriter, resources interface{}) {
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"meta":      map[string]interface{}{"trace_id": "trace-1"},
		"resources": resources,
		"errors":    []interface{}{},
	})
}

func newService(t *testing.T, fake *fakeFalcon, opts ...ServiceOption) *Service {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := api.NewClient(
		api.WithBaseURL(server.URL),
		api.WithCredentials(&auth.CredentialInfo{ClientID: "id", ClientSecret: "secret"}),
		api.WithRateLimit(0),
	)
	require.NoError(t, err)
	return NewService(client, opts...)
}

func TestFetch(t *testing.T) {
	fake := &fakeFalcon{
		queryIDs: []string{"a", "b"},
		devices: map[string]Device{
			"a": {DeviceID: "a", Hostname: "MAC-1", LastSeen: "2024-01-01T00:00:00Z"},
			"b": {DeviceID: "b", Hostname: "MAC-1", LastSeen: "2024-01-02T00:00:00Z"},
		},
	}
	svc := newService(t, fake)

	records, err := svc.Fetch(context.Background(), "hostname:'MAC-'", 5000)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "MAC-1", records[0].Hostname)
	assert.Equal(t, "2024-01-02T00:00:00Z", records[1].LastSeen)

	require.Len(t, fake.queryArgs, 1)
	assert.Equal(t, "hostname:'MAC-'", fake.queryArgs[0].Get("filter"))
	assert.Equal(t, "5000", fake.queryArgs[0].Get("limit"))
	assert.Equal(t, [][]string{{"a", "b"}}, fake.detailIDs)
}

func TestFetchNoMatchesSkipsDetails(t *testing.T) {
	fake := &fakeFalcon{}
	svc := newService(t, fake)

	records, err := svc.Fetch(context.Background(), "hostname:'MAC-'", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, fake.detailIDs)
}

func TestFetchQueryErrorCarriesPairs(t *testing.T) {
	fake := &fakeFalcon{
		queryStatus: http.StatusForbidden,
		queryBody:   `{"meta":{"trace_id":"t"},"resources":[],"errors":[{"code":403,"message":"access denied, authorization failed"}]}`,
	}
	svc := newService(t, fake)

	_, err := svc.Fetch(context.Background(), "hostname:'MAC-'", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to query devices")

	pairs := api.ErrorPairs(err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "[Error 403] access denied, authorization failed", pairs[0].String())
	assert.Empty(t, fake.detailIDs, "details must not be requested after a failed query")
}

func TestQueryDevicesRejectsBadLimit(t *testing.T) {
	fake := &fakeFalcon{}
	svc := newService(t, fake)

	for _, limit := range []int{0, -1, MaxQueryLimit + 1} {
		_, err := svc.QueryDevicesByFilter(context.Background(), "", limit)
		assert.Error(t, err, "limit %d", limit)
	}
	assert.Empty(t, fake.queryArgs)
}

func TestGetDeviceDetailsChunks(t *testing.T) {
	ids := make([]string, MaxDetailIDs+3)
	devices := make(map[string]Device, len(ids))
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
		devices[ids[i]] = Device{DeviceID: ids[i], Hostname: "MAC-X", LastSeen: "2024-01-01"}
	}
	fake := &fakeFalcon{devices: devices}
	svc := newService(t, fake)

	got, err := svc.GetDeviceDetails(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, got, len(ids))
	require.Len(t, fake.detailIDs, 2)
	assert.Len(t, fake.detailIDs[0], MaxDetailIDs)
	assert.Len(t, fake.detailIDs[1], 3)
}

func TestPerformAction(t *testing.T) {
	fake := &fakeFalcon{}
	svc := newService(t, fake)

	results, err := svc.PerformAction(context.Background(), ActionHide, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	require.NoError(t, svc.Unhide(context.Background(), []string{"c"}))

	assert.Equal(t, []string{ActionHide, ActionUnhide}, fake.actions)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, fake.actionIDs)
}

func TestPerformActionValidation(t *testing.T) {
	fake := &fakeFalcon{}
	svc := newService(t, fake)

	tooMany := make([]string, MaxActionIDs+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("id-%d", i)
	}

	tests := []struct {
		name   string
		action string
		ids    []string
	}{
		{name: "unknown action", action: "contain", ids: []string{"a"}},
		{name: "no ids", action: ActionHide, ids: nil},
		{name: "over cap", action: ActionHide, ids: tooMany},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PerformAction(context.Background(), tc.action, tc.ids)
			assert.Error(t, err)
		})
	}
	assert.Empty(t, fake.actions, "invalid requests must not reach the API")
}

func TestPerformActionEnvelopeErrors(t *testing.T) {
	fake := &fakeFalcon{
		actionBody: `{"meta":{},"resources":[],"errors":[{"code":404,"message":"device not found"},{"code":400,"message":"bad id"}]}`,
	}
	svc := newService(t, fake)

	err := svc.Hide(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to perform hide_host")
	pairs := api.ErrorPairs(err)
	require.Len(t, pairs, 2)
	assert.Equal(t, 404, pairs[0].Code)
	assert.Equal(t, "bad id", pairs[1].Message)
}

func TestPerformActionLogsAcceptedIDs(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	fake := &fakeFalcon{}
	svc := newService(t, fake, WithLogger(log))

	require.NoError(t, svc.Hide(context.Background(), []string{"a", "b"}))

	var entry struct {
		Level       string   `json:"level"`
		Action      string   `json:"action"`
		Requested   int      `json:"requested"`
		AcceptedIDs []string `json:"accepted_ids"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry.Level)
	assert.Equal(t, ActionHide, entry.Action)
	assert.Equal(t, 2, entry.Requested)
	assert.Equal(t, []string{"a", "b"}, entry.AcceptedIDs)
}

func TestNewServiceDefaultsToNopLogger(t *testing.T) {
	svc := NewService(nil)
	assert.Equal(t, zerolog.Disabled, svc.log.GetLevel())
}
