// Package hosts wraps the Falcon Hosts endpoints used to find and hide duplicate enrollments.
package hosts

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"falcon-dedupe/internal/api"
	"falcon-dedupe/internal/common"
	"falcon-dedupe/internal/dedupe"
)

const (
	// MaxQueryLimit is the largest page the device query endpoint returns
	MaxQueryLimit = 5000

	// MaxDetailIDs is the largest id list accepted by the device details endpoint
	MaxDetailIDs = 5000

	// MaxActionIDs is the largest id list accepted by the device action endpoint
	MaxActionIDs = 100

	queryDevicesPath  = "/devices/queries/devices/v1"
	deviceDetailsPath = "/devices/entities/devices/v2"
	deviceActionPath  = "/devices/entities/devices-actions/v2"
)

// Action names accepted by the device action endpoint
const (
	ActionHide   = "hide_host"
	ActionUnhide = "unhide_host"
)

// Requester is the part of the API client the service needs
type Requester interface {
	Request(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error)
}

// Device is the subset of a Falcon device record this tool reads
type Device struct {
	DeviceID     string `json:"device_id"`
	Hostname     string `json:"hostname"`
	LastSeen     string `json:"last_seen"`
	FirstSeen    string `json:"first_seen,omitempty"`
	PlatformName string `json:"platform_name,omitempty"`
	AgentVersion string `json:"agent_version,omitempty"`
}

// Record converts a device into the selector's input type
func (d Device) Record() dedupe.HostRecord {
	return dedupe.HostRecord{ID: d.DeviceID, Hostname: d.Hostname, LastSeen: d.LastSeen}
}

// ActionResult is one entry of a device action response
type ActionResult struct {
	ID   string `json:"id"`
	Path string `json:"path,omitempty"`
}

type idsBody struct {
	IDs []string `json:"ids"`
}

// Service talks to the Falcon Hosts API
type Service struct {
	client Requester
	log    zerolog.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLogger sets the logger that records accepted device actions
func WithLogger(log zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates a hosts service on top of an API client
func NewService(client Requester, opts ...ServiceOption) *Service {
	s := &Service{client: client, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryDevicesByFilter returns the ids of devices matching an FQL filter, up to limit
func (s *Service) QueryDevicesByFilter(ctx context.Context, filter string, limit int) ([]string, error) {
	if limit < 1 || limit > MaxQueryLimit {
		return nil, errors.Newf("limit must be between 1 and %d, got %d", MaxQueryLimit, limit)
	}

	query := url.Values{}
	if filter != "" {
		query.Set("filter", filter)
	}
	query.Set("limit", strconv.Itoa(limit))

	respBody, err := s.client.Request(ctx, http.MethodGet, queryDevicesPath, query, nil)
	if err != nil {
		return nil, common.FormatAPIError(err, "query devices")
	}

	var ids []string
	if _, err := api.ParseResponse(http.StatusOK, respBody, &ids); err != nil {
		return nil, common.FormatAPIError(err, "query devices")
	}
	return ids, nil
}

// GetDeviceDetails resolves device ids to device records
func (s *Service) GetDeviceDetails(ctx context.Context, ids []string) ([]Device, error) {
	var devices []Device
	for _, batch := range common.SplitIntoBatches(ids, MaxDetailIDs) {
		respBody, err := s.client.Request(ctx, http.MethodPost, deviceDetailsPath, nil, idsBody{IDs: batch})
		if err != nil {
			return nil, common.FormatAPIError(err, "fetch device details")
		}

		var page []Device
		if _, err := api.ParseResponse(http.StatusOK, respBody, &page); err != nil {
			return nil, common.FormatAPIError(err, "fetch device details")
		}
		devices = append(devices, page...)
	}
	return devices, nil
}

// Fetch queries matching device ids and resolves them to host records
func (s *Service) Fetch(ctx context.Context, filter string, limit int) ([]dedupe.HostRecord, error) {
	ids, err := s.QueryDevicesByFilter(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	devices, err := s.GetDeviceDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	records := make([]dedupe.HostRecord, 0, len(devices))
	for _, d := range devices {
		records = append(records, d.Record())
	}
	return records, nil
}

// PerformAction runs a device action (hide_host, unhide_host) on at most MaxActionIDs ids
func (s *Service) PerformAction(ctx context.Context, action string, ids []string) ([]ActionResult, error) {
	if action != ActionHide && action != ActionUnhide {
		return nil, errors.Newf("unsupported device action %q", action)
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one device id is required")
	}
	if len(ids) > MaxActionIDs {
		return nil, errors.Newf("device action accepts at most %d ids, got %d", MaxActionIDs, len(ids))
	}

	query := url.Values{"action_name": {action}}
	respBody, err := s.client.Request(ctx, http.MethodPost, deviceActionPath, query, idsBody{IDs: ids})
	if err != nil {
		return nil, common.FormatAPIError(err, "perform "+action)
	}

	var results []ActionResult
	if _, err := api.ParseResponse(http.StatusAccepted, respBody, &results); err != nil {
		return nil, common.FormatAPIError(err, "perform "+action)
	}

	accepted := make([]string, 0, len(results))
	for _, r := range results {
		accepted = append(accepted, r.ID)
	}
	s.log.Debug().
		Str("action", action).
		Int("requested", len(ids)).
		Strs("accepted_ids", accepted).
		Msg("Device action accepted")
	return results, nil
}

// Hide hides one batch of devices
func (s *Service) Hide(ctx context.Context, ids []string) error {
	_, err := s.PerformAction(ctx, ActionHide, ids)
	return err
}

// Unhide restores one batch of hidden devices
func (s *Service) Unhide(ctx context.Context, ids []string) error {
	_, err := s.PerformAction(ctx, ActionUnhide, ids)
	return err
}
