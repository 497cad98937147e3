package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-devcaps/internal/bridge"
	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// DeviceSummary is one row of the device type listing.
type DeviceSummary struct {
	DeviceType  string `json:"device_type"`
	DisplayName string `json:"display_name"`
	Dynamic     bool   `json:"dynamic"`
	Modes       int    `json:"modes"`
}

// platformKeys maps each platform to its sorted IO keys.
type platformKeys = map[capability.PlatformName][]capability.IOKey

// ModeResponse describes one mode of a dynamic device type.
type ModeResponse struct {
	Name      string           `json:"name"`
	Field     capability.IOKey `json:"field"`
	Allowed   []int            `json:"allowed"`
	Platforms platformKeys     `json:"platforms"`
}

// DeviceResponse is the full view of one compiled entry.
type DeviceResponse struct {
	DeviceType   string             `json:"device_type"`
	DisplayName  string             `json:"display_name"`
	Generation   int                `json:"generation"`
	Features     []string           `json:"features"`
	Capabilities []string           `json:"capabilities"`
	Platforms    platformKeys       `json:"platforms"`
	Modes        []ModeResponse     `json:"modes,omitempty"`
	DefaultMode  string             `json:"default_mode,omitempty"`
	SnapshotKeys []capability.IOKey `json:"snapshot_keys,omitempty"`
	VersionOf    string             `json:"version_of,omitempty"`
	VirtualOf    string             `json:"virtual_of,omitempty"`
}

// handleListDevices returns every device type in the compiled table.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	table := s.resolver.Table()
	types := table.DeviceTypes()

	devices := make([]DeviceSummary, 0, len(types))
	for _, deviceType := range types {
		entry, ok := table.Lookup(deviceType)
		if !ok {
			continue
		}
		devices = append(devices, DeviceSummary{
			DeviceType:  entry.DeviceType,
			DisplayName: entry.DisplayName,
			Dynamic:     entry.Features.IsDynamic,
			Modes:       len(entry.Modes),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices":     devices,
		"count":       len(devices),
		"fingerprint": table.Fingerprint().String(),
	})
}

// handleGetDevice returns the compiled entry for one device type.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceType := chi.URLParam(r, "type")

	entry, ok := s.resolver.Table().Lookup(deviceType)
	if !ok {
		writeNotFound(w, "unknown device type: "+deviceType)
		return
	}

	resp := DeviceResponse{
		DeviceType:   entry.DeviceType,
		DisplayName:  entry.DisplayName,
		Generation:   int(entry.Features.Generation),
		Features:     entry.Features.Flags(),
		Capabilities: s.facade.Capabilities(deviceType),
		Platforms:    entry.Platforms.IOKeys(),
		DefaultMode:  entry.DefaultMode,
		SnapshotKeys: entry.SnapshotKeys,
		VersionOf:    entry.Features.VersionOf,
		VirtualOf:    entry.Features.VirtualOf,
	}
	for _, m := range entry.Modes {
		resp.Modes = append(resp.Modes, ModeResponse{
			Name:      m.Name,
			Field:     m.Condition.Field,
			Allowed:   m.Condition.Allowed,
			Platforms: m.Platforms.IOKeys(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleResolve resolves a posted snapshot against one device type.
//
// The body uses the same encoding as MQTT snapshots. The optional
// device_id query parameter is echoed in the response. A resolution that
// fails for a known device type is still a 200: the error is the answer.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	deviceType := chi.URLParam(r, "type")
	if !s.facade.IsSupported(deviceType) {
		writeNotFound(w, "unknown device type: "+deviceType)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "snapshot too large")
			return
		}
		writeBadRequest(w, ErrCodeBadRequest, "reading request body failed")
		return
	}

	snapshot, err := bridge.DecodeSnapshot(body)
	if err != nil {
		writeBadRequest(w, ErrCodeInvalidInput, err.Error())
		return
	}

	res := s.facade.Resolve(deviceType, snapshot)
	writeJSON(w, http.StatusOK, bridge.NewResolutionMessage(deviceType, r.URL.Query().Get("device_id"), res, time.Now()))
}

// handleReport returns the compile report of the running table.
func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fingerprint": s.resolver.Table().Fingerprint().String(),
		"entries":     s.resolver.Table().Len(),
		"report":      s.report,
	})
}
