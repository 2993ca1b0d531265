package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/rs/zerolog"
	"github.com/tzneal/coordconv"

	"i4.energy/across/tk5000/tracker"
	"i4.energy/across/tk5000/wp"
)

// Server handles incoming HTTP requests for interacting with the
// configured tracker session
type Server struct {
	Logger  zerolog.Logger
	Tracker *tracker.Tracker
	// ExportName is the strftime pattern used to name CSV downloads
	ExportName string
	// Now returns the current time; time.Now when nil
	Now func() time.Time
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /location", s.handleLocation)
	mux.HandleFunc("GET /sos", s.handleSOS)
	mux.HandleFunc("GET /positions", s.handlePositions)
	mux.HandleFunc("POST /command", s.handleCommand)
	mux.ServeHTTP(w, r)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn().Err(err).Msg("Failed to write response")
	}
}

type errorResponse struct {
	Message string `json:"message"`
	Code    uint   `json:"code,omitempty"`
	Raw     string `json:"raw,omitempty"`
}

func (s *Server) sendError(w http.ResponseWriter, resp errorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// sendTrackerError maps a session error to an HTTP status.
func (s *Server) sendTrackerError(w http.ResponseWriter, op string, err error) {
	var (
		de *tracker.DeviceError
		pe *wp.ProtocolError
		te *tracker.TransportError
	)
	switch {
	case errors.As(err, &de):
		s.Logger.Warn().Str("op", op).Uint("code", de.Code).Str("reason", de.Message).Msg("Device rejected command")
		s.sendError(w, errorResponse{Message: de.Message, Code: de.Code}, http.StatusBadGateway)
	case errors.As(err, &pe):
		s.Logger.Warn().Str("op", op).Bytes("raw", pe.Raw).Msg("Unparsable device response")
		s.sendError(w, errorResponse{Message: pe.Error(), Raw: string(pe.Raw)}, http.StatusBadGateway)
	case errors.As(err, &te) && te.Timeout(), errors.Is(err, context.DeadlineExceeded):
		s.Logger.Warn().Str("op", op).Err(err).Msg("Device timed out")
		s.sendError(w, errorResponse{Message: err.Error()}, http.StatusGatewayTimeout)
	default:
		s.Logger.Error().Str("op", op).Err(err).Msg("Tracker operation failed")
		s.sendError(w, errorResponse{Message: err.Error()}, http.StatusInternalServerError)
	}
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	version, err := s.Tracker.Version(r.Context())
	if err != nil {
		s.sendTrackerError(w, "version", err)
		return
	}
	s.sendJSON(w, map[string]string{"version": version})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	fields, err := s.Tracker.Location(r.Context())
	if err != nil {
		s.sendTrackerError(w, "location", err)
		return
	}
	s.sendJSON(w, map[string][]string{"fields": fields})
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	contact, err := s.Tracker.SOSContact(r.Context())
	if err != nil {
		s.sendTrackerError(w, "sos", err)
		return
	}
	s.sendJSON(w, map[string]string{"contact": contact})
}

type position struct {
	tracker.PositionRecord
	Lat  *float64 `json:"lat,omitempty"`
	Lon  *float64 `json:"lon,omitempty"`
	UTM  string   `json:"utm,omitempty"`
	MGRS string   `json:"mgrs,omitempty"`
}

type positionsResponse struct {
	Positions      []position `json:"positions"`
	DistanceMeters float64    `json:"distance_meters"`
	Unparsed       int        `json:"unparsed"`
}

// handlePositions downloads the position log as JSON, or as a CSV
// attachment with ?format=csv
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		s.sendError(w, errorResponse{Message: fmt.Sprintf("unsupported format %q", format)}, http.StatusBadRequest)
		return
	}

	records, err := s.Tracker.DownloadPositions(r.Context())
	if err != nil {
		s.sendTrackerError(w, "positions", err)
		return
	}
	s.Logger.Info().Int("records", len(records)).Msg("Position log downloaded")

	if format == "csv" {
		s.sendCSV(w, records)
		return
	}

	resp := positionsResponse{Positions: make([]position, 0, len(records))}
	for _, rec := range records {
		p := position{PositionRecord: rec}
		if ll, err := rec.LatLng(); err == nil {
			lat, lon := ll.Lat.Degrees(), ll.Lng.Degrees()
			p.Lat, p.Lon = &lat, &lon
			if utm, err := rec.UTM(); err == nil {
				p.UTM = formatUTM(utm)
			}
			if grid, err := rec.MGRS(5); err == nil {
				p.MGRS = grid
			}
		}
		resp.Positions = append(resp.Positions, p)
	}
	resp.DistanceMeters, resp.Unparsed = tracker.TrackDistance(records)
	s.sendJSON(w, resp)
}

func (s *Server) sendCSV(w http.ResponseWriter, records []tracker.PositionRecord) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	name, err := strftime.Format(s.ExportName, now())
	if err != nil || name == "" {
		s.Logger.Warn().Err(err).Str("pattern", s.ExportName).Msg("Invalid export name pattern")
		name = "positions.csv"
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	cw := csv.NewWriter(w)
	cw.Write([]string{"timestamp", "latitude", "longitude"})
	for _, rec := range records {
		cw.Write([]string{rec.Timestamp, rec.Latitude, rec.Longitude})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.Logger.Warn().Err(err).Msg("Failed to write CSV")
	}
}

// handleCommand runs an arbitrary single-line command
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	type CommandRequest struct {
		Command string   `json:"command"`
		Params  []string `json:"params"`
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, errorResponse{Message: err.Error()}, http.StatusBadRequest)
		return
	}
	if req.Command == "" {
		s.sendError(w, errorResponse{Message: "'command' field is required"}, http.StatusBadRequest)
		return
	}

	fields, err := s.Tracker.Exec(r.Context(), req.Command, req.Params...)
	if err != nil {
		var fe *wp.FramingError
		if errors.As(err, &fe) {
			s.sendError(w, errorResponse{Message: err.Error()}, http.StatusBadRequest)
			return
		}
		s.sendTrackerError(w, "command", err)
		return
	}

	s.Logger.Info().Str("command", req.Command).Int("fields", len(fields)).Msg("Command executed")
	s.sendJSON(w, map[string]any{"command": req.Command, "fields": fields})
}

func formatUTM(c coordconv.UTMCoord) string {
	hemi := 'N'
	if c.Hemisphere == coordconv.HemisphereSouth {
		hemi = 'S'
	}
	return fmt.Sprintf("%d%c %.0f %.0f", c.Zone, hemi, c.Easting, c.Northing)
}
