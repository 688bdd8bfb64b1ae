package server

import (
	"net/http"

	"github.com/matzehuels/territory/pkg/core/layout"
	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/core/position"
	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/store"
)

type healthResponse struct {
	Status   string `json:"status"`
	Entities int    `json:"entities"`
	Zones    int    `json:"zones"`
	Clients  int    `json:"clients"`
}

// ZoneSummary is one entry of GET /zones.
type ZoneSummary struct {
	model.Zone
	Members  int                `json:"members"`
	Top      *model.Entity      `json:"top,omitempty"`
	Boundary *layout.Boundary   `json:"boundary,omitempty"`
	Position *position.Position `json:"position,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Entities: s.store.Len(),
		Zones:    s.store.Zones().Len(),
	}
	if s.hub != nil {
		resp.Clients = s.hub.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	batch := s.store.LastNotifications()
	if r.URL.Query().Get("visible") == "true" {
		batch = store.Visible(batch)
	}
	writeJSON(w, http.StatusOK, store.NewBatch(batch))
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	snap := s.store.Snapshot()
	out := make([]ZoneSummary, 0, len(snap.Zones))
	for _, zs := range snap.Zones {
		out = append(out, summarize(zs))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleZone(w http.ResponseWriter, r *http.Request) {
	zs, ok := s.store.Snapshot().Zone(zoneFrom(r).ID)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeUnknownZone, "unknown zone %q", zoneFrom(r).ID))
		return
	}
	writeJSON(w, http.StatusOK, summarize(zs))
}

func (s *Server) handlePlacement(w http.ResponseWriter, r *http.Request) {
	z := zoneFrom(r)
	res, ok := s.store.Placement(z.ID)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "zone %q has no placement", z.ID))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	z := zoneFrom(r)
	pos, ok := s.store.Position(z.ID)
	if !ok {
		writeError(w, errors.New(errors.ErrCodeNotFound, "zone %q has no position", z.ID))
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func summarize(zs store.ZoneState) ZoneSummary {
	sum := ZoneSummary{
		Zone:     zs.Zone,
		Members:  zs.Members,
		Top:      zs.Top,
		Position: zs.Position,
	}
	if zs.Placement != nil {
		b := zs.Placement.Boundary
		sum.Boundary = &b
	}
	return sum
}
