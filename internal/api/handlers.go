package api

import (
	"errors"
	"net/http"

	apperr "github.com/dharsanguruparan/rolltrack/internal/errors"
	"github.com/dharsanguruparan/rolltrack/internal/inventory"
	"github.com/dharsanguruparan/rolltrack/internal/model"
	"github.com/dharsanguruparan/rolltrack/internal/s3storage"
)

type createProjectRequest struct {
	Name string `json:"name" validate:"required,max=31"`
}

func (*createProjectRequest) validated() {}

type unloadRequest struct {
	ExposedFt *float64 `json:"exposed_ft" validate:"required,gte=0"`
	WasteFt   *float64 `json:"waste_ft,omitempty" validate:"omitempty,gte=0"`
	Magazine  string   `json:"magazine"`
	Note      string   `json:"note"`
}

func (*unloadRequest) validated() {}

type flushResponse struct {
	Pending bool `json:"pending"`
}

type manifestResponse struct {
	ShipmentID string `json:"shipment_id"`
	URL        string `json:"url"`
	ExpiresIn  int64  `json:"expires_in_seconds"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok", "backend": s.backend})
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects(r.Context())
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	project, err := s.svc.CreateProject(r.Context(), req.Name)
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, project)
}

func (s *Server) handleListRolls(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r)
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	rolls, err := s.svc.Rolls(r.Context(), pathParam(r, "project"), statuses...)
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, rolls)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	rolls, err := s.svc.Candidates(r.Context(), pathParam(r, "project"))
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, rolls)
}

func (s *Server) handleCreateRoll(w http.ResponseWriter, r *http.Request) {
	var roll model.Roll
	if err := decodeJSONBody(w, r, &roll); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	created, err := s.svc.Create(r.Context(), pathParam(r, "project"), roll)
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccessStatus(w, http.StatusCreated, created)
}

func (s *Server) handleGetRoll(w http.ResponseWriter, r *http.Request) {
	roll, err := s.svc.Roll(r.Context(), pathParam(r, "project"), pathParam(r, "rollID"))
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, roll)
}

func (s *Server) handleEditRoll(w http.ResponseWriter, r *http.Request) {
	var patch model.RollPatch
	if err := decodeJSONBody(w, r, &patch); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	if patch.Empty() {
		writeError(r.Context(), s.log, w, apperr.New(apperr.CodeValidation, "nothing to change"))
		return
	}
	updated, err := s.svc.Edit(r.Context(), pathParam(r, "project"), pathParam(r, "rollID"), patch)
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, updated)
}

func (s *Server) handleUnload(w http.ResponseWriter, r *http.Request) {
	var req unloadRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	result, err := s.svc.Unload(r.Context(), pathParam(r, "project"), inventory.UnloadInput{
		RollID:    pathParam(r, "rollID"),
		ExposedFt: *req.ExposedFt,
		WasteFt:   req.WasteFt,
		Magazine:  req.Magazine,
		Note:      req.Note,
	})
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, result)
}

func (s *Server) handleShip(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.svc.Ship(r.Context(), pathParam(r, "project"))
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, outcome)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	rolls, err := s.svc.Reset(r.Context(), pathParam(r, "project"))
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, rolls)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	project := pathParam(r, "project")
	if err := s.svc.Flush(r.Context(), project); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, flushResponse{Pending: s.svc.Pending(project)})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.svc.Dashboard(r.Context(), pathParam(r, "project"))
	if err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	writeSuccess(w, dashboard)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	project := pathParam(r, "project")
	if _, err := s.svc.Ledger(r.Context(), project); err != nil {
		writeError(r.Context(), s.log, w, err)
		return
	}
	events := s.svc.Activity(project)
	if events == nil {
		events = []inventory.Event{}
	}
	writeSuccess(w, events)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if s.manifests == nil {
		writeError(r.Context(), s.log, w, apperr.New(apperr.CodeNotFound, "manifests are not configured"))
		return
	}
	project := pathParam(r, "project")
	shipmentID := pathParam(r, "shipmentID")
	url, err := s.manifests.PresignManifestURL(r.Context(), project, shipmentID, s.urlTTL)
	if errors.Is(err, s3storage.ErrObjectMissing) {
		writeError(r.Context(), s.log, w, apperr.Newf(apperr.CodeNotFound, "manifest for shipment %q not found", shipmentID))
		return
	}
	if err != nil {
		writeError(r.Context(), s.log, w, apperr.Wrap(apperr.CodeStorage, err, "presign manifest"))
		return
	}
	writeSuccess(w, manifestResponse{
		ShipmentID: shipmentID,
		URL:        url,
		ExpiresIn:  int64(s.urlTTL.Seconds()),
	})
}
