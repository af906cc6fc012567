package server

import (
	"net/http"

	"github.com/teranos/promptc/logger"
	"github.com/teranos/promptc/version"
)

// HandleParse parses a prompt into its positive and negative conjunctions
func (s *Server) HandleParse(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	log := logger.LoggerFromContext(r.Context())

	var req ParseRequest
	if err := readJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	resp, err := s.parse(req)
	if err != nil {
		log.Infow("Prompt rejected",
			logger.FieldPrompt, logger.Truncate(req.Prompt, 80),
			logger.FieldError, err.Error(),
			logger.FieldErrorType, errorType(err),
		)
		writeErr(w, err)
		return
	}

	if logger.ShouldOutput(s.verbosity(), logger.OutputBodies) {
		log.Debugw("Prompt parsed",
			logger.FieldPrompt, req.Prompt,
			"tree", req.Tree,
		)
	}
	_ = writeJSON(w, http.StatusOK, resp)
}

// HandleLegacy converts "text:weight" syntax into a blend
func (s *Server) HandleLegacy(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req LegacyRequest
	if err := readJSON(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	resp, err := s.legacy(req)
	if err != nil {
		logger.LoggerFromContext(r.Context()).Infow("Legacy prompt rejected",
			logger.FieldPrompt, logger.Truncate(req.Prompt, 80),
			logger.FieldError, err.Error(),
			logger.FieldErrorType, errorType(err),
		)
		writeErr(w, err)
		return
	}
	_ = writeJSON(w, http.StatusOK, resp)
}

// HandleHealth reports liveness, the build and the active attention bases.
// A draining server answers 503 so load balancers stop routing to it.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	info := version.Get()
	p := s.Parser()
	resp := HealthResponse{
		Status:    "ok",
		Version:   info.Version,
		Commit:    info.Short(),
		Clients:   s.ClientCount(),
		PlusBase:  p.PlusBase(),
		MinusBase: p.MinusBase(),
	}

	status := http.StatusOK
	if s.getState() != ServerStateRunning {
		resp.Status = stateString(s.getState())
		status = http.StatusServiceUnavailable
	}
	_ = writeJSON(w, status, resp)
}
