package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"smart-lock/internal/application"
	"smart-lock/internal/domain"
)

type lockView struct {
	ID       string           `json:"id"`
	DeviceID string           `json:"device_id"`
	Name     string           `json:"name"`
	Icon     string           `json:"icon,omitempty"`
	State    domain.LockState `json:"state"`
}

func newLockView(e application.LockEntity) lockView {
	return lockView{
		ID:       e.UniqueID(),
		DeviceID: e.DeviceID(),
		Name:     e.Name(),
		Icon:     e.Icon(),
		State:    application.StateOf(e),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"locks":  len(s.service.LockEntities()),
	})
}

func (s *Server) handleListLocks(w http.ResponseWriter, _ *http.Request) {
	entities := s.service.LockEntities()
	views := make([]lockView, 0, len(entities))
	for _, e := range entities {
		views = append(views, newLockView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"locks": views})
}

func (s *Server) handleGetLock(w http.ResponseWriter, r *http.Request) {
	entity, ok := s.service.LockEntity(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "lock not found")
		return
	}
	writeJSON(w, http.StatusOK, newLockView(entity))
}

func (s *Server) handleCommand(action domain.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd := &domain.Command{
			Action:    action,
			TargetID:  chi.URLParam(r, "id"),
			RequestID: requestIDFrom(r.Context()),
			Source:    domain.SourceHTTP,
		}

		result, err := s.service.Execute(r.Context(), cmd)
		if err != nil {
			if errors.Is(err, application.ErrEntityNotFound) {
				writeError(w, http.StatusNotFound, "lock not found")
				return
			}
			s.logger.Error("lock command failed", "command", cmd.String(), "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":     "ok",
			"message":    result,
			"request_id": cmd.RequestID,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
