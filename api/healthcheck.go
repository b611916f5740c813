package api

import "net/http"

func (s *server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Storage.Ping(r.Context()); err != nil {
		s.logger.Warn("storage is unreachable", "error", err)
		s.writeJson(w, http.StatusServiceUnavailable, apiResponse{ //nolint:errcheck
			Success: false,
			Message: "Storage is unreachable.",
		}, nil)
		return
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: true,
		Message: "OK",
	}, nil)
}
