package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/thisisjab/fuxi/fault"
	"github.com/thisisjab/fuxi/notify"
)

// sentryFeishuHandler relays a Sentry issue alert to the Feishu bot and
// answers with what Feishu replied.
func (s *server) sentryFeishuHandler(w http.ResponseWriter, r *http.Request) {
	if s.services.Feishu == nil {
		s.handleError(w, r, fault.New(fault.UnsupportedCode, "Feishu webhook is not configured."))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_576))
	if err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			s.handleError(w, r, fault.New(fault.BadInputCode, fmt.Sprintf("Body must not be larger than %d bytes.", maxBytesError.Limit)))
			return
		}
		s.internalServerError(w, r, err)
		return
	}

	notice, err := notify.ParseSentryNotice(body)
	if s.returnOnError(w, r, err) {
		return
	}

	res, err := s.services.Feishu.SendNotice(r.Context(), notice)
	if s.returnOnError(w, r, err) {
		return
	}

	if !res.OK {
		s.logger.Warn("feishu webhook rejected notice", "status", res.Status, "title", notice.Title)
	}

	s.writeJson(w, http.StatusOK, apiResponse{ //nolint:errcheck
		Success: res.OK,
		Message: "ok",
		Data:    res,
	}, nil)
}
