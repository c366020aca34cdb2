package web

import (
	"net/http"

	"github.com/cxbdasheng/edgeboard/analytics"
	"github.com/cxbdasheng/edgeboard/helper"
)

const msgESANotConfigured = "请配置 ESA_ACCESS_KEY_ID 与 ESA_ACCESS_KEY_SECRET"

// ESA details=true 时查询边缘函数详情, skipTimeSeries=true 时跳过站点时序数据
func (s *Server) ESA(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := analytics.ESAOptions{
		Details:        q.Get("details") == "true",
		SkipTimeSeries: q.Get("skipTimeSeries") == "true",
	}

	report, err := s.client.ESA(r.Context(), s.accounts.ESA, opts)
	if err != nil {
		writeProviderError(w, err, map[error]string{analytics.ErrNotConfigured: msgESANotConfigured})
		return
	}
	helper.ReturnJSON(w, http.StatusOK, report)
}
