package web

import (
	"errors"
	"net/http"

	"github.com/cxbdasheng/edgeboard/analytics"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/cxbdasheng/edgeboard/normalize"
)

const msgEdgeOneNotConfigured = "请配置 SECRET_ID 和 SECRET_KEY"

// EdgeOneZones 站点列表与近 24 小时概览
func (s *Server) EdgeOneZones(w http.ResponseWriter, r *http.Request) {
	report, err := s.client.EdgeOneZones(r.Context(), s.accounts.EdgeOne)
	if errors.Is(err, analytics.ErrNotConfigured) {
		helper.ReturnJSON(w, http.StatusOK, struct {
			Error    string                  `json:"error"`
			Zones    []normalize.EdgeOneZone `json:"Zones"`
			Accounts []any                   `json:"accounts"`
		}{msgEdgeOneNotConfigured, []normalize.EdgeOneZone{}, []any{}})
		return
	}
	if err != nil {
		helper.ReturnJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	helper.ReturnJSON(w, http.StatusOK, report)
}

// EdgeOneTraffic 查询单个指标, 厂商返回的错误放在 error 字段中
func (s *Server) EdgeOneTraffic(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := analytics.TrafficQuery{
		Metric:    q.Get("metric"),
		ZoneID:    q.Get("zoneId"),
		StartTime: q.Get("startTime"),
		EndTime:   q.Get("endTime"),
		Interval:  q.Get("interval"),
	}

	result, err := s.client.Traffic(r.Context(), s.accounts.EdgeOne, query)
	if errors.Is(err, analytics.ErrNotConfigured) {
		helper.ReturnJSON(w, http.StatusOK, errorBody{Error: msgEdgeOneNotConfigured})
		return
	}
	var apiErr *analytics.APIError
	if errors.As(err, &apiErr) {
		helper.ReturnJSON(w, http.StatusOK, struct {
			analytics.TrafficResult
			Error string `json:"error"`
		}{result, apiErr.Error()})
		return
	}
	if err != nil {
		helper.ReturnJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	helper.ReturnJSON(w, http.StatusOK, result)
}
