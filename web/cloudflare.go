package web

import (
	"errors"
	"net/http"

	"github.com/cxbdasheng/edgeboard/aggregate"
	"github.com/cxbdasheng/edgeboard/analytics"
	"github.com/cxbdasheng/edgeboard/helper"
)

const (
	msgCloudflareNotConfigured = "请配置 CF_API_KEY 和 CF_EMAIL"
	msgCloudflareNoZones       = "未找到任何匹配的域名，请检查配置"
)

// accountsBody 厂商接口统一的返回结构
type accountsBody struct {
	Error    string `json:"error,omitempty"`
	Accounts any    `json:"accounts"`
}

// writeProviderError 未配置等可预期的错误返回 200, 其余返回 500
func writeProviderError(w http.ResponseWriter, err error, messages map[error]string) {
	for target, msg := range messages {
		if errors.Is(err, target) {
			helper.ReturnJSON(w, http.StatusOK, accountsBody{Error: msg, Accounts: []any{}})
			return
		}
	}
	helper.ReturnJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

var cloudflareMessages = map[error]string{
	analytics.ErrNotConfigured: msgCloudflareNotConfigured,
	analytics.ErrNoZones:       msgCloudflareNoZones,
}

// CloudflareAnalytics 所有账号下匹配区域的日、小时和地区数据
func (s *Server) CloudflareAnalytics(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.client.CloudflareAnalytics(r.Context(), s.accounts.Cloudflare)
	if err != nil {
		writeProviderError(w, err, cloudflareMessages)
		return
	}
	helper.ReturnJSON(w, http.StatusOK, accountsBody{Accounts: accounts})
}

// CloudflareSummary period 取值 1day/3days/7days/30days, 默认 1day
func (s *Server) CloudflareSummary(w http.ResponseWriter, r *http.Request) {
	period := aggregate.ParsePeriod(r.URL.Query().Get("period"))
	accounts, err := s.client.CloudflareAnalytics(r.Context(), s.accounts.Cloudflare)
	if err != nil {
		writeProviderError(w, err, cloudflareMessages)
		return
	}
	helper.ReturnJSON(w, http.StatusOK, analytics.Summarize(accounts, period))
}

func (s *Server) CloudflareWorkers(w http.ResponseWriter, r *http.Request) {
	report, err := s.client.Workers(r.Context(), s.accounts.Cloudflare)
	if err != nil {
		writeProviderError(w, err, cloudflareMessages)
		return
	}
	helper.ReturnJSON(w, http.StatusOK, report)
}
