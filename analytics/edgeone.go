package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cxbdasheng/edgeboard/aggregate"
	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/cxbdasheng/edgeboard/normalize"
	"github.com/cxbdasheng/edgeboard/signer"
	"golang.org/x/sync/errgroup"
)

const (
	edgeOneHost       = "teo.tencentcloudapi.com"
	edgeOneService    = "teo"
	edgeOneTimeFormat = "2006-01-02T15:04:05Z"

	edgeOneZoneLimit = 10
	defaultMetric    = "l7Flow_flux"
	topDataLimit     = 15
)

var originPullMetrics = map[string]bool{
	"l7Flow_outFlux_hy":      true,
	"l7Flow_outBandwidth_hy": true,
	"l7Flow_request_hy":      true,
	"l7Flow_inFlux_hy":       true,
	"l7Flow_inBandwidth_hy":  true,
}

var securityMetrics = map[string]bool{
	"ccAcl_interceptNum":    true,
	"ccManage_interceptNum": true,
	"ccRate_interceptNum":   true,
}

// topDimensions 排行类指标的维度, 指标名为 l7Flow_outFlux_<维度> 或 l7Flow_request_<维度>
var topDimensions = []string{
	"country", "province", "statusCode", "domain", "url", "resourceType", "sip",
	"referer", "referers", "ua_device", "ua_browser", "ua_os", "ua",
}

func isTopMetric(metric string) bool {
	for _, prefix := range []string{"l7Flow_outFlux_", "l7Flow_request_"} {
		dim, ok := strings.CutPrefix(metric, prefix)
		if !ok {
			continue
		}
		for _, d := range topDimensions {
			if d == dim {
				return true
			}
		}
	}
	return false
}

// TrafficAction 根据指标选择接口
func TrafficAction(metric string) string {
	switch {
	case isTopMetric(metric):
		return "DescribeTopL7AnalysisData"
	case originPullMetrics[metric]:
		return "DescribeTimingL7OriginPullData"
	case securityMetrics[metric]:
		return "DescribeWebProtectionData"
	default:
		return "DescribeTimingL7AnalysisData"
	}
}

// tencentError 腾讯云接口的业务错误
type tencentError struct {
	Response struct {
		Error *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
		RequestId string `json:"RequestId"`
	} `json:"Response"`
}

// edgeOne 签名并调用 EdgeOne 接口, 返回 Response 节点
func (c *Client) edgeOne(ctx context.Context, account config.EdgeOneAccount, action string, params any) (any, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.EdgeOneURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		signer.TencentSigner(account.SecretID, account.SecretKey, edgeOneService, edgeOneHost, action, string(payload), req)
		return req, nil
	})
	if err != nil {
		return nil, &APIError{Provider: ProviderEdgeOne, Action: action, Err: err}
	}

	var result tencentError
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, &APIError{Provider: ProviderEdgeOne, Action: action, Err: err}
	}
	if result.Response.Error != nil {
		return nil, &APIError{
			Provider: ProviderEdgeOne,
			Action:   action,
			Code:     result.Response.Error.Code,
			Message:  result.Response.Error.Message,
		}
	}

	doc, err := normalize.Decode(body)
	if err != nil {
		return nil, &APIError{Provider: ProviderEdgeOne, Action: action, Err: err}
	}
	if resp := normalize.Map(doc, "Response"); resp != nil {
		return resp, nil
	}
	return map[string]any{}, nil
}

// Overview 近 24 小时的流量与请求数
type Overview struct {
	TotalFlux      float64 `json:"totalFlux"`
	TotalBandwidth float64 `json:"totalBandwidth"`
	TotalRequests  float64 `json:"totalRequests"`
	TotalHits      float64 `json:"totalHits"`
}

func (o Overview) Add(other Overview) Overview {
	o.TotalFlux += other.TotalFlux
	o.TotalBandwidth += other.TotalBandwidth
	o.TotalRequests += other.TotalRequests
	o.TotalHits += other.TotalHits
	return o
}

type EdgeOneAccountResult struct {
	Name     string                  `json:"name"`
	Zones    []normalize.EdgeOneZone `json:"Zones"`
	Overview Overview                `json:"overview"`
	Error    string                  `json:"error,omitempty"`
}

type EdgeOneZonesReport struct {
	Zones    []normalize.EdgeOneZone `json:"Zones"`
	Accounts []EdgeOneAccountResult  `json:"accounts"`
	Overview Overview                `json:"overview"`
}

// FilterEdgeOneZones 按站点名过滤, 忽略大小写
func FilterEdgeOneZones(zones []normalize.EdgeOneZone, names []string) []normalize.EdgeOneZone {
	if len(names) == 0 {
		return zones
	}
	allow := make(map[string]struct{}, len(names))
	for _, n := range names {
		allow[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	filtered := make([]normalize.EdgeOneZone, 0, len(names))
	for _, z := range zones {
		if _, ok := allow[strings.ToLower(z.Name())]; ok {
			filtered = append(filtered, z)
		}
	}
	return filtered
}

// overview 并行查询出流量和请求数, 失败时对应的值为 0
func (c *Client) overview(ctx context.Context, account config.EdgeOneAccount) Overview {
	end := c.clock().UTC()
	start := end.Add(-24 * time.Hour)
	params := func(metric string) map[string]any {
		return map[string]any{
			"StartTime":   start.Format(edgeOneTimeFormat),
			"EndTime":     end.Format(edgeOneTimeFormat),
			"MetricNames": []string{metric},
			"ZoneIds":     []string{"*"},
			"Interval":    "hour",
		}
	}

	var ov Overview
	var g errgroup.Group
	g.Go(func() error {
		doc, err := c.edgeOne(ctx, account, "DescribeTimingL7AnalysisData", params("l7Flow_outFlux"))
		if err != nil {
			return err
		}
		ov.TotalFlux = normalize.TimingTotal(doc)
		return nil
	})
	g.Go(func() error {
		doc, err := c.edgeOne(ctx, account, "DescribeTimingL7AnalysisData", params("l7Flow_request"))
		if err != nil {
			return err
		}
		ov.TotalRequests = normalize.TimingTotal(doc)
		return nil
	})
	if err := g.Wait(); err != nil {
		helper.Warn(helper.LogTypeEdgeOne, "获取概览数据失败 [账号=%s]: %v", account.Name, err)
	}
	return ov
}

// accountZones 获取账号下的站点, 没有站点时返回 false
func (c *Client) accountZones(ctx context.Context, account config.EdgeOneAccount) (EdgeOneAccountResult, bool) {
	result := EdgeOneAccountResult{Name: account.Name, Zones: []normalize.EdgeOneZone{}}

	doc, err := c.edgeOne(ctx, account, "DescribeZones", map[string]any{})
	if err != nil {
		helper.Error(helper.LogTypeEdgeOne, "获取站点列表失败 [账号=%s]: %v", account.Name, err)
		result.Error = errorString(err)
		return result, true
	}

	zones := FilterEdgeOneZones(normalize.Zones(doc), account.Zones)
	if len(zones) == 0 {
		return result, false
	}
	if len(zones) > edgeOneZoneLimit {
		zones = zones[:edgeOneZoneLimit]
	}
	result.Zones = zones
	result.Overview = c.overview(ctx, account)
	helper.Info(helper.LogTypeEdgeOne, "获取站点完成 [账号=%s, 站点数=%d]", account.Name, len(zones))
	return result, true
}

// EdgeOneZones 各账号的站点与近 24 小时概览, 账号之间并行
func (c *Client) EdgeOneZones(ctx context.Context, accounts []config.EdgeOneAccount) (EdgeOneZonesReport, error) {
	report := EdgeOneZonesReport{
		Zones:    []normalize.EdgeOneZone{},
		Accounts: []EdgeOneAccountResult{},
	}
	if len(accounts) == 0 {
		return report, ErrNotConfigured
	}

	slots := make([]EdgeOneAccountResult, len(accounts))
	found := make([]bool, len(accounts))
	var g errgroup.Group
	for i, account := range accounts {
		g.Go(func() error {
			slots[i], found[i] = c.accountZones(ctx, account)
			return nil
		})
	}
	_ = g.Wait()

	for i, a := range slots {
		if !found[i] {
			continue
		}
		report.Accounts = append(report.Accounts, a)
		report.Zones = append(report.Zones, a.Zones...)
		report.Overview = report.Overview.Add(a.Overview)
	}
	return report, nil
}

// TrafficQuery /api/eo/traffic 的查询参数
type TrafficQuery struct {
	Metric    string
	ZoneID    string
	StartTime string
	EndTime   string
	Interval  string
}

// TrafficParams 生成接口名与请求参数
func (c *Client) TrafficParams(q TrafficQuery) (string, map[string]any) {
	if q.Metric == "" {
		q.Metric = defaultMetric
	}
	now := c.clock().UTC()
	if q.StartTime == "" {
		q.StartTime = now.Add(-24 * time.Hour).Format(edgeOneTimeFormat)
	}
	if q.EndTime == "" {
		q.EndTime = now.Format(edgeOneTimeFormat)
	}
	zoneIDs := []string{"*"}
	if q.ZoneID != "" {
		zoneIDs = []string{q.ZoneID}
	}

	action := TrafficAction(q.Metric)
	params := map[string]any{
		"StartTime": q.StartTime,
		"EndTime":   q.EndTime,
		"ZoneIds":   zoneIDs,
	}
	if action == "DescribeTopL7AnalysisData" {
		params["MetricName"] = q.Metric
		return action, params
	}
	params["MetricNames"] = []string{q.Metric}
	if q.Interval != "" && q.Interval != "auto" {
		params["Interval"] = q.Interval
	}
	return action, params
}

// TrafficResult 原始 Response 与规范化后的数据, 排行类指标填充 Top, 其余填充 Series
type TrafficResult struct {
	Action   string                   `json:"action"`
	Metric   string                   `json:"metric"`
	Series   []normalize.MetricSeries `json:"series,omitempty"`
	Top      []aggregate.TopNEntry    `json:"top,omitempty"`
	Response any                      `json:"response"`
}

// Traffic 使用第一个账号查询指标数据
func (c *Client) Traffic(ctx context.Context, accounts []config.EdgeOneAccount, q TrafficQuery) (TrafficResult, error) {
	if len(accounts) == 0 {
		return TrafficResult{}, ErrNotConfigured
	}
	action, params := c.TrafficParams(q)
	metric := params["MetricName"]
	if names, ok := params["MetricNames"].([]string); ok {
		metric = names[0]
	}
	result := TrafficResult{Action: action, Metric: metric.(string)}

	doc, err := c.edgeOne(ctx, accounts[0], action, params)
	if err != nil {
		helper.Error(helper.LogTypeEdgeOne, "查询指标失败 [指标=%s]: %v", result.Metric, err)
		return result, err
	}
	result.Response = doc
	if action == "DescribeTopL7AnalysisData" {
		result.Top = normalize.TopData(doc, topDataLimit)
	} else {
		result.Series = normalize.TimingSeries(doc, result.Metric)
	}
	return result, nil
}
