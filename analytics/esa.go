package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/cxbdasheng/edgeboard/normalize"
	"github.com/cxbdasheng/edgeboard/signer"
	"golang.org/x/sync/errgroup"
)

const (
	esaHost    = "esa.cn-hangzhou.aliyuncs.com"
	esaVersion = "2024-09-10"

	esaOutputLimit = 20
	// 请求 GetRoutine 详情的边缘函数个数
	routineDetailLimit = 5
	// 站点时序数据的并发数
	siteSeriesWorkers = 4
)

// quotaNames ListInstanceQuotasWithUsage 必须指定配额名
var quotaNames = []string{
	"customHttpCert",
	"transition_rule",
	"cache_rules|rule_quota",
	"redirect_rules|rule_quota",
	"origin_rules|rule_quota",
}

// esaFields DescribeSiteTimeSeriesData 的查询字段
var esaFields = []map[string]any{
	{"FieldName": "Traffic", "Dimension": []string{"ALL"}},
	{"FieldName": "Requests", "Dimension": []string{"ALL"}},
}

// ESAOptions /api/esa 的查询参数
type ESAOptions struct {
	Details        bool
	SkipTimeSeries bool
}

type ESAAccountResult struct {
	Name             string              `json:"name"`
	Sites            []normalize.ESASite `json:"sites"`
	Quotas           []normalize.Quota   `json:"quotas"`
	TotalRequests    int64               `json:"totalRequests"`
	TotalBytes       int64               `json:"totalBytes"`
	InstanceID       string              `json:"instanceId"`
	QuotaSource      string              `json:"quotaSource"`
	Routines         []normalize.Routine `json:"routines"`
	RoutineCount     int64               `json:"routineCount"`
	EdgeRoutinePlans []any               `json:"edgeRoutinePlans"`
	ERService        any                 `json:"erService"`
	Error            string              `json:"error,omitempty"`
}

type ESAReport struct {
	Accounts []ESAAccountResult `json:"accounts"`
}

// esa 调用 ESA 的 RPC 接口, 参数签名后放在查询串中
// 业务错误返回 Code 和 Message 字段
func (c *Client) esa(ctx context.Context, account config.ESAAccount, method, action string, params url.Values) (any, error) {
	body, err := c.do(ctx, func() (*http.Request, error) {
		query := url.Values{}
		for k, v := range params {
			query[k] = append([]string(nil), v...)
		}
		query.Set("Action", action)
		query.Set("Version", esaVersion)
		signed := signer.AliyunSigner(account.AccessKeyID, account.AccessKeySecret, query, method)
		return http.NewRequest(method, c.ESAURL+"/?"+signed, nil)
	})
	if err != nil {
		apiErr := &APIError{Provider: ProviderESA, Action: action, Err: err}
		var resp struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		}
		if len(body) > 0 && json.Unmarshal(body, &resp) == nil && resp.Code != "" {
			apiErr.Code, apiErr.Message = resp.Code, resp.Message
		}
		return nil, apiErr
	}

	doc, err := normalize.Decode(body)
	if err != nil {
		return nil, &APIError{Provider: ProviderESA, Action: action, Err: err}
	}
	return doc, nil
}

// FilterSites 按站点名或站点 ID 过滤, 忽略大小写
func FilterSites(sites []normalize.ESASite, scope []string) []normalize.ESASite {
	if len(scope) == 0 {
		return sites
	}
	allow := make(map[string]struct{}, len(scope))
	for _, s := range scope {
		allow[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	filtered := make([]normalize.ESASite, 0, len(scope))
	for _, s := range sites {
		_, byName := allow[strings.ToLower(s.SiteName)]
		_, byID := allow[strings.ToLower(s.SiteId)]
		if byName || byID {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// siteSeries 查询近 24 小时的流量和请求数, 失败时写入站点的 Error
func (c *Client) siteSeries(ctx context.Context, account config.ESAAccount, site *normalize.ESASite, start, end time.Time) {
	fields, err := json.Marshal(esaFields)
	if err != nil {
		site.Error = err.Error()
		return
	}
	params := url.Values{}
	params.Set("SiteId", site.SiteId)
	params.Set("StartTime", start.Format(signer.AliyunTimeFormat))
	params.Set("EndTime", end.Format(signer.AliyunTimeFormat))
	params.Set("Fields", string(fields))

	doc, err := c.esa(ctx, account, http.MethodGet, "DescribeSiteTimeSeriesData", params)
	if err != nil {
		helper.Warn(helper.LogTypeESA, "获取站点时序数据失败 [站点=%s]: %v", site.SiteName, err)
		site.Error = err.Error()
		return
	}
	normalize.ApplySiteSeries(site, doc)
}

// instanceID 优先使用过滤后第一个站点的实例 ID, 过滤后没有站点时使用未过滤的第一个站点,
// 都没有时查询套餐实例列表
func (c *Client) instanceID(ctx context.Context, account config.ESAAccount, sites, all []normalize.ESASite) string {
	if len(sites) == 0 {
		sites = all
	}
	if len(sites) > 0 && sites[0].InstanceId != "" {
		return sites[0].InstanceId
	}
	params := url.Values{}
	params.Set("PageNumber", "1")
	params.Set("PageSize", "10")
	doc, err := c.esa(ctx, account, http.MethodGet, "ListUserRatePlanInstances", params)
	if err != nil {
		helper.Warn(helper.LogTypeESA, "获取套餐实例失败 [账号=%s]: %v", account.Name, err)
		return ""
	}
	return normalize.InstanceID(doc)
}

func (c *Client) quotas(ctx context.Context, account config.ESAAccount, siteID string) []normalize.Quota {
	if siteID == "" {
		return []normalize.Quota{}
	}
	params := url.Values{}
	params.Set("SiteId", siteID)
	params.Set("QuotaNames", strings.Join(quotaNames, ","))
	doc, err := c.esa(ctx, account, http.MethodGet, "ListInstanceQuotasWithUsage", params)
	if err != nil {
		helper.Warn(helper.LogTypeESA, "获取配额失败 [账号=%s]: %v", account.Name, err)
		return []normalize.Quota{}
	}
	return normalize.Quotas(doc)
}

// routines 获取边缘函数列表, details 为 true 时前 5 个补充详情
// 未获取详情的边缘函数状态为 deployed
func (c *Client) routines(ctx context.Context, account config.ESAAccount, details bool) ([]normalize.Routine, int64) {
	params := url.Values{}
	params.Set("PageNumber", "1")
	params.Set("PageSize", "50")
	doc, err := c.esa(ctx, account, http.MethodGet, "ListUserRoutines", params)
	if err != nil {
		helper.Warn(helper.LogTypeESA, "获取边缘函数失败 [账号=%s]: %v", account.Name, err)
		return []normalize.Routine{}, 0
	}
	routines, total := normalize.Routines(doc)

	detailed := 0
	if details {
		detailed = min(routineDetailLimit, len(routines))
	}
	var g errgroup.Group
	for i := 0; i < detailed; i++ {
		g.Go(func() error {
			p := url.Values{}
			p.Set("Name", routines[i].Name)
			detail, err := c.esa(ctx, account, http.MethodGet, "GetRoutine", p)
			if err != nil {
				helper.Debug(helper.LogTypeESA, "获取边缘函数详情失败 [函数=%s]: %v", routines[i].Name, err)
				detail = map[string]any{}
			}
			routines[i] = normalize.MergeRoutineDetail(routines[i], detail)
			return nil
		})
	}
	_ = g.Wait()

	for i := detailed; i < len(routines); i++ {
		routines[i].Status = "deployed"
	}
	return routines, total
}

// esaAccount 处理单个账号, 站点列表获取失败时只返回错误信息
func (c *Client) esaAccount(ctx context.Context, account config.ESAAccount, opts ESAOptions) ESAAccountResult {
	result := ESAAccountResult{
		Name:             account.Name,
		Sites:            []normalize.ESASite{},
		Quotas:           []normalize.Quota{},
		Routines:         []normalize.Routine{},
		EdgeRoutinePlans: []any{},
		ERService:        map[string]any{},
		QuotaSource:      "fallback",
	}

	doc, err := c.esa(ctx, account, http.MethodGet, "ListSites", url.Values{})
	if err != nil {
		helper.Error(helper.LogTypeESA, "获取站点列表失败 [账号=%s]: %v", account.Name, err)
		result.Error = err.Error()
		return result
	}
	all := normalize.Sites(doc)
	sites := FilterSites(all, account.Sites)

	if !opts.SkipTimeSeries {
		end := c.clock().UTC()
		start := end.Add(-24 * time.Hour)
		var g errgroup.Group
		g.SetLimit(siteSeriesWorkers)
		for i := range sites {
			if sites[i].SiteId == "" {
				continue
			}
			g.Go(func() error {
				c.siteSeries(ctx, account, &sites[i], start, end)
				return nil
			})
		}
		_ = g.Wait()
	}

	result.InstanceID = c.instanceID(ctx, account, sites, all)
	if result.InstanceID != "" {
		result.QuotaSource = "instance"
	}
	if len(sites) > 0 {
		result.Quotas = c.quotas(ctx, account, sites[0].SiteId)
	}

	var erService any = map[string]any{}
	var g errgroup.Group
	g.Go(func() error {
		result.Routines, result.RoutineCount = c.routines(ctx, account, opts.Details)
		return nil
	})
	g.Go(func() error {
		doc, err := c.esa(ctx, account, http.MethodGet, "ListEdgeRoutinePlans", url.Values{})
		if err != nil {
			helper.Warn(helper.LogTypeESA, "获取边缘函数套餐失败 [账号=%s]: %v", account.Name, err)
			return nil
		}
		result.EdgeRoutinePlans = normalize.Plans(doc)
		return nil
	})
	g.Go(func() error {
		doc, err := c.esa(ctx, account, http.MethodGet, "GetErService", url.Values{})
		if err != nil {
			helper.Warn(helper.LogTypeESA, "获取边缘函数服务状态失败 [账号=%s]: %v", account.Name, err)
			return nil
		}
		erService = doc
		return nil
	})
	_ = g.Wait()
	result.ERService = erService

	erStatus := normalize.String(erService, "Status")
	for i := range result.Routines {
		if result.Routines[i].Status == "" {
			result.Routines[i].Status = erStatus
		}
	}

	for _, s := range sites {
		result.TotalRequests += s.Requests
		result.TotalBytes += s.Bytes
	}
	if len(sites) > esaOutputLimit {
		sites = sites[:esaOutputLimit]
	}
	if len(result.Routines) > esaOutputLimit {
		result.Routines = result.Routines[:esaOutputLimit]
	}
	result.Sites = sites

	helper.Info(helper.LogTypeESA, "获取 ESA 数据完成 [账号=%s, 站点数=%d, 边缘函数数=%d]", account.Name, len(sites), result.RoutineCount)
	return result
}

// ESA 各账号的站点、配额和边缘函数, 账号之间并行
func (c *Client) ESA(ctx context.Context, accounts []config.ESAAccount, opts ESAOptions) (ESAReport, error) {
	report := ESAReport{Accounts: []ESAAccountResult{}}
	if len(accounts) == 0 {
		return report, ErrNotConfigured
	}

	slots := make([]ESAAccountResult, len(accounts))
	var g errgroup.Group
	for i, account := range accounts {
		g.Go(func() error {
			slots[i] = c.esaAccount(ctx, account, opts)
			return nil
		})
	}
	_ = g.Wait()

	report.Accounts = slots
	return report, nil
}
