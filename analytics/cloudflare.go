package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cxbdasheng/edgeboard/aggregate"
	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/cxbdasheng/edgeboard/normalize"
	"golang.org/x/sync/errgroup"
)

const (
	cloudflareURL  = "https://api.cloudflare.com/client/v4"
	graphQLTimeout = 30 * time.Second

	zonesPerPage = 50
	// 未配置域名过滤时最多查询的区域数
	defaultZoneLimit = 20
	topCountryLimit  = 15

	daysRange  = 45 * 24 * time.Hour
	hoursRange = 3 * 24 * time.Hour
)

// ErrNoZones 账号下没有匹配的区域
var ErrNoZones = errors.New("no matching zones")

const daysQuery = `query($zone: String!, $since: Date!, $until: Date!) {
  viewer {
    zones(filter: {zoneTag: $zone}) {
      httpRequests1dGroups(filter: {date_geq: $since, date_leq: $until}, limit: 100, orderBy: [date_DESC]) {
        dimensions { date }
        sum { requests bytes threats cachedRequests cachedBytes }
      }
    }
  }
}`

const hoursQuery = `query($zone: String!, $since: Time!, $until: Time!) {
  viewer {
    zones(filter: {zoneTag: $zone}) {
      httpRequests1hGroups(filter: {datetime_geq: $since, datetime_leq: $until}, limit: 200, orderBy: [datetime_DESC]) {
        dimensions { datetime }
        sum { requests bytes threats cachedRequests cachedBytes }
      }
    }
  }
}`

const geoQuery = `query($zone: String!, $since: Date!, $until: Date!) {
  viewer {
    zones(filter: {zoneTag: $zone}) {
      httpRequests1dGroups(filter: {date_geq: $since, date_leq: $until}, limit: 100, orderBy: [date_DESC]) {
        dimensions { date }
        sum { countryMap { bytes requests threats clientCountryName } }
      }
    }
  }
}`

// CloudflareZone Cloudflare 区域
type CloudflareZone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type cloudflareMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type zonesResponse struct {
	Success    bool                `json:"success"`
	Errors     []cloudflareMessage `json:"errors"`
	Result     []CloudflareZone    `json:"result"`
	ResultInfo struct {
		Page       int `json:"page"`
		PerPage    int `json:"per_page"`
		TotalPages int `json:"total_pages"`
		TotalCount int `json:"total_count"`
	} `json:"result_info"`
}

// ZoneAnalytics 单个区域的统计数据, 查询失败时 Error 非空且序列为空
type ZoneAnalytics struct {
	Domain    string                  `json:"domain"`
	ZoneID    string                  `json:"zoneId"`
	Daily     []aggregate.MetricPoint `json:"daily"`
	Hourly    []aggregate.MetricPoint `json:"hourly"`
	Geography []aggregate.CountryStat `json:"geography"`
	Error     string                  `json:"error,omitempty"`
}

// CloudflareAccountResult 单个账号的区域统计
type CloudflareAccountResult struct {
	Name  string          `json:"name"`
	Zones []ZoneAnalytics `json:"zones"`
	Error string          `json:"error,omitempty"`
}

func (c *Client) cloudflare(ctx context.Context, account config.CloudflareAccount, method, path string, payload []byte) ([]byte, error) {
	return c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(method, c.CloudflareURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Auth-Key", account.APIKey)
		req.Header.Set("X-Auth-Email", account.Email)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// ListZones 分页获取账号下的全部区域
func (c *Client) ListZones(ctx context.Context, account config.CloudflareAccount) ([]CloudflareZone, error) {
	var zones []CloudflareZone
	for page := 1; ; page++ {
		body, err := c.cloudflare(ctx, account, http.MethodGet, fmt.Sprintf("/zones?page=%d&per_page=%d", page, zonesPerPage), nil)
		if err != nil {
			return zones, &APIError{Provider: ProviderCloudflare, Action: "ListZones", Err: err}
		}

		var resp zonesResponse
		if err = json.Unmarshal(body, &resp); err != nil {
			return zones, &APIError{Provider: ProviderCloudflare, Action: "ListZones", Err: err}
		}
		if !resp.Success || resp.Result == nil {
			apiErr := &APIError{Provider: ProviderCloudflare, Action: "ListZones", Message: "success=false"}
			if len(resp.Errors) > 0 {
				apiErr.Code = fmt.Sprint(resp.Errors[0].Code)
				apiErr.Message = resp.Errors[0].Message
			}
			if len(zones) > 0 {
				helper.Warn(helper.LogTypeCloudflare, "获取区域列表中断 [账号=%s, 页码=%d]: %v", account.Name, page, apiErr)
				return zones, nil
			}
			return nil, apiErr
		}

		zones = append(zones, resp.Result...)
		if page >= resp.ResultInfo.TotalPages {
			return zones, nil
		}
	}
}

// FilterZones 按域名过滤区域, 忽略大小写
// 未配置域名时取前 20 个
func FilterZones(zones []CloudflareZone, domains []string) []CloudflareZone {
	if len(domains) == 0 {
		if len(zones) > defaultZoneLimit {
			return zones[:defaultZoneLimit]
		}
		return zones
	}

	allow := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		allow[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
	}
	filtered := make([]CloudflareZone, 0, len(domains))
	for _, z := range zones {
		if _, ok := allow[strings.ToLower(z.Name)]; ok {
			filtered = append(filtered, z)
		}
	}
	return filtered
}

// graphQL 执行查询, 返回解析后的 JSON
func (c *Client) graphQL(ctx context.Context, account config.CloudflareAccount, action, query string, variables map[string]any) (any, error) {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, err
	}
	body, err := c.cloudflare(ctx, account, http.MethodPost, "/graphql", payload)
	if err != nil {
		return nil, &APIError{Provider: ProviderCloudflare, Action: action, Err: err}
	}
	doc, err := normalize.Decode(body)
	if err != nil {
		return nil, &APIError{Provider: ProviderCloudflare, Action: action, Err: err}
	}
	if errs := normalize.Slice(doc, "errors"); len(errs) > 0 && normalize.Map(doc, "data") == nil {
		return nil, &APIError{
			Provider: ProviderCloudflare,
			Action:   action,
			Message:  normalize.String(errs[0], "message"),
		}
	}
	return doc, nil
}

// ZoneAnalytics 并行查询区域的天粒度、小时粒度和地区数据
// 任意查询失败或超时都只影响当前区域
func (c *Client) ZoneAnalytics(ctx context.Context, account config.CloudflareAccount, zone CloudflareZone) ZoneAnalytics {
	result := ZoneAnalytics{
		Domain:    zone.Name,
		ZoneID:    zone.ID,
		Daily:     []aggregate.MetricPoint{},
		Hourly:    []aggregate.MetricPoint{},
		Geography: []aggregate.CountryStat{},
	}

	ctx, cancel := context.WithTimeout(ctx, c.GraphQLTimeout)
	defer cancel()

	now := c.clock().UTC()
	dayVars := map[string]any{
		"zone":  zone.ID,
		"since": now.Add(-daysRange).Format(time.DateOnly),
		"until": now.Format(time.DateOnly),
	}
	hourVars := map[string]any{
		"zone":  zone.ID,
		"since": now.Add(-hoursRange).Format(time.RFC3339),
		"until": now.Format(time.RFC3339),
	}

	var days, hours, geo any
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		days, err = c.graphQL(gctx, account, "httpRequests1dGroups", daysQuery, dayVars)
		return err
	})
	g.Go(func() (err error) {
		hours, err = c.graphQL(gctx, account, "httpRequests1hGroups", hoursQuery, hourVars)
		return err
	})
	g.Go(func() (err error) {
		geo, err = c.graphQL(gctx, account, "countryMap", geoQuery, dayVars)
		return err
	})
	if err := g.Wait(); err != nil {
		helper.Warn(helper.LogTypeCloudflare, "获取区域数据失败 [域名=%s]: %v", zone.Name, err)
		result.Error = errorString(err)
		return result
	}

	result.Daily = normalize.CloudflareGroups(normalize.Slice(days, "data.viewer.zones.0.httpRequests1dGroups"))
	result.Hourly = normalize.CloudflareGroups(normalize.Slice(hours, "data.viewer.zones.0.httpRequests1hGroups"))
	result.Geography = aggregate.TopCountries(
		normalize.CloudflareCountries(normalize.Slice(geo, "data.viewer.zones.0.httpRequests1dGroups")),
		topCountryLimit,
	)
	return result
}

// CloudflareAnalytics 依次处理每个账号, 账号内的区域并行查询
// 区域列表获取失败的账号保留错误信息, 没有匹配区域的账号会被跳过
// 所有账号都没有匹配区域且没有失败时返回 ErrNoZones
func (c *Client) CloudflareAnalytics(ctx context.Context, accounts []config.CloudflareAccount) ([]CloudflareAccountResult, error) {
	if len(accounts) == 0 {
		return nil, ErrNotConfigured
	}

	results := make([]CloudflareAccountResult, 0, len(accounts))
	for _, account := range accounts {
		all, err := c.ListZones(ctx, account)
		if err != nil {
			helper.Error(helper.LogTypeCloudflare, "获取区域列表失败 [账号=%s]: %v", account.Name, err)
			results = append(results, CloudflareAccountResult{
				Name:  account.Name,
				Zones: []ZoneAnalytics{},
				Error: errorString(err),
			})
			continue
		}
		zones := FilterZones(all, account.Domains)
		if len(zones) == 0 {
			helper.Debug(helper.LogTypeCloudflare, "没有匹配的区域 [账号=%s, 区域总数=%d]", account.Name, len(all))
			continue
		}

		slots := make([]ZoneAnalytics, len(zones))
		var g errgroup.Group
		for i, zone := range zones {
			g.Go(func() error {
				slots[i] = c.ZoneAnalytics(ctx, account, zone)
				return nil
			})
		}
		_ = g.Wait()

		helper.Info(helper.LogTypeCloudflare, "获取区域数据完成 [账号=%s, 区域数=%d]", account.Name, len(zones))
		results = append(results, CloudflareAccountResult{Name: account.Name, Zones: slots})
	}

	if len(results) == 0 {
		return nil, ErrNoZones
	}
	return results, nil
}

// ZoneSummary 单个区域在统计周期内的汇总
type ZoneSummary struct {
	Account string           `json:"account"`
	Domain  string           `json:"domain"`
	Totals  aggregate.Totals `json:"totals"`
	Error   string           `json:"error,omitempty"`
}

// CloudflareSummary 所有区域在统计周期内的汇总和访问量前 15 的地区
type CloudflareSummary struct {
	Period       aggregate.Period        `json:"period"`
	Totals       aggregate.Totals        `json:"totals"`
	Zones        []ZoneSummary           `json:"zones"`
	TopCountries []aggregate.CountryStat `json:"topCountries"`
}

// Summarize 按周期汇总, 地区数据始终为 45 天
func Summarize(accounts []CloudflareAccountResult, period aggregate.Period) CloudflareSummary {
	summary := CloudflareSummary{
		Period: period,
		Zones:  []ZoneSummary{},
	}
	var totals []aggregate.Totals
	var countries []aggregate.CountryStat
	for _, account := range accounts {
		if account.Error != "" {
			summary.Zones = append(summary.Zones, ZoneSummary{Account: account.Name, Error: account.Error})
		}
		for _, zone := range account.Zones {
			t := aggregate.PeriodTotals(zone.Daily, zone.Hourly, period)
			totals = append(totals, t)
			countries = append(countries, zone.Geography...)
			summary.Zones = append(summary.Zones, ZoneSummary{
				Account: account.Name,
				Domain:  zone.Domain,
				Totals:  t,
				Error:   zone.Error,
			})
		}
	}
	summary.Totals = aggregate.Merge(totals...)
	summary.TopCountries = aggregate.TopCountries(countries, topCountryLimit)
	return summary
}
