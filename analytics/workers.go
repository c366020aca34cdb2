package analytics

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/cxbdasheng/edgeboard/normalize"
	"golang.org/x/sync/errgroup"
)

const workersQuery = `query GetWorkersAnalytics($accountTag: String!, $datetimeStart: Time!, $datetimeEnd: Time!) {
  viewer {
    accounts(filter: {accountTag: $accountTag}) {
      workersInvocationsAdaptive(limit: 1000, filter: {datetime_geq: $datetimeStart, datetime_leq: $datetimeEnd}) {
        sum { subrequests requests errors }
        quantiles { cpuTimeP50 cpuTimeP99 }
        dimensions { scriptName }
      }
    }
  }
}`

// WorkerStats 单个 Worker 脚本近 24 小时的调用统计
type WorkerStats struct {
	ScriptName  string  `json:"scriptName"`
	Requests    int64   `json:"requests"`
	Errors      int64   `json:"errors"`
	Subrequests int64   `json:"subrequests"`
	CPUTimeP50  float64 `json:"cpuTimeP50"`
	CPUTimeP99  float64 `json:"cpuTimeP99"`
}

type WorkersAccount struct {
	Account       string        `json:"account"`
	Workers       []WorkerStats `json:"workers"`
	TotalRequests int64         `json:"totalRequests"`
	TotalErrors   int64         `json:"totalErrors"`
	Error         string        `json:"error,omitempty"`
}

type WorkersReport struct {
	Accounts      []WorkersAccount `json:"accounts"`
	TotalRequests int64            `json:"totalRequests"`
	TotalErrors   int64            `json:"totalErrors"`
}

// AccountID 配置了 AccountID 时直接使用, 否则取账号列表中的第一个
func (c *Client) AccountID(ctx context.Context, account config.CloudflareAccount) (string, error) {
	if account.AccountID != "" {
		return account.AccountID, nil
	}
	body, err := c.cloudflare(ctx, account, http.MethodGet, "/accounts?page=1&per_page=1", nil)
	if err != nil {
		return "", &APIError{Provider: ProviderCloudflare, Action: "ListAccounts", Err: err}
	}
	var resp struct {
		Result []struct {
			ID string `json:"id"`
		} `json:"result"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return "", &APIError{Provider: ProviderCloudflare, Action: "ListAccounts", Err: err}
	}
	if len(resp.Result) == 0 {
		return "", nil
	}
	return resp.Result[0].ID, nil
}

// AggregateWorkers 按脚本名合并, 请求数等累加, CPU 时间取最大值, 按请求数降序
func AggregateWorkers(rows []normalize.WorkerRow) []WorkerStats {
	byName := make(map[string]*WorkerStats)
	var order []string
	for _, r := range rows {
		s, ok := byName[r.ScriptName]
		if !ok {
			s = &WorkerStats{ScriptName: r.ScriptName}
			byName[r.ScriptName] = s
			order = append(order, r.ScriptName)
		}
		s.Requests += r.Requests
		s.Errors += r.Errors
		s.Subrequests += r.Subrequests
		s.CPUTimeP50 = math.Max(s.CPUTimeP50, r.CPUTimeP50)
		s.CPUTimeP99 = math.Max(s.CPUTimeP99, r.CPUTimeP99)
	}

	stats := make([]WorkerStats, 0, len(order))
	for _, name := range order {
		stats = append(stats, *byName[name])
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Requests > stats[j].Requests
	})
	return stats
}

// accountWorkers 先确定账号 ID 再查询调用数据, 账号下没有可用的账号 ID 时返回 false
func (c *Client) accountWorkers(ctx context.Context, account config.CloudflareAccount, start, end time.Time) (WorkersAccount, bool) {
	result := WorkersAccount{Account: account.Name, Workers: []WorkerStats{}}

	accountID, err := c.AccountID(ctx, account)
	if err != nil {
		helper.Warn(helper.LogTypeCloudflare, "获取账号 ID 失败 [账号=%s]: %v", account.Name, err)
		result.Error = errorString(err)
		return result, true
	}
	if accountID == "" {
		return result, false
	}

	doc, err := c.graphQL(ctx, account, "workersInvocationsAdaptive", workersQuery, map[string]any{
		"accountTag":    accountID,
		"datetimeStart": start.Format(time.RFC3339),
		"datetimeEnd":   end.Format(time.RFC3339),
	})
	if err != nil {
		helper.Warn(helper.LogTypeCloudflare, "获取 Workers 数据失败 [账号=%s]: %v", account.Name, err)
		result.Error = errorString(err)
		return result, true
	}

	result.Workers = AggregateWorkers(normalize.WorkerRows(
		normalize.Slice(doc, "data.viewer.accounts.0.workersInvocationsAdaptive"),
	))
	for _, w := range result.Workers {
		result.TotalRequests += w.Requests
		result.TotalErrors += w.Errors
	}
	return result, true
}

// Workers 近 24 小时各账号的 Workers 调用统计, 账号之间并行
func (c *Client) Workers(ctx context.Context, accounts []config.CloudflareAccount) (WorkersReport, error) {
	report := WorkersReport{Accounts: []WorkersAccount{}}
	if len(accounts) == 0 {
		return report, ErrNotConfigured
	}

	end := c.clock().UTC()
	start := end.Add(-24 * time.Hour)

	slots := make([]WorkersAccount, len(accounts))
	found := make([]bool, len(accounts))
	var g errgroup.Group
	for i, account := range accounts {
		g.Go(func() error {
			slots[i], found[i] = c.accountWorkers(ctx, account, start, end)
			return nil
		})
	}
	_ = g.Wait()

	for i, a := range slots {
		if !found[i] {
			continue
		}
		report.Accounts = append(report.Accounts, a)
		report.TotalRequests += a.TotalRequests
		report.TotalErrors += a.TotalErrors
	}
	return report, nil
}
