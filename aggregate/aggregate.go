package aggregate

import (
	"sort"
	"time"
)

// MetricPoint 统一的时间序列数据点, 各厂商数据都转换为该结构
type MetricPoint struct {
	// 日期 2006-01-02 或 RFC3339 时间
	Time           string `json:"time"`
	Requests       int64  `json:"requests"`
	Bytes          int64  `json:"bytes"`
	Threats        int64  `json:"threats"`
	CachedRequests int64  `json:"cachedRequests"`
	CachedBytes    int64  `json:"cachedBytes"`
}

// Totals 一个时间窗口内的汇总
type Totals struct {
	Requests       int64   `json:"requests"`
	Bytes          int64   `json:"bytes"`
	Threats        int64   `json:"threats"`
	CachedRequests int64   `json:"cachedRequests"`
	CachedBytes    int64   `json:"cachedBytes"`
	CacheHitRate   float64 `json:"cacheHitRate"`
	RequestHitRate float64 `json:"requestHitRate"`
}

// Period 统计周期
type Period string

const (
	Period1Day   Period = "1day"
	Period3Days  Period = "3days"
	Period7Days  Period = "7days"
	Period30Days Period = "30days"
)

var windowSizes = map[Period]int{
	Period1Day:   24,
	Period3Days:  72,
	Period7Days:  7,
	Period30Days: 30,
}

// ParsePeriod 无法识别的周期按 1day 处理
func ParsePeriod(s string) Period {
	p := Period(s)
	if _, ok := windowSizes[p]; ok {
		return p
	}
	return Period1Day
}

// Hourly 1 天和 3 天使用小时粒度, 其余使用天粒度
func (p Period) Hourly() bool {
	return p == Period1Day || p == Period3Days
}

// WindowSize 窗口内的数据点个数
func (p Period) WindowSize() int {
	if n, ok := windowSizes[p]; ok {
		return n
	}
	return windowSizes[Period1Day]
}

// SelectSeries 根据周期选择小时或天粒度的序列
func SelectSeries(daily, hourly []MetricPoint, p Period) []MetricPoint {
	if p.Hourly() {
		return hourly
	}
	return daily
}

// parseTime 解析数据点时间, 无法解析时返回零值
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, time.DateOnly, time.DateTime} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SortByTime 按时间升序排序, 返回新切片
func SortByTime(points []MetricPoint) []MetricPoint {
	sorted := make([]MetricPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := parseTime(sorted[i].Time), parseTime(sorted[j].Time)
		if ti.Equal(tj) {
			return sorted[i].Time < sorted[j].Time
		}
		return ti.Before(tj)
	})
	return sorted
}

// Window 按时间升序后取最后 min(len, windowSize) 个数据点
func Window(points []MetricPoint, p Period) []MetricPoint {
	sorted := SortByTime(points)
	n := p.WindowSize()
	if len(sorted) <= n {
		return sorted
	}
	return sorted[len(sorted)-n:]
}

// Summarize 汇总数据点
func Summarize(points []MetricPoint) Totals {
	var t Totals
	for _, p := range points {
		t.Requests += p.Requests
		t.Bytes += p.Bytes
		t.Threats += p.Threats
		t.CachedRequests += p.CachedRequests
		t.CachedBytes += p.CachedBytes
	}
	return t.withRates()
}

// Add 合并两个汇总并重新计算命中率
func (t Totals) Add(o Totals) Totals {
	t.Requests += o.Requests
	t.Bytes += o.Bytes
	t.Threats += o.Threats
	t.CachedRequests += o.CachedRequests
	t.CachedBytes += o.CachedBytes
	return t.withRates()
}

func (t Totals) withRates() Totals {
	t.CacheHitRate = Rate(t.CachedBytes, t.Bytes)
	t.RequestHitRate = Rate(t.CachedRequests, t.Requests)
	return t
}

// Rate part/total*100, total 为 0 时返回 0
func Rate(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// PeriodTotals 按周期选择序列、截取窗口并汇总
func PeriodTotals(daily, hourly []MetricPoint, p Period) Totals {
	return Summarize(Window(SelectSeries(daily, hourly, p), p))
}

// Merge 合并多个区域或账号的汇总
func Merge(totals ...Totals) Totals {
	var sum Totals
	for _, t := range totals {
		sum = sum.Add(t)
	}
	return sum.withRates()
}
