package normalize

import "github.com/cxbdasheng/edgeboard/aggregate"

// CloudflareGroups 将 httpRequests1dGroups / httpRequests1hGroups 转为数据点
func CloudflareGroups(groups []any) []aggregate.MetricPoint {
	points := make([]aggregate.MetricPoint, 0, len(groups))
	for _, g := range groups {
		points = append(points, aggregate.MetricPoint{
			Time:           String(g, "dimensions.date", "dimensions.datetime"),
			Requests:       Count(g, "sum.requests"),
			Bytes:          Count(g, "sum.bytes"),
			Threats:        Count(g, "sum.threats"),
			CachedRequests: Count(g, "sum.cachedRequests"),
			CachedBytes:    Count(g, "sum.cachedBytes"),
		})
	}
	return points
}

// CloudflareCountries 展开每天的 countryMap
func CloudflareCountries(groups []any) []aggregate.CountryStat {
	var rows []aggregate.CountryStat
	for _, g := range groups {
		for _, c := range Slice(g, "sum.countryMap") {
			rows = append(rows, aggregate.CountryStat{
				Country:  String(c, "clientCountryName"),
				Requests: Count(c, "requests"),
				Bytes:    Count(c, "bytes"),
				Threats:  Count(c, "threats"),
			})
		}
	}
	return rows
}

// WorkerRow workersInvocationsAdaptive 的一行
type WorkerRow struct {
	ScriptName  string
	Requests    int64
	Errors      int64
	Subrequests int64
	CPUTimeP50  float64
	CPUTimeP99  float64
}

// WorkerRows 规范化 Workers 调用数据, 缺少脚本名时为 unknown
func WorkerRows(rows []any) []WorkerRow {
	result := make([]WorkerRow, 0, len(rows))
	for _, r := range rows {
		name := String(r, "dimensions.scriptName")
		if name == "" {
			name = "unknown"
		}
		result = append(result, WorkerRow{
			ScriptName:  name,
			Requests:    Count(r, "sum.requests"),
			Errors:      Count(r, "sum.errors"),
			Subrequests: Count(r, "sum.subrequests"),
			CPUTimeP50:  Float64(r, "quantiles.cpuTimeP50"),
			CPUTimeP99:  Float64(r, "quantiles.cpuTimeP99"),
		})
	}
	return result
}
