package normalize

import (
	"sort"
	"time"

	"github.com/cxbdasheng/edgeboard/aggregate"
)

// MetricSeries 单个指标的时间序列, 多个站点的同一时刻会合并
type MetricSeries struct {
	Metric string        `json:"metric"`
	Sum    float64       `json:"sum"`
	Max    float64       `json:"max"`
	Points []SeriesPoint `json:"points"`
}

var timingRecordPaths = []string{
	"Data", "TimingDataRecords",
	"Response.Data", "Response.TimingDataRecords",
}

// pointTime EdgeOne 的时间戳为秒, 统一转为 RFC3339
func pointTime(p any) string {
	if ts := Int64(p, "Timestamp", "TimeStamp"); ts > 0 {
		return time.Unix(ts, 0).UTC().Format(time.RFC3339)
	}
	return String(p, "Timestamp", "TimeStamp", "Time")
}

// TimingSeries 规范化时序类接口的返回
// 兼容 Data[].TypeValue[].Detail[] 与 Data[].Detail[] 两种结构
func TimingSeries(doc any, fallbackMetric string) []MetricSeries {
	type acc struct {
		values map[string]float64
	}
	byMetric := make(map[string]*acc)
	var order []string

	for _, record := range Slice(doc, timingRecordPaths...) {
		typeValues := Slice(record, "TypeValue")
		if typeValues == nil {
			typeValues = []any{record}
		}
		for _, tv := range typeValues {
			metric := String(tv, "MetricName")
			if metric == "" {
				metric = fallbackMetric
			}
			a, ok := byMetric[metric]
			if !ok {
				a = &acc{values: make(map[string]float64)}
				byMetric[metric] = a
				order = append(order, metric)
			}
			for _, p := range Slice(tv, "Detail", "DetailData") {
				a.values[pointTime(p)] += Float64(p, "Value")
			}
		}
	}

	series := make([]MetricSeries, 0, len(order))
	for _, metric := range order {
		s := MetricSeries{Metric: metric, Points: []SeriesPoint{}}
		for t, v := range byMetric[metric].values {
			s.Points = append(s.Points, SeriesPoint{Time: t, Value: v})
			s.Sum += v
			if v > s.Max {
				s.Max = v
			}
		}
		sort.Slice(s.Points, func(i, j int) bool {
			return s.Points[i].Time < s.Points[j].Time
		})
		series = append(series, s)
	}
	return series
}

// TimingTotal 所有指标所有数据点之和
func TimingTotal(doc any) float64 {
	var total float64
	for _, s := range TimingSeries(doc, "") {
		total += s.Sum
	}
	return total
}

// TopData 规范化 DescribeTopL7AnalysisData 的返回, 多个站点按 Key 合并
func TopData(doc any, n int) []aggregate.TopNEntry {
	var entries []aggregate.TopNEntry
	for _, record := range Slice(doc, "Data", "Response.Data") {
		for _, d := range Slice(record, "DetailData", "Detail") {
			entries = append(entries, aggregate.TopNEntry{
				Key:   String(d, "Key", "Name"),
				Value: Count(d, "Value"),
			})
		}
	}
	return aggregate.TopN(entries, n)
}

// EdgeOneZone EdgeOne 站点, 保留原始字段并补充 displayStatus
type EdgeOneZone map[string]any

// Zone ActiveStatus 才是真正的启用状态, 缺失时使用 Status
func Zone(raw any) EdgeOneZone {
	zone := EdgeOneZone{}
	if m, ok := raw.(map[string]any); ok {
		for k, v := range m {
			zone[k] = v
		}
	}
	zone["ZoneId"] = String(raw, "ZoneId")
	zone["ZoneName"] = String(raw, "ZoneName")
	zone["Status"] = String(raw, "Status")
	zone["displayStatus"] = String(raw, "ActiveStatus", "Status")
	return zone
}

// Name 站点名
func (z EdgeOneZone) Name() string {
	return toString(z["ZoneName"])
}

// Zones 规范化 DescribeZones 的返回
func Zones(doc any) []EdgeOneZone {
	raw := Slice(doc, "Zones", "Response.Zones")
	zones := make([]EdgeOneZone, 0, len(raw))
	for _, r := range raw {
		zones = append(zones, Zone(r))
	}
	return zones
}
