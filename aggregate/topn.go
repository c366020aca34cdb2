package aggregate

import "sort"

// TopNEntry 排行榜条目
type TopNEntry struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// TopN 按 Key 累加后降序排序并截取前 n 个, n <= 0 时不截取
// 值相同时按 Key 升序, 保证结果稳定
func TopN(entries []TopNEntry, n int) []TopNEntry {
	sums := make(map[string]int64, len(entries))
	for _, e := range entries {
		sums[e.Key] += e.Value
	}

	result := make([]TopNEntry, 0, len(sums))
	for k, v := range sums {
		result = append(result, TopNEntry{Key: k, Value: v})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Value != result[j].Value {
			return result[i].Value > result[j].Value
		}
		return result[i].Key < result[j].Key
	})

	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result
}

// CountryStat 国家/地区维度的统计
type CountryStat struct {
	Country  string `json:"country"`
	Requests int64  `json:"requests"`
	Bytes    int64  `json:"bytes"`
	Threats  int64  `json:"threats"`
}

// TopCountries 跨天累加各国家数据, 忽略空值和 Unknown, 按请求数降序取前 n 个
func TopCountries(rows []CountryStat, n int) []CountryStat {
	sums := make(map[string]*CountryStat)
	var order []string
	for _, r := range rows {
		if r.Country == "" || r.Country == "Unknown" {
			continue
		}
		s, ok := sums[r.Country]
		if !ok {
			s = &CountryStat{Country: r.Country}
			sums[r.Country] = s
			order = append(order, r.Country)
		}
		s.Requests += r.Requests
		s.Bytes += r.Bytes
		s.Threats += r.Threats
	}

	result := make([]CountryStat, 0, len(order))
	for _, c := range order {
		result = append(result, *sums[c])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Requests > result[j].Requests
	})

	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result
}
