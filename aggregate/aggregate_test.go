package aggregate

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// dailySeries 生成 n 天的序列, 第 i 天请求数为 i+1, 乱序返回
func dailySeries(n int) []MetricPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]MetricPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		points = append(points, MetricPoint{
			Time:        start.AddDate(0, 0, i).Format(time.DateOnly),
			Requests:    int64(i + 1),
			Bytes:       int64(i+1) * 100,
			CachedBytes: int64(i+1) * 50,
		})
	}
	return points
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in     string
		want   Period
		hourly bool
		window int
	}{
		{"1day", Period1Day, true, 24},
		{"3days", Period3Days, true, 72},
		{"7days", Period7Days, false, 7},
		{"30days", Period30Days, false, 30},
		{"", Period1Day, true, 24},
		{"90days", Period1Day, true, 24},
	}
	for _, tt := range tests {
		p := ParsePeriod(tt.in)
		if p != tt.want || p.Hourly() != tt.hourly || p.WindowSize() != tt.window {
			t.Errorf("ParsePeriod(%q) = %v hourly=%v window=%d", tt.in, p, p.Hourly(), p.WindowSize())
		}
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		name      string
		points    []MetricPoint
		period    Period
		wantLen   int
		wantFirst string
		wantSum   int64
	}{
		{
			name:      "30 天数据取 7 天",
			points:    dailySeries(30),
			period:    Period7Days,
			wantLen:   7,
			wantFirst: "2024-01-24",
			wantSum:   24 + 25 + 26 + 27 + 28 + 29 + 30,
		},
		{
			name:      "窗口大于数据量",
			points:    dailySeries(5),
			period:    Period30Days,
			wantLen:   5,
			wantFirst: "2024-01-01",
			wantSum:   1 + 2 + 3 + 4 + 5,
		},
		{
			name:    "空序列",
			points:  nil,
			period:  Period7Days,
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Window(tt.points, tt.period)
			if len(got) != tt.wantLen {
				t.Fatalf("Window() len = %d, want %d", len(got), tt.wantLen)
			}
			if tt.wantLen > 0 && got[0].Time != tt.wantFirst {
				t.Errorf("Window()[0].Time = %v, want %v", got[0].Time, tt.wantFirst)
			}
			if sum := Summarize(got).Requests; sum != tt.wantSum {
				t.Errorf("Summarize().Requests = %d, want %d", sum, tt.wantSum)
			}
		})
	}
}

func TestWindowDoesNotMutateInput(t *testing.T) {
	points := dailySeries(3)
	first := points[0].Time
	Window(points, Period7Days)
	if points[0].Time != first {
		t.Error("Window() 修改了输入切片")
	}
}

func TestSortByTimeHourly(t *testing.T) {
	points := []MetricPoint{
		{Time: "2024-01-01T02:00:00Z"},
		{Time: "2024-01-01T00:00:00Z"},
		{Time: "2024-01-01T01:00:00+00:00"},
	}
	var got []string
	for _, p := range SortByTime(points) {
		got = append(got, p.Time)
	}
	want := []string{"2024-01-01T00:00:00Z", "2024-01-01T01:00:00+00:00", "2024-01-01T02:00:00Z"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortByTime() mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	points := []MetricPoint{
		{Requests: 10, Bytes: 1000, Threats: 1, CachedRequests: 4, CachedBytes: 250},
		{Requests: 30, Bytes: 3000, Threats: 2, CachedRequests: 6, CachedBytes: 750},
	}
	want := Totals{
		Requests:       40,
		Bytes:          4000,
		Threats:        3,
		CachedRequests: 10,
		CachedBytes:    1000,
		CacheHitRate:   25,
		RequestHitRate: 25,
	}
	if diff := cmp.Diff(want, Summarize(points)); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
}

func TestZeroBytesHitRate(t *testing.T) {
	got := Summarize([]MetricPoint{{Requests: 5, CachedBytes: 10}})
	if got.CacheHitRate != 0 || math.IsNaN(got.CacheHitRate) || math.IsInf(got.CacheHitRate, 0) {
		t.Errorf("CacheHitRate = %v, want 0", got.CacheHitRate)
	}
	if empty := Summarize(nil); empty.CacheHitRate != 0 || empty.RequestHitRate != 0 {
		t.Errorf("空序列命中率 = %+v", empty)
	}
}

func TestTotalsAdd(t *testing.T) {
	a := Summarize([]MetricPoint{{Bytes: 100, CachedBytes: 100}})
	b := Summarize([]MetricPoint{{Bytes: 300}})
	got := a.Add(b)
	if got.Bytes != 400 || got.CacheHitRate != 25 {
		t.Errorf("Add() = %+v", got)
	}
}

func TestPeriodTotals(t *testing.T) {
	daily := dailySeries(30)
	var hourly []MetricPoint
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 72; i++ {
		hourly = append(hourly, MetricPoint{Time: start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339), Requests: 1})
	}

	tests := []struct {
		period Period
		want   int64
	}{
		{Period1Day, 24},
		{Period3Days, 72},
		{Period7Days, 189},
		{Period30Days, 465},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.period), func(t *testing.T) {
			if got := PeriodTotals(daily, hourly, tt.period).Requests; got != tt.want {
				t.Errorf("PeriodTotals(%s).Requests = %d, want %d", tt.period, got, tt.want)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	got := Merge(
		Totals{Requests: 10, Bytes: 100, CachedBytes: 40},
		Totals{Requests: 30, Bytes: 300, CachedBytes: 60, CachedRequests: 20},
	)
	want := Totals{
		Requests:       40,
		Bytes:          400,
		CachedBytes:    100,
		CachedRequests: 20,
		CacheHitRate:   25,
		RequestHitRate: 50,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	if got := Merge(); got != (Totals{}) {
		t.Errorf("Merge() = %+v, want zero", got)
	}
}
