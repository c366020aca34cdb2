package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/google/go-cmp/cmp"
)

func TestTrafficAction(t *testing.T) {
	tests := []struct {
		metric string
		want   string
	}{
		{"l7Flow_outFlux_country", "DescribeTopL7AnalysisData"},
		{"l7Flow_request_ua_os", "DescribeTopL7AnalysisData"},
		{"l7Flow_request_statusCode", "DescribeTopL7AnalysisData"},
		{"l7Flow_outFlux_hy", "DescribeTimingL7OriginPullData"},
		{"l7Flow_inBandwidth_hy", "DescribeTimingL7OriginPullData"},
		{"ccRate_interceptNum", "DescribeWebProtectionData"},
		{"l7Flow_flux", "DescribeTimingL7AnalysisData"},
		{"l7Flow_outFlux_unknown", "DescribeTimingL7AnalysisData"},
		{"", "DescribeTimingL7AnalysisData"},
	}
	for _, tt := range tests {
		t.Run(tt.metric, func(t *testing.T) {
			if got := TrafficAction(tt.metric); got != tt.want {
				t.Errorf("TrafficAction(%q) = %s, want %s", tt.metric, got, tt.want)
			}
		})
	}
}

func TestTrafficParams(t *testing.T) {
	c := newTestClient("http://unused")

	tests := []struct {
		name       string
		query      TrafficQuery
		wantAction string
		want       map[string]any
	}{
		{
			name:       "默认参数",
			query:      TrafficQuery{},
			wantAction: "DescribeTimingL7AnalysisData",
			want: map[string]any{
				"StartTime":   "2024-02-29T12:00:00Z",
				"EndTime":     "2024-03-01T12:00:00Z",
				"ZoneIds":     []string{"*"},
				"MetricNames": []string{"l7Flow_flux"},
			},
		},
		{
			name:       "指定站点和粒度",
			query:      TrafficQuery{Metric: "l7Flow_outFlux_hy", ZoneID: "zone-1", StartTime: "a", EndTime: "b", Interval: "day"},
			wantAction: "DescribeTimingL7OriginPullData",
			want: map[string]any{
				"StartTime":   "a",
				"EndTime":     "b",
				"ZoneIds":     []string{"zone-1"},
				"MetricNames": []string{"l7Flow_outFlux_hy"},
				"Interval":    "day",
			},
		},
		{
			name:       "auto 不传粒度",
			query:      TrafficQuery{Metric: "ccAcl_interceptNum", Interval: "auto", StartTime: "a", EndTime: "b"},
			wantAction: "DescribeWebProtectionData",
			want: map[string]any{
				"StartTime":   "a",
				"EndTime":     "b",
				"ZoneIds":     []string{"*"},
				"MetricNames": []string{"ccAcl_interceptNum"},
			},
		},
		{
			name:       "排行类指标",
			query:      TrafficQuery{Metric: "l7Flow_request_url", Interval: "hour", StartTime: "a", EndTime: "b"},
			wantAction: "DescribeTopL7AnalysisData",
			want: map[string]any{
				"StartTime":  "a",
				"EndTime":    "b",
				"ZoneIds":    []string{"*"},
				"MetricName": "l7Flow_request_url",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, params := c.TrafficParams(tt.query)
			if action != tt.wantAction {
				t.Errorf("TrafficParams() action = %s, want %s", action, tt.wantAction)
			}
			if diff := cmp.Diff(tt.want, params); diff != "" {
				t.Errorf("TrafficParams() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// edgeOneServer 按 X-TC-Action 返回固定数据, 并检查签名头
func edgeOneServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "TC3-HMAC-SHA256 Credential=sid/") {
			t.Errorf("Authorization = %q", auth)
		}
		if r.Header.Get("X-TC-Version") != "2022-09-01" {
			t.Errorf("X-TC-Version = %q", r.Header.Get("X-TC-Version"))
		}
		body, _ := io.ReadAll(r.Body)
		action := r.Header.Get("X-TC-Action")
		if action == "DescribeTimingL7AnalysisData" {
			var params struct {
				MetricNames []string
			}
			json.Unmarshal(body, &params)
			action += ":" + params.MetricNames[0]
		}
		resp, ok := responses[action]
		if !ok {
			resp = `{"Response":{"Error":{"Code":"InvalidAction","Message":"unknown ` + action + `"},"RequestId":"r"}}`
		}
		w.Write([]byte(resp))
	}))
}

var testEOAccount = config.EdgeOneAccount{Name: "EdgeOne", SecretID: "sid", SecretKey: "skey"}

func TestEdgeOneZones(t *testing.T) {
	srv := edgeOneServer(t, map[string]string{
		"DescribeZones": `{"Response":{"TotalCount":3,"Zones":[
			{"ZoneId":"zone-1","ZoneName":"a.com","Status":"active","ActiveStatus":"active"},
			{"ZoneId":"zone-2","ZoneName":"B.com","Status":"paused"},
			{"ZoneId":"zone-3","ZoneName":"c.com","Status":"active"}
		],"RequestId":"r1"}}`,
		"DescribeTimingL7AnalysisData:l7Flow_outFlux": `{"Response":{"Data":[{"TypeValue":[{"MetricName":"l7Flow_outFlux","Detail":[
			{"Timestamp":1709200000,"Value":1024},{"Timestamp":1709203600,"Value":2048}
		]}]}],"RequestId":"r2"}}`,
		"DescribeTimingL7AnalysisData:l7Flow_request": `{"Response":{"Data":[{"TypeValue":[{"MetricName":"l7Flow_request","Detail":[
			{"Timestamp":1709200000,"Value":7}
		]}]}],"RequestId":"r3"}}`,
	})
	defer srv.Close()

	account := testEOAccount
	account.Zones = []string{"a.com", "b.com"}
	report, err := newTestClient(srv.URL).EdgeOneZones(context.Background(), []config.EdgeOneAccount{account})
	if err != nil {
		t.Fatalf("EdgeOneZones() error = %v", err)
	}

	if len(report.Zones) != 2 || len(report.Accounts) != 1 {
		t.Fatalf("EdgeOneZones() = %+v", report)
	}
	if report.Zones[1]["displayStatus"] != "paused" {
		t.Errorf("displayStatus = %v, want paused", report.Zones[1]["displayStatus"])
	}
	want := Overview{TotalFlux: 3072, TotalRequests: 7}
	if report.Overview != want || report.Accounts[0].Overview != want {
		t.Errorf("Overview = %+v, want %+v", report.Overview, want)
	}
}

func TestEdgeOneZonesAPIError(t *testing.T) {
	srv := edgeOneServer(t, map[string]string{})
	defer srv.Close()

	report, err := newTestClient(srv.URL).EdgeOneZones(context.Background(), []config.EdgeOneAccount{testEOAccount})
	if err != nil {
		t.Fatalf("EdgeOneZones() error = %v", err)
	}
	if len(report.Accounts) != 1 || !strings.Contains(report.Accounts[0].Error, "InvalidAction") {
		t.Errorf("EdgeOneZones() accounts = %+v, want inline error", report.Accounts)
	}
	if report.Zones == nil {
		t.Error("Zones is nil, want empty")
	}
}

func TestTraffic(t *testing.T) {
	srv := edgeOneServer(t, map[string]string{
		"DescribeTopL7AnalysisData": `{"Response":{"Data":[{"TypeKey":"zone-1","DetailData":[
			{"Key":"CN","Value":30},{"Key":"US","Value":50}
		]}],"RequestId":"r"}}`,
		"DescribeTimingL7AnalysisData:l7Flow_flux": `{"Response":{"Data":[{"TypeValue":[{"MetricName":"l7Flow_flux","Detail":[
			{"Timestamp":1709200000,"Value":5}
		]}]}],"RequestId":"r"}}`,
	})
	defer srv.Close()
	c := newTestClient(srv.URL)
	accounts := []config.EdgeOneAccount{testEOAccount}

	top, err := c.Traffic(context.Background(), accounts, TrafficQuery{Metric: "l7Flow_outFlux_country"})
	if err != nil {
		t.Fatalf("Traffic(top) error = %v", err)
	}
	if top.Action != "DescribeTopL7AnalysisData" || len(top.Top) != 2 || top.Top[0].Key != "US" || top.Series != nil {
		t.Errorf("Traffic(top) = %+v", top)
	}

	timing, err := c.Traffic(context.Background(), accounts, TrafficQuery{})
	if err != nil {
		t.Fatalf("Traffic(timing) error = %v", err)
	}
	if timing.Metric != "l7Flow_flux" || len(timing.Series) != 1 || timing.Series[0].Sum != 5 {
		t.Errorf("Traffic(timing) = %+v", timing)
	}

	_, err = c.Traffic(context.Background(), accounts, TrafficQuery{Metric: "ccRate_interceptNum"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "InvalidAction" {
		t.Errorf("Traffic(unknown) error = %v, want InvalidAction", err)
	}

	if _, err = c.Traffic(context.Background(), nil, TrafficQuery{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Traffic(no account) error = %v, want ErrNotConfigured", err)
	}
}
