package normalize

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSites(t *testing.T) {
	doc := mustDecode(t, `{
		"Sites": {"Site": [
			{"SiteId": 1001, "SiteName": "a.com", "Status": "active", "NameServerList": "ns1.example.com,ns2.example.com"},
			{"siteId": "1002", "siteName": "b.com", "ratePlanType": "basic", "gmtCreate": "2024-01-01"},
			{"Id": "1003", "Name": "c.com"}
		]},
		"TotalCount": 3
	}`)

	sites := Sites(doc)
	if len(sites) != 3 {
		t.Fatalf("Sites() len = %d, want 3", len(sites))
	}

	want := []struct {
		id, name, plan, created string
	}{
		{"1001", "a.com", "", ""},
		{"1002", "b.com", "basic", "2024-01-01"},
		{"1003", "c.com", "", ""},
	}
	for i, w := range want {
		s := sites[i]
		if s.SiteId != w.id || s.SiteName != w.name || s.PlanType != w.plan || s.CreateTime != w.created {
			t.Errorf("Sites()[%d] = %+v, want %+v", i, s, w)
		}
		if s.TimeSeriesRequests == nil || s.TimeSeriesTraffic == nil || s.NameServerList == nil {
			t.Errorf("Sites()[%d] has nil slices", i)
		}
	}
	if diff := cmp.Diff([]string{"ns1.example.com", "ns2.example.com"}, sites[0].NameServerList); diff != "" {
		t.Errorf("NameServerList mismatch (-want +got):\n%s", diff)
	}
}

func TestSitesEmpty(t *testing.T) {
	if got := Sites(mustDecode(t, `{"RequestId":"x"}`)); got == nil || len(got) != 0 {
		t.Errorf("Sites() = %v, want empty non-nil", got)
	}
}

func TestQuotas(t *testing.T) {
	doc := mustDecode(t, `{"Quotas":[
		{"QuotaName":"customHttpCert","Total":10,"Used":2},
		{"quotaName":"routines","quota":"5","usage":-1}
	]}`)
	want := []Quota{
		{QuotaName: "customHttpCert", Total: 10, Used: 2},
		{QuotaName: "routines", Total: 5, Used: 0},
	}
	if diff := cmp.Diff(want, Quotas(doc)); diff != "" {
		t.Errorf("Quotas() mismatch (-want +got):\n%s", diff)
	}
}

func TestRoutines(t *testing.T) {
	doc := mustDecode(t, `{"Routines":[
		{"RoutineName":"hello","Description":"ZGVtbw==","CreateTime":"2024-01-01"},
		{"Name":"world"}
	],"TotalCount":7}`)

	routines, total := Routines(doc)
	if total != 7 {
		t.Errorf("Routines() total = %d, want 7", total)
	}
	if len(routines) != 2 || routines[0].Name != "hello" || routines[1].Name != "world" {
		t.Errorf("Routines() = %+v", routines)
	}

	_, total = Routines(mustDecode(t, `{"Routines":[{"Name":"a"}]}`))
	if total != 1 {
		t.Errorf("Routines() total = %d, want 1", total)
	}
}

func TestMergeRoutineDetail(t *testing.T) {
	detail := mustDecode(t, `{
		"Description": "aGVsbG8gd29ybGQ=",
		"CreateTime": "2024-02-01T00:00:00Z",
		"DefaultRelatedRecord": "hello.example.com",
		"Envs": [
			{"Env": "staging", "CodeDeploy": {"CodeVersions": [{"CodeVersion": "v1"}]}},
			{"Env": "production", "CodeDeploy": {"CodeVersions": [{"CodeVersion": "v3"}, {"CodeVersion": "v2"}]}}
		]
	}`)

	got := MergeRoutineDetail(Routine{Name: "hello", Status: "unknown"}, detail)
	want := Routine{
		Name:          "hello",
		Description:   "hello world",
		CodeVersion:   "v3",
		Status:        "deployed",
		CreateTime:    "2024-02-01T00:00:00Z",
		Env:           "production",
		RelatedRecord: "hello.example.com",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeRoutineDetail() mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeRoutineDetailWithoutDeploy(t *testing.T) {
	detail := mustDecode(t, `{"Description":"not base64!","Envs":[{"Env":"staging"}]}`)
	got := MergeRoutineDetail(Routine{Name: "x", Status: "init"}, detail)
	if got.Status != "init" || got.Env != "staging" || got.Description != "not base64!" {
		t.Errorf("MergeRoutineDetail() = %+v", got)
	}
}

func TestInstanceID(t *testing.T) {
	tests := []struct {
		name string
		json string
		want string
	}{
		{"Instances 数组", `{"InstanceInfo":[],"Instances":[{"InstanceId":"esa-1"},{"InstanceId":"esa-2"}]}`, "esa-1"},
		{"嵌套结构", `{"Instances":{"Instances":[{"instanceId":"esa-3"}]}}`, "esa-3"},
		{"没有实例", `{"Instances":[]}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InstanceID(mustDecode(t, tt.json)); got != tt.want {
				t.Errorf("InstanceID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplySiteSeries(t *testing.T) {
	doc := mustDecode(t, `{
		"SummarizedData": [
			{"FieldName": "Traffic", "Value": 2048},
			{"FieldName": "Requests", "Value": 30}
		],
		"Data": [
			{"FieldName": "Requests", "DetailData": [
				{"TimeStamp": "2024-01-01T00:00:00Z", "Value": 10},
				{"TimeStamp": "2024-01-01T01:00:00Z", "Value": 20}
			]},
			{"FieldName": "Traffic", "DetailData": [
				{"TimeStamp": "2024-01-01T00:00:00Z", "Value": 2048}
			]}
		]
	}`)

	site := ESASite{SiteName: "a.com", Requests: 99}
	ApplySiteSeries(&site, doc)

	if site.Requests != 30 || site.Bytes != 2048 {
		t.Errorf("ApplySiteSeries() totals = %d/%d, want 30/2048", site.Requests, site.Bytes)
	}
	wantRequests := []SeriesPoint{
		{Time: "2024-01-01T00:00:00Z", Value: 10},
		{Time: "2024-01-01T01:00:00Z", Value: 20},
	}
	if diff := cmp.Diff(wantRequests, site.TimeSeriesRequests); diff != "" {
		t.Errorf("TimeSeriesRequests mismatch (-want +got):\n%s", diff)
	}
	if len(site.TimeSeriesTraffic) != 1 {
		t.Errorf("TimeSeriesTraffic len = %d, want 1", len(site.TimeSeriesTraffic))
	}
}
