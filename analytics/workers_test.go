package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/normalize"
	"github.com/google/go-cmp/cmp"
)

func TestAggregateWorkers(t *testing.T) {
	rows := []normalize.WorkerRow{
		{ScriptName: "api", Requests: 10, Errors: 1, Subrequests: 2, CPUTimeP50: 1.5, CPUTimeP99: 8},
		{ScriptName: "img", Requests: 50},
		{ScriptName: "api", Requests: 45, Errors: 2, Subrequests: 3, CPUTimeP50: 1.0, CPUTimeP99: 12},
	}
	want := []WorkerStats{
		{ScriptName: "api", Requests: 55, Errors: 3, Subrequests: 5, CPUTimeP50: 1.5, CPUTimeP99: 12},
		{ScriptName: "img", Requests: 50},
	}
	if diff := cmp.Diff(want, AggregateWorkers(rows)); diff != "" {
		t.Errorf("AggregateWorkers() mismatch (-want +got):\n%s", diff)
	}
	if got := AggregateWorkers(nil); got == nil || len(got) != 0 {
		t.Errorf("AggregateWorkers(nil) = %v, want empty", got)
	}
}

func TestWorkers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts":
			if r.Header.Get("X-Auth-Key") == "wrong" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if r.Header.Get("X-Auth-Key") == "no-account" {
				w.Write([]byte(`{"success":true,"result":[]}`))
				return
			}
			w.Write([]byte(`{"success":true,"result":[{"id":"acc-1","name":"me"}]}`))
		case "/graphql":
			var req struct {
				Variables map[string]string `json:"variables"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			if req.Variables["accountTag"] != "acc-1" && req.Variables["accountTag"] != "acc-fixed" {
				t.Errorf("accountTag = %q", req.Variables["accountTag"])
			}
			if req.Variables["datetimeStart"] != "2024-02-29T12:00:00Z" || req.Variables["datetimeEnd"] != "2024-03-01T12:00:00Z" {
				t.Errorf("variables = %v", req.Variables)
			}
			w.Write([]byte(`{"data":{"viewer":{"accounts":[{"workersInvocationsAdaptive":[
				{"dimensions":{"scriptName":"api"},"sum":{"requests":10,"errors":1,"subrequests":0},"quantiles":{"cpuTimeP50":1,"cpuTimeP99":2}},
				{"dimensions":{"scriptName":"api"},"sum":{"requests":5,"errors":0,"subrequests":0},"quantiles":{"cpuTimeP50":3,"cpuTimeP99":1}}
			]}]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	accounts := []config.CloudflareAccount{
		{Name: "查询账号 ID", APIKey: "k", Email: "e"},
		{Name: "没有账号", APIKey: "no-account", Email: "e"},
		{Name: "固定账号 ID", APIKey: "k", Email: "e", AccountID: "acc-fixed"},
		{Name: "错误密钥", APIKey: "wrong", Email: "e"},
	}
	report, err := newTestClient(srv.URL).Workers(context.Background(), accounts)
	if err != nil {
		t.Fatalf("Workers() error = %v", err)
	}

	if len(report.Accounts) != 3 {
		t.Fatalf("Workers() accounts = %+v, want 3", report.Accounts)
	}
	if report.Accounts[0].Account != "查询账号 ID" || report.Accounts[1].Account != "固定账号 ID" {
		t.Errorf("account order = %s, %s", report.Accounts[0].Account, report.Accounts[1].Account)
	}
	if failed := report.Accounts[2]; failed.Account != "错误密钥" || failed.Error == "" || len(failed.Workers) != 0 {
		t.Errorf("failed account = %+v, want error", failed)
	}
	want := []WorkerStats{{ScriptName: "api", Requests: 15, Errors: 1, CPUTimeP50: 3, CPUTimeP99: 2}}
	if diff := cmp.Diff(want, report.Accounts[0].Workers); diff != "" {
		t.Errorf("Workers mismatch (-want +got):\n%s", diff)
	}
	if report.TotalRequests != 30 || report.TotalErrors != 2 {
		t.Errorf("totals = %d/%d, want 30/2", report.TotalRequests, report.TotalErrors)
	}
}
