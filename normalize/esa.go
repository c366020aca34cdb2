package normalize

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// SeriesPoint 单指标时间序列的数据点
type SeriesPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// ESASite 阿里云 ESA 站点
type ESASite struct {
	SiteId          string   `json:"SiteId"`
	SiteName        string   `json:"SiteName"`
	Status          string   `json:"Status"`
	DomainCount     int64    `json:"DomainCount"`
	Type            string   `json:"Type"`
	Coverage        string   `json:"Coverage"`
	CnameStatus     string   `json:"CnameStatus"`
	Area            string   `json:"Area"`
	AccessType      string   `json:"AccessType"`
	PlanType        string   `json:"PlanType"`
	InstanceId      string   `json:"InstanceId"`
	CreateTime      string   `json:"CreateTime"`
	UpdateTime      string   `json:"UpdateTime"`
	VerifyStatus    string   `json:"VerifyStatus"`
	NameServerList  []string `json:"NameServerList"`
	ResourceGroupId string   `json:"ResourceGroupId"`
	Description     string   `json:"Description"`

	Requests           int64         `json:"requests"`
	Bytes              int64         `json:"bytes"`
	TimeSeriesRequests []SeriesPoint `json:"timeSeriesRequests"`
	TimeSeriesTraffic  []SeriesPoint `json:"timeSeriesTraffic"`
	Error              string        `json:"error,omitempty"`
}

// Quota 套餐配额
type Quota struct {
	QuotaName string `json:"quotaName"`
	Total     int64  `json:"total"`
	Used      int64  `json:"used"`
}

// Routine 边缘函数
type Routine struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	CodeVersion   string `json:"codeVersion"`
	Status        string `json:"status"`
	CreateTime    string `json:"createTime"`
	UpdateTime    string `json:"updateTime"`
	Env           string `json:"env"`
	RelatedRecord string `json:"relatedRecord"`
}

// 各接口返回中列表可能出现的位置
var (
	sitesPaths = []string{
		"Sites", "sites", "Result.Sites", "Result.sites",
		"Data.Sites", "Sites.Site", "Result.Sites.Site", "Data.Sites.Site",
	}
	quotasPaths    = []string{"Quotas", "Result.Quotas", "Data.Quotas"}
	routinesPaths  = []string{"Routines", "Result.Routines", "Data.Routines", "Routines.Routine"}
	instancesPaths = []string{"Instances", "Result.Instances", "Data.Instances", "Instances.Instances"}
	plansPaths     = []string{"Plans", "Result.Plans", "Data.Plans"}
)

// Site 规范化单个站点
func Site(raw any) ESASite {
	return ESASite{
		SiteId:             String(raw, "SiteId", "siteId", "Id"),
		SiteName:           String(raw, "SiteName", "siteName", "Name"),
		Status:             String(raw, "Status", "status"),
		DomainCount:        Count(raw, "DomainCount", "domainCount"),
		Type:               String(raw, "Type", "type"),
		Coverage:           String(raw, "Coverage", "coverage"),
		CnameStatus:        String(raw, "CnameStatus", "cnameStatus"),
		Area:               String(raw, "Area", "area"),
		AccessType:         String(raw, "AccessType", "accessType"),
		PlanType:           String(raw, "PlanType", "planType", "RatePlanType", "ratePlanType"),
		InstanceId:         String(raw, "InstanceId", "instanceId"),
		CreateTime:         String(raw, "CreateTime", "createTime", "GmtCreate", "gmtCreate"),
		UpdateTime:         String(raw, "UpdateTime", "updateTime", "GmtModified", "gmtModified"),
		VerifyStatus:       String(raw, "VerifyStatus", "verifyStatus"),
		NameServerList:     Strings(raw, "NameServerList", "nameServerList", "NameServers", "nameServers"),
		ResourceGroupId:    String(raw, "ResourceGroupId", "resourceGroupId"),
		Description:        String(raw, "Description", "description"),
		TimeSeriesRequests: []SeriesPoint{},
		TimeSeriesTraffic:  []SeriesPoint{},
	}
}

// Sites 从 ListSites 响应中取出并规范化站点列表
func Sites(doc any) []ESASite {
	raw := Slice(doc, sitesPaths...)
	sites := make([]ESASite, 0, len(raw))
	for _, r := range raw {
		sites = append(sites, Site(r))
	}
	return sites
}

// Quotas 规范化 ListInstanceQuotasWithUsage 响应
func Quotas(doc any) []Quota {
	raw := Slice(doc, quotasPaths...)
	quotas := make([]Quota, 0, len(raw))
	for _, q := range raw {
		quotas = append(quotas, Quota{
			QuotaName: String(q, "QuotaName", "quotaName", "Name"),
			Total:     Count(q, "Total", "total", "Quota", "quota", "QuotaValue"),
			Used:      Count(q, "Used", "used", "Usage", "usage"),
		})
	}
	return quotas
}

// Routines 规范化 ListUserRoutines 响应, 同时返回总数
func Routines(doc any) ([]Routine, int64) {
	raw := Slice(doc, routinesPaths...)
	routines := make([]Routine, 0, len(raw))
	for _, r := range raw {
		routines = append(routines, Routine{
			Name:          String(r, "Name", "name", "RoutineName"),
			Description:   String(r, "Description", "description"),
			CodeVersion:   String(r, "CodeVersion", "codeVersion"),
			Status:        String(r, "Status", "status"),
			CreateTime:    String(r, "CreateTime", "createTime"),
			UpdateTime:    String(r, "UpdateTime", "updateTime"),
			Env:           String(r, "Env", "env"),
			RelatedRecord: String(r, "DefaultRelatedRecord", "relatedRecord"),
		})
	}
	total := Count(doc, "TotalCount", "Result.TotalCount")
	if total == 0 {
		total = int64(len(routines))
	}
	return routines, total
}

// MergeRoutineDetail 使用 GetRoutine 的详情补充边缘函数信息
// 取 production 环境, 没有时取第一个环境, 版本取最新的一个
func MergeRoutineDetail(r Routine, detail any) Routine {
	envs := Slice(detail, "Envs")
	var env any
	for _, e := range envs {
		if String(e, "Env") == "production" {
			env = e
			break
		}
	}
	if env == nil && len(envs) > 0 {
		env = envs[0]
	}

	if desc := String(detail, "Description"); desc != "" {
		r.Description = decodeBase64(desc)
	}
	if v := String(detail, "CreateTime"); v != "" {
		r.CreateTime = v
	}
	if v := String(detail, "DefaultRelatedRecord"); v != "" {
		r.RelatedRecord = v
	}
	r.Env = String(env, "Env")
	if versions := Slice(env, "CodeDeploy.CodeVersions"); len(versions) > 0 {
		if v := String(versions[0], "CodeVersion"); v != "" {
			r.CodeVersion = v
		}
	}
	if Map(env, "CodeDeploy") != nil {
		r.Status = "deployed"
	}
	return r
}

// decodeBase64 ESA 返回的描述为 base64 编码, 解码失败时保留原文
func decodeBase64(s string) string {
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil || !utf8.Valid(b) {
		return s
	}
	return string(b)
}

// InstanceID 从 ListUserRatePlanInstances 响应中取第一个实例 ID
func InstanceID(doc any) string {
	instances := Slice(doc, instancesPaths...)
	if len(instances) == 0 {
		return ""
	}
	return String(instances[0], "InstanceId", "instanceId")
}

// Plans ListEdgeRoutinePlans 响应中的套餐列表, 原样返回
func Plans(doc any) []any {
	plans := Slice(doc, plansPaths...)
	if plans == nil {
		return []any{}
	}
	return plans
}

// ApplySiteSeries 将 DescribeSiteTimeSeriesData 的结果写入站点
// 汇总值取 SummarizedData, 序列取 Data[].DetailData[]
func ApplySiteSeries(site *ESASite, doc any) {
	site.Requests, site.Bytes = 0, 0
	site.TimeSeriesRequests = []SeriesPoint{}
	site.TimeSeriesTraffic = []SeriesPoint{}

	for _, item := range Slice(doc, "SummarizedData", "summarizedData") {
		switch String(item, "FieldName", "fieldName") {
		case "Requests":
			site.Requests += Count(item, "Value", "value")
		case "Traffic":
			site.Bytes += Count(item, "Value", "value")
		}
	}

	for _, item := range Slice(doc, "Data", "data") {
		field := String(item, "FieldName", "fieldName")
		for _, p := range Slice(item, "DetailData", "detailData") {
			point := SeriesPoint{
				Time:  String(p, "TimeStamp", "timeStamp", "Timestamp"),
				Value: Float64(p, "Value", "value"),
			}
			switch field {
			case "Requests":
				site.TimeSeriesRequests = append(site.TimeSeriesRequests, point)
			case "Traffic":
				site.TimeSeriesTraffic = append(site.TimeSeriesTraffic, point)
			}
		}
	}
}
