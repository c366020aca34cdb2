package config

import (
	"os"
	"strconv"
	"strings"
)

// CloudflareAccount Cloudflare 账户, 使用 Global API Key 认证
type CloudflareAccount struct {
	Name      string
	APIKey    string
	Email     string
	AccountID string
	// 域名过滤列表, 为空则取前 20 个站点
	Domains []string
}

// EdgeOneAccount 腾讯云 EdgeOne 账户
type EdgeOneAccount struct {
	Name      string
	SecretID  string
	SecretKey string
	Zones     []string
}

// ESAAccount 阿里云 ESA 账户
type ESAAccount struct {
	Name            string
	AccessKeyID     string
	AccessKeySecret string
	// 站点名或站点 ID
	Sites []string
}

// Accounts 启动时解析一次的账户列表
type Accounts struct {
	Cloudflare []CloudflareAccount
	EdgeOne    []EdgeOneAccount
	ESA        []ESAAccount
}

// Empty 未配置任何账户
func (a Accounts) Empty() bool {
	return len(a.Cloudflare) == 0 && len(a.EdgeOne) == 0 && len(a.ESA) == 0
}

// EnvMap 将 KEY=VALUE 形式的环境变量转为 map
func EnvMap(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	return env
}

// ProcessEnv 当前进程的环境变量
func ProcessEnv() map[string]string {
	return EnvMap(os.Environ())
}

// ParseScope 解析逗号分隔的过滤列表, 去空格并转小写
func ParseScope(s string) []string {
	var scope []string
	for _, item := range strings.Split(s, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			scope = append(scope, item)
		}
	}
	return scope
}

// probe 先读取无后缀的变量, 再依次探测 _1, _2 ... 直到必需的两个变量有一个缺失
func probe(env map[string]string, keyA, keyB string, fn func(suffix string, index int)) {
	if env[keyA] != "" && env[keyB] != "" {
		fn("", 0)
	}
	for i := 1; ; i++ {
		suffix := "_" + strconv.Itoa(i)
		if env[keyA+suffix] == "" || env[keyB+suffix] == "" {
			return
		}
		fn(suffix, i)
	}
}

func nameOr(name, single, indexed string, index int) string {
	if name != "" {
		return name
	}
	if index == 0 {
		return single
	}
	return indexed + " " + strconv.Itoa(index)
}

// freeName 未命名的账户从 index 开始取第一个未被占用的默认名
func freeName(taken map[string]bool, name, single, indexed string, index int) string {
	if name != "" {
		return name
	}
	name = nameOr("", single, indexed, index)
	for taken[name] {
		index++
		name = nameOr("", single, indexed, index)
	}
	return name
}

func nameSet[T any](accounts []T, name func(T) string) map[string]bool {
	taken := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		taken[name(a)] = true
	}
	return taken
}

// ResolveAccounts 从环境变量与配置文件解析账户
// 环境变量中的账户在前, 配置文件中的账户追加在后
func ResolveAccounts(env map[string]string, file Accounts) Accounts {
	var accounts Accounts

	probe(env, "CF_API_KEY", "CF_EMAIL", func(s string, i int) {
		accounts.Cloudflare = append(accounts.Cloudflare, CloudflareAccount{
			Name:      nameOr(env["CF_ACCOUNT_NAME"+s], "默认账户", "账户", i),
			APIKey:    env["CF_API_KEY"+s],
			Email:     env["CF_EMAIL"+s],
			AccountID: env["CF_ACCOUNT_ID"+s],
			Domains:   ParseScope(env["CF_DOMAINS"+s]),
		})
	})
	probe(env, "SECRET_ID", "SECRET_KEY", func(s string, i int) {
		accounts.EdgeOne = append(accounts.EdgeOne, EdgeOneAccount{
			Name:      nameOr(env["EO_ACCOUNT_NAME"+s], "EdgeOne", "EdgeOne", i),
			SecretID:  env["SECRET_ID"+s],
			SecretKey: env["SECRET_KEY"+s],
			Zones:     ParseScope(env["EO_ZONES"+s]),
		})
	})
	probe(env, "ESA_ACCESS_KEY_ID", "ESA_ACCESS_KEY_SECRET", func(s string, i int) {
		accounts.ESA = append(accounts.ESA, ESAAccount{
			Name:            nameOr(env["ESA_ACCOUNT_NAME"+s], "Aliyun ESA", "Aliyun ESA", i),
			AccessKeyID:     env["ESA_ACCESS_KEY_ID"+s],
			AccessKeySecret: env["ESA_ACCESS_KEY_SECRET"+s],
			Sites:           ParseScope(env["ESA_SITES"+s]),
		})
	})

	taken := nameSet(accounts.Cloudflare, func(a CloudflareAccount) string { return a.Name })
	for _, a := range file.Cloudflare {
		if a.APIKey == "" || a.Email == "" {
			continue
		}
		a.Name = freeName(taken, a.Name, "默认账户", "账户", len(accounts.Cloudflare))
		taken[a.Name] = true
		a.Domains = ParseScope(strings.Join(a.Domains, ","))
		accounts.Cloudflare = append(accounts.Cloudflare, a)
	}
	taken = nameSet(accounts.EdgeOne, func(a EdgeOneAccount) string { return a.Name })
	for _, a := range file.EdgeOne {
		if a.SecretID == "" || a.SecretKey == "" {
			continue
		}
		a.Name = freeName(taken, a.Name, "EdgeOne", "EdgeOne", len(accounts.EdgeOne))
		taken[a.Name] = true
		a.Zones = ParseScope(strings.Join(a.Zones, ","))
		accounts.EdgeOne = append(accounts.EdgeOne, a)
	}
	taken = nameSet(accounts.ESA, func(a ESAAccount) string { return a.Name })
	for _, a := range file.ESA {
		if a.AccessKeyID == "" || a.AccessKeySecret == "" {
			continue
		}
		a.Name = freeName(taken, a.Name, "Aliyun ESA", "Aliyun ESA", len(accounts.ESA))
		taken[a.Name] = true
		a.Sites = ParseScope(strings.Join(a.Sites, ","))
		accounts.ESA = append(accounts.ESA, a)
	}

	return accounts
}

// MaskSecret 只保留前 4 位
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", 8)
}

// Masked 返回隐藏密钥后的副本, 用于日志和接口输出
func (a Accounts) Masked() Accounts {
	var masked Accounts
	for _, c := range a.Cloudflare {
		c.APIKey = MaskSecret(c.APIKey)
		masked.Cloudflare = append(masked.Cloudflare, c)
	}
	for _, e := range a.EdgeOne {
		e.SecretKey = MaskSecret(e.SecretKey)
		masked.EdgeOne = append(masked.EdgeOne, e)
	}
	for _, e := range a.ESA {
		e.AccessKeySecret = MaskSecret(e.AccessKeySecret)
		masked.ESA = append(masked.ESA, e)
	}
	return masked
}
