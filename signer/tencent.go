package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// https://cloud.tencent.com/document/api/1552/80723

const (
	TencentDateFormat  = "2006-01-02"
	Algorithm          = "TC3-HMAC-SHA256"
	TencentContentType = "application/json; charset=utf-8"
	TencentRegion      = "ap-guangzhou"
	// 参与签名的请求头, 必须按字典序排列
	tencentSignedHeaders = "content-type;host;x-tc-action"
)

// TencentAuthorization 计算 TC3-HMAC-SHA256 的 Authorization 头
// 只依赖入参, 相同的时间戳总是得到相同的签名
func TencentAuthorization(secretId, secretKey, service, host, action, payload string, timestamp int64) string {
	date := time.Unix(timestamp, 0).UTC().Format(TencentDateFormat)

	// 1. 规范请求串
	canonicalRequest := buildCanonicalRequest(host, action, payload)

	// 2. 待签名字符串
	credentialScope := fmt.Sprintf("%s/%s/tc3_request", date, service)
	stringToSign := fmt.Sprintf("%s\n%d\n%s\n%s",
		Algorithm,
		timestamp,
		credentialScope,
		sha256Hex(canonicalRequest))

	// 3. 派生密钥并签名
	secretDate := hmacSha256([]byte("TC3"+secretKey), date)
	secretService := hmacSha256(secretDate, service)
	secretSigning := hmacSha256(secretService, "tc3_request")
	signature := hex.EncodeToString(hmacSha256(secretSigning, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		Algorithm,
		secretId,
		credentialScope,
		tencentSignedHeaders,
		signature)
}

// TencentSigner 腾讯云 API 3.0 签名方法
// service: 服务名称，如 "teo"
// host: 请求的域名，如 "teo.tencentcloudapi.com"
// payload: 请求体内容（JSON 字符串）
func TencentSigner(secretId, secretKey, service, host, action, payload string, r *http.Request) {
	timestamp := time.Now().Unix()

	r.Header.Set("Content-Type", TencentContentType)
	r.Header.Set("Host", host)
	r.Host = host // Go HTTP 客户端使用 r.Host 而不是 Header["Host"]
	r.Header.Set("X-TC-Action", action)
	r.Header.Set("X-TC-Version", getAPIVersion(service))
	r.Header.Set("X-TC-Region", TencentRegion)
	r.Header.Set("X-TC-Timestamp", strconv.FormatInt(timestamp, 10))
	r.Header.Set("Authorization", TencentAuthorization(secretId, secretKey, service, host, action, payload, timestamp))
}

// buildCanonicalRequest 构建规范请求串
// 固定为 POST / 且无查询参数
func buildCanonicalRequest(host, action, payload string) string {
	canonicalHeaders := fmt.Sprintf("content-type:%s\nhost:%s\nx-tc-action:%s\n",
		TencentContentType,
		strings.ToLower(host),
		strings.ToLower(action))

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s",
		http.MethodPost,
		"/",
		"",
		canonicalHeaders,
		tencentSignedHeaders,
		sha256Hex(payload))
}

// getAPIVersion 根据服务获取 API 版本
func getAPIVersion(service string) string {
	versions := map[string]string{
		"cdn":  "2018-06-06",
		"ecdn": "2022-09-01",
		"teo":  "2022-09-01",
	}
	if v, ok := versions[service]; ok {
		return v
	}
	return "2022-09-01"
}

// hmacSha256 计算 HMAC-SHA256
func hmacSha256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

// sha256Hex 计算 SHA256 哈希并返回十六进制字符串
func sha256Hex(s string) string {
	h := sha256.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}
