package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// https://help.aliyun.com/zh/sdk/product-overview/rpc-mechanism

const AliyunTimeFormat = "2006-01-02T15:04:05Z"

// PercentEncode 阿里云要求的 RFC3986 编码
func PercentEncode(s string) string {
	encoded := url.QueryEscape(s)
	encoded = strings.ReplaceAll(encoded, "+", "%20")
	encoded = strings.ReplaceAll(encoded, "*", "%2A")
	encoded = strings.ReplaceAll(encoded, "%7E", "~")
	return encoded
}

// CanonicalQuery 按键名字典序排序后拼接规范化查询串
// 同名参数的多个值按添加顺序全部保留
func CanonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range params[k] {
			parts = append(parts, PercentEncode(k)+"="+PercentEncode(v))
		}
	}
	return strings.Join(parts, "&")
}

// StringToSign 构造待签名字符串
func StringToSign(httpMethod string, params url.Values) string {
	return strings.ToUpper(httpMethod) + "&" + PercentEncode("/") + "&" + PercentEncode(CanonicalQuery(params))
}

// AliyunSignature 计算 HMAC-SHA1 签名并 Base64 编码
func AliyunSignature(httpMethod, accessSecret string, params url.Values) string {
	h := hmac.New(sha1.New, []byte(accessSecret+"&"))
	h.Write([]byte(StringToSign(httpMethod, params)))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// FlattenParams 将数组参数展开为 key.1, key.2 ...
func FlattenParams(params url.Values, key string, values []string) {
	for i, v := range values {
		params.Set(key+"."+strconv.Itoa(i+1), v)
	}
}

// AliyunSigner 添加公共参数并签名, 返回可直接使用的查询串
// Action 和 Version 由调用方设置
func AliyunSigner(accessKeyID, accessSecret string, params url.Values, httpMethod string) string {
	params.Del("Signature")
	params.Set("Format", "JSON")
	params.Set("SignatureMethod", "HMAC-SHA1")
	params.Set("SignatureVersion", "1.0")
	params.Set("AccessKeyId", accessKeyID)
	params.Set("SignatureNonce", uuid.NewString())
	params.Set("Timestamp", time.Now().UTC().Format(AliyunTimeFormat))
	// Signature 最后设置，因为它基于所有其他参数计算
	params.Set("Signature", AliyunSignature(httpMethod, accessSecret, params))
	return CanonicalQuery(params)
}

