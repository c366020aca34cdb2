package helper

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	httpClientTimeout = 30 * time.Second
	// 错误信息中保留的响应体长度
	errorBodyLimit = 512
)

// maxResponseBody 单个响应体的读取上限
var maxResponseBody int64 = 32 << 20

var dialer = &net.Dialer{
	Timeout:   10 * time.Second,
	KeepAlive: 30 * time.Second,
}

var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	DialContext:           dialer.DialContext,
	ForceAttemptHTTP2:     true,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   10,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: time.Second,
}

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// CreateHTTPClient 创建共享连接池的 HTTP 客户端
func CreateHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   httpClientTimeout,
		Transport: defaultTransport,
	}
}

// GetHTTPResponseOrg 读取原始响应体, 超过 maxResponseBody 时返回错误
func GetHTTPResponseOrg(resp *http.Response, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	if int64(len(body)) > maxResponseBody {
		return nil, fmt.Errorf("响应体超过 %d 字节", maxResponseBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(body)
		if len(msg) > errorBodyLimit {
			msg = msg[:errorBodyLimit]
		}
		return body, &HTTPError{StatusCode: resp.StatusCode, Body: msg}
	}
	return body, nil
}
