package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
)

const (
	ProviderCloudflare = "cloudflare"
	ProviderEdgeOne    = "edgeone"
	ProviderESA        = "esa"
)

// ErrNotConfigured 没有可用账号, 调用方应返回空结果而不是失败
var ErrNotConfigured = errors.New("not configured")

// APIError 厂商接口调用失败
type APIError struct {
	Provider string
	Action   string
	Code     string
	Message  string
	Err      error
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s %s 失败: Code: %s, Message: %s", e.Provider, e.Action, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s 失败: %v", e.Provider, e.Action, e.Err)
	default:
		return fmt.Sprintf("%s %s 失败: %s", e.Provider, e.Action, e.Message)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client 各厂商接口的客户端, 不持有账号, 可并发使用
type Client struct {
	HTTP  *http.Client
	Retry config.Retry

	CloudflareURL string
	EdgeOneURL    string
	ESAURL        string

	// Cloudflare GraphQL 单个区域的超时
	GraphQLTimeout time.Duration

	now func() time.Time
}

func NewClient(retry config.Retry) *Client {
	return &Client{
		HTTP:           helper.CreateHTTPClient(),
		Retry:          retry,
		CloudflareURL:  cloudflareURL,
		EdgeOneURL:     "https://" + edgeOneHost,
		ESAURL:         "https://" + esaHost,
		GraphQLTimeout: graphQLTimeout,
		now:            time.Now,
	}
}

func (c *Client) clock() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// permanent 4xx 和取消不重试, 429 除外
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var httpErr *helper.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests
	}
	return false
}

// do 按重试策略执行请求, MaxAttempts <= 1 时只请求一次
// newReq 每次调用都需要返回新的请求, 签名中的时间戳和随机数也随之更新
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	operation := func() ([]byte, error) {
		req, err := newReq()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		body, err := helper.GetHTTPResponseOrg(c.HTTP.Do(req.WithContext(ctx)))
		if err != nil && permanent(err) {
			return body, backoff.Permanent(err)
		}
		return body, err
	}

	if c.Retry.MaxAttempts <= 1 {
		body, err := operation()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return body, perm.Err
		}
		return body, err
	}

	bo := backoff.NewExponentialBackOff()
	if c.Retry.InitialInterval > 0 {
		bo.InitialInterval = c.Retry.InitialInterval
	}
	if c.Retry.MaxInterval > 0 {
		bo.MaxInterval = c.Retry.MaxInterval
	}
	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.Retry.MaxAttempts)),
	)
}

// errorString 单个条目的错误信息
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
