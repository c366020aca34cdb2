package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cxbdasheng/edgeboard/analytics"
	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 10 * time.Second

// serverStartTime 服务启动时间
var serverStartTime = time.Now()

type errorBody struct {
	Error string `json:"error"`
}

// Server 持有启动时解析好的账号, 请求之间只读共享
type Server struct {
	client      *analytics.Client
	accounts    config.Accounts
	limiter     *RateLimiter
	notAllowWan func() bool
}

func NewServer(client *analytics.Client, accounts config.Accounts, settings config.Settings) *Server {
	return &Server{
		client:      client,
		accounts:    accounts,
		limiter:     NewRateLimiter(settings.Normalize().RateLimit),
		notAllowWan: notAllowWanAccess,
	}
}

// Router 注册所有接口
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(Recover)
	r.Use(s.AuthAssert)
	r.Use(s.limiter.Limit)

	r.HandleFunc("/healthz", s.Healthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/cf/analytics", s.CloudflareAnalytics).Methods(http.MethodGet)
	api.HandleFunc("/cf/summary", s.CloudflareSummary).Methods(http.MethodGet)
	api.HandleFunc("/cf/workers", s.CloudflareWorkers).Methods(http.MethodGet)
	api.HandleFunc("/eo/zones", s.EdgeOneZones).Methods(http.MethodGet)
	api.HandleFunc("/eo/traffic", s.EdgeOneTraffic).Methods(http.MethodGet)
	api.HandleFunc("/esa", s.ESA).Methods(http.MethodGet)
	api.HandleFunc("/accounts", s.Accounts).Methods(http.MethodGet)
	api.HandleFunc("/logs", Logs).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		helper.ReturnJSON(w, http.StatusNotFound, errorBody{Error: "接口不存在"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		helper.ReturnJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "不支持的请求方法"})
	})
	return r
}

// Recover 处理函数 panic 时返回 500
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				msg := fmt.Sprint(rec)
				helper.Error(helper.LogTypeAPI, "处理请求 %s 时发生异常: %s", r.URL.Path, msg)
				helper.ReturnJSON(w, http.StatusInternalServerError, errorBody{Error: msg})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Serve 监听并处理请求, ctx 取消后优雅退出
func (s *Server) Serve(ctx context.Context, listen string) error {
	l, err := net.Listen("tcp", listen)
	if err != nil {
		return errors.New("监听端口发生异常, 请检查端口是否被占用! " + err.Error())
	}

	// 厂商接口较慢, 写超时需覆盖 GraphQL 的 30 秒
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	helper.Info(helper.LogTypeSystem, "Web服务已启动: %s", l.Addr())

	select {
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	helper.Info(helper.LogTypeSystem, "Web服务正在停止...")
	return srv.Shutdown(shutdownCtx)
}
