package web

import (
	"fmt"
	"net/http"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
)

// AccessCheckResult 访问检查结果
type AccessCheckResult struct {
	Allowed bool
	Reason  string
}

// notAllowWanAccess 读取缓存的配置文件, 文件不存在时允许公网访问
func notAllowWanAccess() bool {
	conf, err := config.GetConfigCached()
	if err != nil {
		return false
	}
	return conf.NotAllowWanAccess
}

// checkWANAccess 检查WAN访问权限
func checkWANAccess(r *http.Request, notAllowWan bool) AccessCheckResult {
	clientIP := helper.GetClientIP(r)
	if notAllowWan && !helper.IsLocalAddress(clientIP) {
		return AccessCheckResult{
			Allowed: false,
			Reason:  fmt.Sprintf("客户端 %s 被拒绝访问：禁止从公网访问", clientIP),
		}
	}
	return AccessCheckResult{Allowed: true}
}

// AuthAssert 禁止公网访问时拒绝非内网请求
func (s *Server) AuthAssert(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessResult := checkWANAccess(r, s.notAllowWan())
		if !accessResult.Allowed {
			helper.Warn(helper.LogTypeAuth, "%s", accessResult.Reason)
			helper.ReturnJSON(w, http.StatusForbidden, errorBody{Error: "禁止从公网访问"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
