package web

import (
	"net/http"
	"os"
	"time"

	"github.com/cxbdasheng/edgeboard/helper"
)

const VersionEnv = "EDGEBOARD_VERSION"

// Healthz 存活检查
func (s *Server) Healthz(writer http.ResponseWriter, request *http.Request) {
	helper.ReturnJSON(writer, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": os.Getenv(VersionEnv),
		"uptime":  time.Since(serverStartTime).Round(time.Second).String(),
	})
}

// Accounts 启动时解析到的账号, 密钥已脱敏
func (s *Server) Accounts(writer http.ResponseWriter, request *http.Request) {
	helper.ReturnSuccess(writer, "", s.accounts.Masked())
}
