package web

import (
	"net/http"
	"strconv"

	"github.com/cxbdasheng/edgeboard/helper"
)

// Logs 查询内存中的日志, 可按 level、type 过滤, n 为返回的最近条数
func Logs(writer http.ResponseWriter, request *http.Request) {
	q := request.URL.Query()

	n := 0
	if s := q.Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			helper.ReturnError(writer, "参数 n 必须是非负整数")
			return
		}
		n = v
	}

	var level helper.LogLevel
	if s := q.Get("level"); s != "" {
		level = helper.ParseLogLevel(s)
	}

	logs := helper.GetLogger().Query(level, helper.LogType(q.Get("type")), n)
	helper.ReturnSuccess(writer, "", map[string]any{
		"logs":  logs,
		"count": len(logs),
	})
}
