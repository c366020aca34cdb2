package helper

import (
	"encoding/json"
	"net/http"
)

// Result Result
type Result struct {
	Status bool        `json:"status"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data"`
}

// ReturnJSON 以指定状态码输出 JSON
func ReturnJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Error(LogTypeAPI, "输出响应失败: %v", err)
	}
}

// ReturnError 返回错误信息
func ReturnError(w http.ResponseWriter, msg string) {
	ReturnJSON(w, http.StatusOK, &Result{Status: false, Msg: msg})
}

// ReturnSuccess 返回成功信息
func ReturnSuccess(w http.ResponseWriter, msg string, data interface{}) {
	ReturnJSON(w, http.StatusOK, &Result{Status: true, Msg: msg, Data: data})
}
