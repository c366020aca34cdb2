package helper

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"
)

// GetClientIP 获取客户端 IP
// 直连地址为内网或回环代理时才读取 X-Real-IP 和 X-Forwarded-For,
// X-Forwarded-For 从右往左取第一个非代理地址, 全部是代理时取最左侧
func GetClientIP(r *http.Request) string {
	peer, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		peer = r.RemoteAddr
	}
	if !isTrustedProxy(peer) {
		return peer
	}

	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
		return ip
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		var leftmost string
		for i := len(parts) - 1; i >= 0; i-- {
			ip := strings.TrimSpace(parts[i])
			if net.ParseIP(ip) == nil {
				continue
			}
			if !isTrustedProxy(ip) {
				return ip
			}
			leftmost = ip
		}
		if leftmost != "" {
			return leftmost
		}
	}
	return peer
}

// isTrustedProxy 内网或回环地址视为反向代理
func isTrustedProxy(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return IsPrivateIP(ip) || parsed.IsLoopback()
}

// IsPrivateIP 是否为内网地址, 不包含回环地址
func IsPrivateIP(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate()
}

// IsLocalAddress 内网、回环或链路本地地址
func IsLocalAddress(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	return parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsLinkLocalUnicast()
}

// SetDNS 设置自定义DNS服务器, 用于访问厂商接口
func SetDNS(dnsServer string) {
	if dnsServer == "" {
		return
	}

	if !isValidDNSServer(dnsServer) {
		Warn(LogTypeNetwork, "无效的DNS服务器地址: %s", dnsServer)
		return
	}

	// 添加默认端口
	if _, _, err := net.SplitHostPort(dnsServer); err != nil {
		dnsServer = net.JoinHostPort(dnsServer, "53")
	}

	net.DefaultResolver = &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{
				Timeout: time.Second * 3,
			}
			return d.DialContext(ctx, network, dnsServer)
		},
	}
	dialer.Resolver = net.DefaultResolver

	Info(LogTypeNetwork, "已设置自定义DNS服务器: %s", dnsServer)
}

// isValidDNSServer 验证DNS服务器地址格式
func isValidDNSServer(dnsServer string) bool {
	host := dnsServer
	if h, _, err := net.SplitHostPort(dnsServer); err == nil {
		host = h
	}

	if net.ParseIP(host) != nil {
		return true
	}
	return isValidDomainName(host)
}

// isValidDomainName 验证域名格式
func isValidDomainName(domain string) bool {
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		// 检查是否只包含字母、数字和连字符
		for _, char := range label {
			if !((char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9') ||
				char == '-') {
				return false
			}
		}
	}

	return true
}
