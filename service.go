package main

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/kardianos/service"
)

const serviceName = "edgeboard"

// program 实现 service.Interface 接口
type program struct {
	opts   runOptions
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *program) Start(s service.Service) error {
	// Start 不应该阻塞，异步执行实际工作
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := run(ctx, p.opts); err != nil {
			helper.Error(helper.LogTypeSystem, "服务运行失败: %v", err)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
		<-p.done
	}
	return nil
}

// serviceArguments 安装服务时写入的启动参数
func serviceArguments(opts runOptions) []string {
	args := []string{"-l", opts.listen, "-c", opts.configFilePath}
	if opts.envFile != "" {
		args = append(args, "--env", opts.envFile)
	}
	if opts.dns != "" {
		args = append(args, "--dns", opts.dns)
	}
	return args
}

// getService 获取服务配置
func getService(opts runOptions) (service.Service, error) {
	options := make(service.KeyValue)
	var depends []string

	// 确保服务等待网络就绪后再启动
	switch service.ChosenSystem().String() {
	case "unix-systemv":
		options["SysvScript"] = sysvScript
		options["UserService"] = false
	case "unix-upstart":
		options["UserService"] = false
	case "linux-systemd":
		depends = append(depends,
			"Requires=network.target",
			"After=network-online.target syslog.target")
		// 失败时自动重启
		options["Restart"] = "on-failure"
		options["RestartSec"] = 10
		options["LimitNOFILE"] = 65536
	case "darwin-launchd":
		options["KeepAlive"] = true
		options["RunAtLoad"] = true
		options["UserService"] = false
	case "windows-service":
		// 自动(延迟启动)
		options["DelayedAutoStart"] = true
		options["OnFailure"] = "restart"
		options["OnFailureDelayDuration"] = "10s"
		options["OnFailureResetPeriod"] = 60
	default:
		depends = append(depends,
			"Requires=network.target",
			"After=network-online.target")
	}

	svcConfig := &service.Config{
		Name:         serviceName,
		DisplayName:  "EdgeBoard Service",
		Description:  "EdgeBoard - CDN 流量与安全数据看板",
		Arguments:    serviceArguments(opts),
		Dependencies: depends,
		Option:       options,
	}
	return service.New(&program{opts: opts}, svcConfig)
}

// sysvEnable System V init 系统需要额外配置开机自启
func sysvEnable() {
	if _, err := exec.LookPath("update-rc.d"); err == nil {
		if out, err := exec.Command("update-rc.d", serviceName, "defaults").CombinedOutput(); err != nil {
			helper.Error(helper.LogTypeSystem, "update-rc.d 配置失败: %v, 输出: %s", err, out)
		} else {
			helper.Info(helper.LogTypeSystem, "已配置开机自启 (update-rc.d)")
		}
		return
	}
	if _, err := exec.LookPath("chkconfig"); err == nil {
		if out, err := exec.Command("chkconfig", "--add", serviceName).CombinedOutput(); err != nil {
			helper.Error(helper.LogTypeSystem, "chkconfig --add 失败: %v, 输出: %s", err, out)
			return
		}
		if out, err := exec.Command("chkconfig", serviceName, "on").CombinedOutput(); err != nil {
			helper.Error(helper.LogTypeSystem, "chkconfig on 失败: %v, 输出: %s", err, out)
			return
		}
		helper.Info(helper.LogTypeSystem, "已配置开机自启 (chkconfig)")
	}
}

func sysvDisable() {
	if _, err := exec.LookPath("update-rc.d"); err == nil {
		if out, err := exec.Command("update-rc.d", "-f", serviceName, "remove").CombinedOutput(); err != nil {
			helper.Error(helper.LogTypeSystem, "update-rc.d remove 失败: %v, 输出: %s", err, out)
		}
		return
	}
	if _, err := exec.LookPath("chkconfig"); err == nil {
		if out, err := exec.Command("chkconfig", "--del", serviceName).CombinedOutput(); err != nil {
			helper.Error(helper.LogTypeSystem, "chkconfig --del 失败: %v, 输出: %s", err, out)
		}
	}
}

// installService 安装并启动系统服务
func installService(opts runOptions) error {
	helper.Info(helper.LogTypeSystem, "正在安装 EdgeBoard 系统服务...")

	s, err := getService(opts)
	if err != nil {
		return err
	}
	status, err := s.Status()
	if err == nil || status != service.StatusUnknown {
		helper.Info(helper.LogTypeSystem, "EdgeBoard 服务已安装, 无需再次安装")
		return nil
	}

	if err = s.Install(); err != nil {
		return err
	}
	if startErr := s.Start(); startErr != nil {
		helper.Error(helper.LogTypeSystem, "服务安装成功但启动失败: %v", startErr)
	}
	if service.ChosenSystem().String() == "unix-systemv" {
		sysvEnable()
	}
	helper.Info(helper.LogTypeSystem, "安装 EdgeBoard 服务成功! 接口地址: http://localhost%s/api", opts.listen)
	return nil
}

// uninstallService 停止并卸载系统服务
func uninstallService(opts runOptions) error {
	helper.Info(helper.LogTypeSystem, "正在卸载 EdgeBoard 系统服务...")

	s, err := getService(opts)
	if err != nil {
		return err
	}
	if stopErr := s.Stop(); stopErr != nil {
		helper.Warn(helper.LogTypeSystem, "停止服务时出现警告: %v", stopErr)
	}
	if service.ChosenSystem().String() == "unix-systemv" {
		sysvDisable()
	}
	if err = s.Uninstall(); err != nil {
		return err
	}
	helper.Info(helper.LogTypeSystem, "EdgeBoard 服务卸载成功")
	return nil
}

// restartService 运行中则重启, 已停止则启动
func restartService(opts runOptions) error {
	helper.Info(helper.LogTypeSystem, "正在重启 EdgeBoard 系统服务...")

	s, err := getService(opts)
	if err != nil {
		return err
	}
	status, err := s.Status()
	if err != nil {
		return errNotInstalled
	}

	switch status {
	case service.StatusRunning:
		if err = s.Restart(); err != nil {
			return err
		}
		helper.Info(helper.LogTypeSystem, "EdgeBoard 服务重启成功")
	case service.StatusStopped:
		if err = s.Start(); err != nil {
			return err
		}
		helper.Info(helper.LogTypeSystem, "EdgeBoard 服务启动成功")
	default:
		return fmt.Errorf("EdgeBoard 服务状态未知: %v", status)
	}
	return nil
}

// sysvScript 定义 System V init 脚本模板
const sysvScript = `#!/bin/sh
### BEGIN INIT INFO
# Provides:          {{.Name}}
# Required-Start:    $network $remote_fs $syslog
# Required-Stop:     $network $remote_fs $syslog
# Default-Start:     2 3 4 5
# Default-Stop:      0 1 6
# Short-Description: {{.DisplayName}}
# Description:       {{.Description}}
### END INIT INFO

cmd="{{.Path}}{{range .Arguments}} {{.}}{{end}}"

name=$(basename $(readlink -f $0))
pid_file="/var/run/$name.pid"
stdout_log="/var/log/$name.log"
stderr_log="/var/log/$name.err"

get_pid() {
    cat "$pid_file"
}

is_running() {
    [ -f "$pid_file" ] && ps -p $(get_pid) > /dev/null 2>&1
}

case "$1" in
    start)
        if is_running; then
            echo "Already started"
        else
            echo "Starting $name"
            $cmd >> "$stdout_log" 2>> "$stderr_log" &
            echo $! > "$pid_file"
        fi
        ;;
    stop)
        if is_running; then
            echo "Stopping $name"
            kill $(get_pid)
            rm -f "$pid_file"
        else
            echo "Not running"
        fi
        ;;
    restart)
        $0 stop
        $0 start
        ;;
    status)
        if is_running; then
            echo "Running"
        else
            echo "Stopped"
            exit 1
        fi
        ;;
    *)
        echo "Usage: $0 {start|stop|restart|status}"
        exit 1
        ;;
esac

exit 0
`
