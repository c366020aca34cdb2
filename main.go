package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cxbdasheng/edgeboard/analytics"
	"github.com/cxbdasheng/edgeboard/bootstrap"
	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/cxbdasheng/edgeboard/web"
	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// version
var version = "DEV"

var errNotInstalled = errors.New("EdgeBoard 服务未安装, 请先安装服务")

type runOptions struct {
	configFilePath string
	listen         string
	envFile        string
	dns            string
}

// run 初始化后运行 Web 服务, ctx 取消后退出
func run(ctx context.Context, opts runOptions) error {
	rt, err := bootstrap.Init(bootstrap.Options{EnvFile: opts.envFile, DNS: opts.dns})
	if err != nil {
		return err
	}
	client := analytics.NewClient(rt.Settings.Retry)
	helper.Info(helper.LogTypeSystem, "EdgeBoard %s 启动中, 接口地址: http://localhost%s/api", version, opts.listen)
	return web.NewServer(client, rt.Accounts, rt.Settings).Serve(ctx, opts.listen)
}

// prepare 设置配置文件路径并检查监听地址
func prepare(opts *runOptions) error {
	if opts.configFilePath != "" {
		absPath, err := filepath.Abs(opts.configFilePath)
		if err != nil {
			return fmt.Errorf("获取配置文件绝对路径失败: %w", err)
		}
		opts.configFilePath = absPath
		os.Setenv(config.PathENV, absPath)
	}
	if _, err := net.ResolveTCPAddr("tcp", opts.listen); err != nil {
		return fmt.Errorf("监听地址 %s 无效: %w", opts.listen, err)
	}
	if opts.envFile != "" {
		absPath, err := filepath.Abs(opts.envFile)
		if err != nil {
			return fmt.Errorf("获取环境变量文件绝对路径失败: %w", err)
		}
		opts.envFile = absPath
	}
	os.Setenv(web.VersionEnv, version)
	return nil
}

func rootCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "edgeboard",
		Short: "CDN 流量与安全数据看板",
		Long: `edgeboard 汇总 Cloudflare、腾讯云 EdgeOne 与阿里云 ESA 的流量、安全与边缘函数数据,
以统一的 JSON 接口提供给前端看板。

账号通过环境变量、.env 文件或配置文件声明:
  CF_API_KEY / CF_EMAIL / CF_DOMAINS                  Cloudflare
  SECRET_ID / SECRET_KEY / EO_ZONES                   EdgeOne
  ESA_ACCESS_KEY_ID / ESA_ACCESS_KEY_SECRET / ESA_SITES  阿里云 ESA
多账号使用 _1、_2 等后缀。`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return prepare(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !service.Interactive() {
				s, err := getService(*opts)
				if err != nil {
					return err
				}
				return s.Run()
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, *opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFilePath, "config", "c", config.GetConfigFilePathDefault(), "配置文件路径")
	flags.StringVarP(&opts.listen, "listen", "l", config.GetDefaultListen(), "监听地址")
	flags.StringVar(&opts.envFile, "env", "", "环境变量文件路径, 默认读取当前目录下的 .env")
	flags.StringVar(&opts.dns, "dns", "", "自定义 DNS 服务器, 例如 8.8.8.8")

	cmd.AddCommand(serviceCmd(opts))
	cmd.AddCommand(accountsCmd(opts))
	cmd.AddCommand(configCmd())
	return cmd
}

func serviceCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "管理系统服务",
	}
	actions := []struct {
		use   string
		short string
		fn    func(runOptions) error
	}{
		{"install", "安装并启动系统服务", installService},
		{"uninstall", "停止并卸载系统服务", uninstallService},
		{"restart", "重启系统服务", restartService},
	}
	for _, action := range actions {
		cmd.AddCommand(&cobra.Command{
			Use:   action.use,
			Short: action.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return action.fn(*opts)
			},
		})
	}
	return cmd
}

func accountsCmd(opts *runOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "打印解析到的账号, 密钥已脱敏",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.Init(bootstrap.Options{EnvFile: opts.envFile})
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(rt.Accounts.Masked())
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "管理配置文件",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "生成默认配置文件",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetConfigFilePath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("配置文件 %s 已存在, 使用 --force 覆盖", path)
			}
			conf := config.DefaultConfig()
			if err := conf.SaveConfig(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已生成配置文件: %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "覆盖已存在的配置文件")
	cmd.AddCommand(initCmd)
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
