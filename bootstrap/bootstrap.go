package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/cxbdasheng/edgeboard/config"
	"github.com/cxbdasheng/edgeboard/helper"
	"github.com/joho/godotenv"
)

const defaultEnvFile = ".env"

type Options struct {
	// .env 文件路径, 为空时尝试当前目录下的 .env
	EnvFile string
	// 自定义 DNS 服务器
	DNS string
	// 日志输出, 默认 os.Stderr, 终端中为易读格式, 否则为 JSON
	LogOutput io.Writer
}

// Runtime 启动时解析的设置和账号, 之后只读
type Runtime struct {
	Settings config.Settings
	Accounts config.Accounts
}

// loadEnvFile 已存在的环境变量不会被覆盖
func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("加载环境变量文件 %s 失败: %w", path, err)
		}
		helper.Info(helper.LogTypeConfig, "已加载环境变量文件: %s", path)
		return nil
	}
	if _, err := os.Stat(defaultEnvFile); err == nil {
		if err = godotenv.Load(defaultEnvFile); err != nil {
			return fmt.Errorf("加载环境变量文件 %s 失败: %w", defaultEnvFile, err)
		}
		helper.Info(helper.LogTypeConfig, "已加载环境变量文件: %s", defaultEnvFile)
	}
	return nil
}

// Init 加载 .env 和配置文件, 解析账号并初始化日志与 DNS
// 配置文件不存在时使用默认设置
func Init(opts Options) (Runtime, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return Runtime{}, err
	}

	conf, err := config.GetConfigCached()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Runtime{}, fmt.Errorf("读取配置文件 %s 失败: %w", config.GetConfigFilePath(), err)
		}
		helper.Debug(helper.LogTypeConfig, "配置文件不存在, 使用默认设置: %s", config.GetConfigFilePath())
		conf = config.DefaultConfig()
	}

	rt := Runtime{
		Settings: conf.Settings.Normalize(),
		Accounts: config.ResolveAccounts(config.ProcessEnv(), conf.Accounts),
	}
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	helper.GetLogger().SetSink(helper.NewSink(out, helper.IsTerminal(out)))
	helper.ConfigureLogger(rt.Settings.LogLevel, rt.Settings.LogMaxSize)
	helper.SetDNS(opts.DNS)

	helper.Info(helper.LogTypeConfig, "已加载账号: Cloudflare %d 个, EdgeOne %d 个, ESA %d 个",
		len(rt.Accounts.Cloudflare), len(rt.Accounts.EdgeOne), len(rt.Accounts.ESA))
	if rt.Accounts.Empty() {
		helper.Warn(helper.LogTypeConfig, "未配置任何账号, 请设置环境变量或在配置文件中添加账号")
	}
	return rt, nil
}
