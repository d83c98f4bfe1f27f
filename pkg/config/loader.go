package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chunkvault/pkg/bridge"
	"chunkvault/pkg/chunker"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	SetDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// 搜索顺序：当前目录 -> ./.cv -> ~/.cv
		viper.AddConfigPath(".")
		viper.AddConfigPath(".cv")
		viper.AddConfigPath(filepath.Join(home, ".cv"))

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (CV_SINK_PATH 等)
	viper.SetEnvPrefix("CV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 没找到配置文件不算错，可能全靠环境变量；格式错才是错
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Fprintln(os.Stderr, "⚠️  No config file found, using defaults/env vars")
		} else {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	} else {
		fmt.Fprintln(os.Stderr, "🔧 Using config file:", viper.ConfigFileUsed())
	}

	return nil
}

// SetDefaults 写入所有默认值，测试里 viper.Reset() 之后也可以直接调用
func SetDefaults() {
	// Bridge 容量
	viper.SetDefault("bridge.chunk_size", bridge.DefaultChunkSize)
	viper.SetDefault("bridge.max_chunks", bridge.DefaultMaxChunks)

	// 引擎
	viper.SetDefault("engine.min_chunk_size", chunker.MinSize)
	viper.SetDefault("engine.max_chunk_size", chunker.MaxSize)
	viper.SetDefault("engine.compression_level", "default")

	viper.SetDefault("url.base", "base32z")

	// 发布目标
	wd, _ := os.Getwd()
	viper.SetDefault("sink.type", "disk")
	viper.SetDefault("sink.path", filepath.Join(wd, ".cv", "objects"))
	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("redis.ttl", "24h")
	viper.SetDefault("redis.max_manifest_size", 64*1024)

	// 运行记录 (为空表示不记录)
	viper.SetDefault("catalog.driver", "")
	viper.SetDefault("catalog.dsn", "")

	viper.SetDefault("server.addr", ":8080")

	// 为空表示 CLI 在本地执行，不走 cv-server
	viper.SetDefault("remote.addr", "")
}
