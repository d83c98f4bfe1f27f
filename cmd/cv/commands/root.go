package commands

import (
	"fmt"
	"os"

	"chunkvault/pkg/app"
	"chunkvault/pkg/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	CV *app.App
)

var rootCmd = &cobra.Command{
	Use:          "cv",
	Short:        "ChunkVault: self-encrypting chunk store",
	SilenceUsage: true,
	// PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		CV, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize chunkvault: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if CV == nil {
			return nil
		}
		return CV.Close()
	},
}

// Execute 是入口
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// 1. 全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cv/config.yaml)")

	// 2. 可覆盖配置文件的参数，绑定到 Viper
	rootCmd.PersistentFlags().String("sink-path", "", "Directory to publish chunks and manifests to")
	rootCmd.PersistentFlags().String("remote", "", "cv-server address; empty runs everything locally")
	for key, flag := range map[string]string{
		"sink.path":   "sink-path",
		"remote.addr": "remote",
	} {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to bind flag:", err)
			os.Exit(1)
		}
	}
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
