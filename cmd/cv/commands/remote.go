package commands

import (
	"fmt"

	"chunkvault/pkg/client"

	"github.com/spf13/viper"
)

// remoteMode 报告是否配置了 cv-server
func remoteMode() bool {
	return viper.GetString("remote.addr") != ""
}

// GetRemoteClient 按 remote.addr 创建客户端，调用方负责 Close
func GetRemoteClient() (*client.CVClient, error) {
	addr := viper.GetString("remote.addr")
	if addr == "" {
		return nil, fmt.Errorf("remote address not set (use --remote or CV_REMOTE_ADDR)")
	}
	return client.NewCVClient(addr)
}
