package cmd

import (
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动 melodify 服务器",
	Long:  `启动 HTTP 和 WebSocket 服务，提供曲库、播放器设置、最近播放和管理后台接口`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
