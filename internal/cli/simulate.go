package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	simulateExchange string
	simulateMessage  string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次失败的采集周期并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateExchange == "" {
			return errors.New("--exchange 必须提供")
		}
		return getApp().SimulateAlert(cmd.Context(), simulateExchange, simulateMessage)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateExchange, "exchange", "binance", "告警中的交易所名称")
	simulateCmd.Flags().StringVar(&simulateMessage, "message", "simulated failure", "告警中的错误信息")
}
