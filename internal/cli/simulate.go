package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/SloeberX/auction-tracker/internal/app"
)

var (
	simulatePrice  float64
	simulateEndsIn time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "模拟一次出价并触发告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulatePrice <= 0 {
			return errors.New("--price 必须大于 0")
		}

		opts := app.SimulateOptions{
			Price:  simulatePrice,
			EndsIn: simulateEndsIn,
		}

		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "模拟的当前价")
	simulateCmd.Flags().DurationVar(&simulateEndsIn, "ends-in", 25*time.Minute, "距离拍卖结束的时间")
}
