// Package main 工单分析数据仓库 API Server 主程序
//
// 1. ETL：从工单服务、用户服务抽取数据，写入星型模型的数据仓库
// 2. 指标查询：KPI汇总、按维度拆分
// 3. 预测：基于历史指标的时间序列预测
// 4. 定时报表：按日/周/月/季生成报表，导出并通知
//
// 命令：
//
//	analytics serve            启动API和后台调度（默认）
//	analytics etl --days 30    执行一次ETL（回填历史数据）
//	analytics migrate          只执行数据库迁移
package main

import (
	"fmt"
	"os"

	"github.com/codelieche/analytics/pkg/app"
	"github.com/codelieche/analytics/pkg/config"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动API Server和后台调度",
		Run: func(cmd *cobra.Command, args []string) {
			app.Run()
		},
	}
}

func newETLCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "etl",
		Short: "执行一次ETL流水线",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return fmt.Errorf("--days必须大于0")
			}
			runLog, err := app.RunETL(days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "etl run %d %s: processed=%d skipped=%d\n",
				runLog.ID, runLog.Status, runLog.RecordsProcessed, runLog.RecordsSkipped)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", config.ETL.WindowDays, "抽取最近N天的工单")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "执行数据库迁移",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate()
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "analytics",
		Short:        "工单分析数据仓库",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			app.Run()
		},
	}
	rootCmd.AddCommand(newServeCmd(), newETLCmd(), newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
