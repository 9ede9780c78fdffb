package cmd

import (
	"context"
	"fmt"
	"time"

	"melodify/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "初始化数据库表结构",
	Long:  `创建曲库表 (songs, albums) 并通过 GORM 迁移用户表。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ConnectDB(cfg); err != nil {
			return err
		}
		defer db.CloseDB()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		if err := db.InitDB(ctx, db.DB); err != nil {
			return fmt.Errorf("初始化曲库表失败: %w", err)
		}
		fmt.Println("曲库表已就绪")

		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()
		if err := db.AutoMigrate(db.GormDB); err != nil {
			return err
		}
		fmt.Println("用户表迁移完成")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
