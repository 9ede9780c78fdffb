package cmd

import (
	"fmt"
	"sort"

	"melodify/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioStats  bool
	minioUsage  bool
	minioDelete bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的文件，支持列出文件、查看统计信息、按类型统计用量、删除目录等功能。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		ctx := cmd.Context()
		store, err := storage.NewAssetStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("无法连接到MinIO: %w", err)
		}

		switch {
		case minioDelete:
			if minioPrefix == "" {
				return fmt.Errorf("删除操作需要指定目录前缀")
			}
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				return err
			}
			fmt.Printf("已删除 %d 个对象 (前缀: %s)\n", n, minioPrefix)

		case minioUsage:
			usage, err := store.Usage(ctx)
			if err != nil {
				return err
			}
			categories := make([]string, 0, len(usage))
			for c := range usage {
				categories = append(categories, c)
			}
			sort.Strings(categories)
			for _, c := range categories {
				fmt.Printf("%-8s %s\n", c, storage.FormatSize(usage[c]))
			}

		default:
			objects, stats, err := store.List(ctx, minioPrefix)
			if err != nil {
				return err
			}
			if !minioStats {
				for _, obj := range objects {
					fmt.Printf("%-60s %10s  %s\n", obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Format("2006-01-02 15:04:05"))
				}
			}
			fmt.Printf("\n对象数: %d, 总大小: %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

func init() {
	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "对象前缀，例如 audio/")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示统计信息")
	minioCmd.Flags().BoolVarP(&minioUsage, "usage", "u", false, "按文件类型统计用量")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定前缀下的所有对象")
	rootCmd.AddCommand(minioCmd)
}
