package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hatlonely/tinymodel/cfg"
	"github.com/hatlonely/tinymodel/rdb"
)

var Version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var envFiles []string

	root := &cobra.Command{
		Use:           "tinymodel",
		Short:         "TinyModel data-mapping tools",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file (yaml|json|toml|ini)")
	root.PersistentFlags().StringSliceVar(&envFiles, "env", nil, "dotenv files loaded before the config is expanded (default .env if present)")

	load := func() (*rdb.EngineOptions, error) {
		if err := loadEnv(envFiles); err != nil {
			return nil, err
		}
		var options rdb.EngineOptions
		if err := cfg.Load(configPath, &options); err != nil {
			return nil, err
		}
		// 相对路径以配置文件所在目录为基准
		if options.Schemas != "" && !filepath.IsAbs(options.Schemas) {
			options.Schemas = filepath.Join(filepath.Dir(configPath), options.Schemas)
		}
		return &options, nil
	}

	root.AddCommand(newDDLCommand(load))
	root.AddCommand(newDemoCommand(load))
	return root
}

// loadEnv 未指定文件时尝试加载当前目录的 .env，文件不存在不报错
func loadEnv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(files...)
}
