package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ytget/yt-downloader-bot/internal/config"
)

const appName = "yt-downloader-bot"

// Version is set during build via -ldflags "-X main.version=X.Y.Z"
var version = "dev"

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	settings := config.NewSettings(viper.New())
	var (
		cfgFile  string
		envFiles []string
	)

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Telegram bot that downloads videos from links",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.LoadDotEnv(envFiles...); err != nil {
				return err
			}
			return settings.ReadFile(cfgFile)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file path (optional).")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default .env).")
	flags.String("log-level", config.DefaultLogLevel, "Log level: debug, info, warn, error.")
	flags.String("log-format", config.DefaultLogFormat, "Log format: text or json.")
	flags.Bool("log-add-source", false, "Add source locations to log records.")
	flags.String("language", config.DefaultLanguage, "Bot language: pt or en.")
	flags.String("work-root", "", "Directory for job work dirs (default: system temp).")

	v := settings.Viper()
	_ = v.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = v.BindPFlag(config.KeyLogFormat, flags.Lookup("log-format"))
	_ = v.BindPFlag(config.KeyLogAddSource, flags.Lookup("log-add-source"))
	_ = v.BindPFlag(config.KeyLanguage, flags.Lookup("language"))
	_ = v.BindPFlag(config.KeyWorkRoot, flags.Lookup("work-root"))

	cmd.AddCommand(newServeCmd(settings))
	cmd.AddCommand(newPollCmd(settings))
	cmd.AddCommand(newFetchCmd(settings))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
