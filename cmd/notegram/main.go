// Package main implements the notegram command line and MCP server.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "notegram",
		Short: "Publish vault notes to Telegram",
		Long: `notegram publishes Markdown notes from an Obsidian-style vault to
Telegram chats. Notes are converted to MarkdownV2, embedded images and
documents are sent as media, and every note can go to one or more saved
destinations.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")

	cmd.AddCommand(
		newPublishCmd(&configPath),
		newPreviewCmd(&configPath),
		newPresetsCmd(&configPath),
		newServeCmd(&configPath),
	)

	return cmd
}

func main() {
	if err := fang.Execute(
		context.Background(),
		newRootCmd(),
		fang.WithVersion(version),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}
