package cli

import (
	"os"

	"github.com/spf13/cobra"

	"pdfchat/internal/config"
)

// NewRootCmd builds the pdfchat command tree. Without a subcommand it serves.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "pdfchat",
		Short:         "Upload PDFs and ask questions about them",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", os.Getenv("PDFCHAT_CONFIG"), "config file (default is config.json)")

	loadConfig := func() (*config.Config, error) {
		return config.Load(cfgFile)
	}

	serveCmd := newServeCmd(loadConfig)
	rootCmd.RunE = serveCmd.RunE
	rootCmd.AddCommand(serveCmd, newExtractCmd(loadConfig))
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
