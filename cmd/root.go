package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tessera",
	Short: "Compose text templates from blocks, includes and sandboxed expressions",
	Long: `Tessera renders text templates (usually HTML) built from named blocks,
file includes, layered layout inheritance and sandboxed expressions.

Key Features:
  • [include path] expansion with cycle detection
  • [extends base] layouts with [!name]...[~name] block overrides
  • {{ for }}, {{ if }} and {{ expression }} evaluated in a sandbox
  • User functions and global variables from a features file
  • Incremental rebuilds on file changes

Quick Start:
  tessera init                    Scaffold a project
  tessera render pages/index.html Render one page to stdout
  tessera build                   Render every page to the output directory
  tessera watch                   Rebuild on changes

Command Aliases:
  init (i), render (r), build (b), list (l), watch (w)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// The context is cancelled on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tessera.yml, can also use TESSERA_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().String("root", "", "template root directory")
	rootCmd.PersistentFlags().String("features", "", "features file with variables and functions")

	bindFlag(rootCmd.PersistentFlags().Lookup("log-level"), "log.level")
	bindFlag(rootCmd.PersistentFlags().Lookup("log-format"), "log.format")
	bindFlag(rootCmd.PersistentFlags().Lookup("root"), "templates.root")
	bindFlag(rootCmd.PersistentFlags().Lookup("features"), "features.file")
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. TESSERA_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .tessera.yml in current directory
//
// Every key can also be set from the environment with the TESSERA_ prefix,
// dots replaced by underscores (TESSERA_RENDER_MAX_PASSES=4).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TESSERA_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tessera")
	}

	viper.SetEnvPrefix("TESSERA")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing default file is fine; defaults apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Warning: cannot read config file:", err)
		}
	}
}
