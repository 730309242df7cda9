package cmd

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	logFile string

	// Logger is shared by every subcommand, set up in initLogger once flags
	// are parsed (spec.md SPEC_FULL AMBIENT STACK "Logging").
	Logger *slog.Logger
)

// RootCmd is the base command when objdiff is invoked without a subcommand.
var RootCmd = &cobra.Command{
	Use:   "objdiff",
	Short: "Compare compiled object files across toolchains and architectures",
	Long: `objdiff decodes and diffs compiled object files (ELF, COFF, Mach-O)
across PowerPC, MIPS, ARM and x86, for decompilation and reverse-engineering
match-percentage tracking.`,
}

// Execute adds all child commands to the root command and runs it. Called
// by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .objdiff.yml in the working or home directory)")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write structured JSON logs to this file in addition to stderr")
	RootCmd.AddCommand(diffCmd, reportCmd, configCmd)
	cobra.OnInitialize(initConfig, initLogger)
}

// initConfig reads in a config file and environment variables if set,
// following the teacher's cmd/root.go pattern (cobra.OnInitialize, a
// --config flag, viper.AutomaticEnv()), generalized from a single flat
// YAML document to the §6.3 property bag.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".objdiff")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("OBJDIFF")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// initLogger wires up slog-multi to fan structured records out to a stderr
// text handler and, when --log-file is given, a JSON file handler, per
// spec.md SPEC_FULL "Logging".
func initLogger() {
	handlers := []slog.Handler{slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintln(os.Stderr, "objdiff: cannot open log file:", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelWarn}))
		}
	}

	Logger = slog.New(slogmulti.Fanout(handlers...))
}
