package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"redraft/internal/config"
	"redraft/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	jsonOutput bool

	// Loaded configuration, set by PersistentPreRunE.
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "redraft",
	Short: "redraft - topic-locked rewrites of marketing drafts",
	Long: `redraft rewrites, shortens, expands and reformats a draft through a model
without letting it drift off topic.

Every transform pins the draft's critical facts (prices, dates, percentages,
brands), validates each reply against them and escalates through stricter
attempts. When the model keeps failing, a deterministic local transform is
returned instead.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		// Initialize logger
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.InitializeWithLogger(logger, cfg.Logging.Categories)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// classifyCmd classifies instructions without calling the model
var classifyCmd = &cobra.Command{
	Use:   "classify [instruction]...",
	Short: "Classify instructions into action types",
	Long: `Runs the pattern classifier on each argument and prints the action type,
category, confidence and matched signals.

Example:
  redraft classify "rút gọn bài trên" "write a caption for our new menu"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runClassify,
}

// extractCmd prints the locked context of a draft
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Show the facts and topic a transform must preserve",
	Long: `Extracts the locked context of a draft: critical entities, topic keywords,
topic summary, format and the sentences that must be kept.

Example:
  redraft extract -f draft.txt
  cat draft.txt | redraft extract -f -`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

// contractCmd prints the output contract of an instruction
var contractCmd = &cobra.Command{
	Use:   "contract [instruction]",
	Short: "Show the output contract parsed from an instruction",
	Long: `Parses word limits, tone and structure requirements from an instruction.
With --check, validates a file against the contract.

Example:
  redraft contract "viết lại dưới 50 từ, dạng gạch đầu dòng"
  redraft contract "shorten to about 40 words" --source draft.txt --check reply.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runContract,
}

// transformCmd runs one transform through the full pipeline
var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform a draft through the topic-locked pipeline",
	Long: `Sends a draft and an instruction through the full pipeline:
  1. Gate: authorize the event once
  2. Classify: detect the action (or take --action)
  3. Extract: lock the draft's entities, topic and format
  4. Orchestrate: NORMAL -> STRICT -> RELAXED attempts, then FALLBACK
  5. Persist: record the output in the session store

With --dry-run no network call is made: the model always refuses, so the
deterministic fallback is shown.`,
	Args: cobra.NoArgs,
	RunE: runTransform,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "redraft.yaml", "Config file (defaults are used when missing)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine-readable JSON")

	classifyCmd.Flags().IntVar(&classifyWorkers, "workers", 4, "Concurrent classifications")

	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Draft file, - for stdin (required)")
	_ = extractCmd.MarkFlagRequired("file")

	contractCmd.Flags().StringVar(&contractSource, "source", "", "Source draft for relative limits")
	contractCmd.Flags().StringVar(&contractCheck, "check", "", "File to validate against the contract")

	transformCmd.Flags().StringVarP(&transformFile, "file", "f", "", "Draft file, - for stdin (required)")
	transformCmd.Flags().StringVarP(&transformInstruction, "instruction", "i", "", "Instruction (required)")
	transformCmd.Flags().StringVar(&transformAction, "action", "", "Force an action type (shorten, rewrite, ...)")
	transformCmd.Flags().StringVar(&transformSession, "session", "", "Session id (default: random)")
	transformCmd.Flags().BoolVar(&transformDiff, "diff", false, "Print a word diff against the draft")
	transformCmd.Flags().BoolVar(&transformDryRun, "dry-run", false, "Do not call the model")
	_ = transformCmd.MarkFlagRequired("file")
	_ = transformCmd.MarkFlagRequired("instruction")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(contractCmd)
	rootCmd.AddCommand(transformCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// currentConfig returns the loaded config, or defaults when a command runs
// without the root pre-run (tests).
func currentConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}
