// Package main provides the datalyst CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cellbyte/datalyst/cli"
	"github.com/cellbyte/datalyst/config"
	"github.com/cellbyte/datalyst/dataset"
)

var (
	// Global flags
	provider  string
	model     string
	maxIter   int
	histPairs int
	outputDir string
	quiet     bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "datalyst [paths...]",
		Short: "Chat with your tabular data",
		Long: `An interactive analyst for delimited datasets.

Point it at .csv/.tsv files or a directory containing them, then ask
questions in plain language. The model answers by running small analysis
scripts against the loaded tables and can save charts, exports, and
written reports along the way.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(args)
			if err != nil {
				return err
			}
			return session.RunInteractive(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "openai", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "Model override for the chosen provider")
	rootCmd.PersistentFlags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum model round trips per question")
	rootCmd.PersistentFlags().IntVar(&histPairs, "history", 0, "Conversation exchanges kept in context")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "Directory for charts, exports, and reports")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Hide the tool trace, print only answers")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(schemaCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	var dataPaths []string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := newSession(dataPaths)
			if err != nil {
				return err
			}
			return session.Ask(cmd.Context(), args[0])
		},
	}

	cmd.Flags().StringArrayVarP(&dataPaths, "data", "d", nil, "Dataset file or directory (repeatable)")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [paths...]",
		Short: "Print the inferred schema of datasets without asking anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No provider needed; this never talks to a model.
			registry := dataset.NewRegistry()
			for _, path := range args {
				stat, err := os.Stat(path)
				if err != nil {
					return err
				}
				if stat.IsDir() {
					_, failures := registry.LoadDirectory(path)
					for _, fail := range failures {
						fmt.Fprintf(os.Stderr, "warning: %v\n", fail)
					}
					continue
				}
				if _, err := registry.Load(path); err != nil {
					return err
				}
			}
			fmt.Println(registry.SchemaSummary())
			return nil
		},
	}
}

// newSession builds settings from flags and environment, validates
// credentials, and loads the requested datasets.
func newSession(paths []string) (*cli.Session, error) {
	settings, err := config.New(provider)
	if err != nil {
		return nil, err
	}

	if model != "" {
		settings.LLM.Model = model
	}
	if maxIter > 0 {
		settings.Agent.MaxIterations = maxIter
	}
	if histPairs > 0 {
		settings.Agent.HistoryPairs = histPairs
	}
	if outputDir != "" {
		settings.Paths.OutputDir = outputDir
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	session, err := cli.NewSession(settings)
	if err != nil {
		return nil, err
	}
	session.Quiet = quiet

	if err := session.LoadPaths(paths); err != nil {
		return nil, err
	}
	return session, nil
}
