package main

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fxpl/gitmem/config"
	"github.com/fxpl/gitmem/explore"
	"github.com/fxpl/gitmem/interp"
	"github.com/fxpl/gitmem/parser"
)

func newRootCmd(code *int) *cobra.Command {
	var (
		outputPath  string
		configPath  string
		interactive bool
		exploreMode bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:           "gitmem <input-file>",
		Short:         "Interpreter and bounded model checker for the gitmem language",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			debug := cfg.Verbose
			if cmd.Flags().Changed("verbose") {
				debug = verbose
			}
			if debug {
				log.SetLevel(log.DebugLevel)
			}

			input := args[0]
			out := interp.GraphOutput{
				Path: config.ResolveOutput(outputPath, cfg.Output, input),
			}
			out.Format = config.ResolveFormat(cfg.Format, out.Path)

			block, err := parser.ParseFile(input)
			if err != nil {
				return err
			}

			switch {
			case interactive:
				if err := interp.Interactive(block, out, os.Stdin, os.Stdout); err != nil {
					return err
				}
			case exploreMode:
				*code = explore.Run(block, out, os.Stdout)
			default:
				gctx := interp.New(block)
				*code = gctx.Run()
				if err := out.Write(gctx); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "graph output file (default: input stem + \".dot\")")
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: gitmem.yaml if present)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "choose which thread to schedule at each sync point")
	cmd.Flags().BoolVarP(&exploreMode, "explore", "e", false, "explore all schedulings and report failing ones")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug-level diagnostic tracing")
	cmd.MarkFlagsMutuallyExclusive("interactive", "explore")

	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	log.SetFormatter(&log.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC822,
	})

	code := 0
	cmd := newRootCmd(&code)
	if err := cmd.Execute(); err != nil {
		log.Errorf("%v", err)
		return 1
	}
	return code
}
