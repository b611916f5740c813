package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/thisisjab/fuxi/config"
	"github.com/thisisjab/fuxi/querier"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "fuxi",
		Short:        "Compile and inspect fuxi queries",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "./.config.yaml", "path to config file")

	root.AddCommand(newCompileCmd(&cfgPath), newTablesCmd(&cfgPath))

	return root
}

// newCompileCmd prints the statement for a JSON request read from stdin.
// Without a config file the default compiler is used.
func newCompileCmd(cfgPath *string) *cobra.Command {
	var count bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a JSON query request from stdin into SQL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			compiler := querier.NewCompiler(querier.Options{})
			switch cfg, err := config.Load(*cfgPath); {
			case errors.Is(err, os.ErrNotExist):
			case err != nil:
				return err
			default:
				if compiler, err = cfg.Compiler(); err != nil {
					return err
				}
			}

			var req querier.Request
			dec := json.NewDecoder(cmd.InOrStdin())
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return fmt.Errorf("cannot decode request: %w", err)
			}

			compile := compiler.CompileFetch
			if count {
				compile = compiler.CompileCount
			}

			st, err := compile(req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().BoolVar(&count, "count", false, "compile the count statement instead of the fetch")

	return cmd
}

func newTablesCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables of the configured storage with their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}

			logger, err := cfg.NewLogger()
			if err != nil {
				return err
			}

			store, err := cfg.NewStorage(logger)
			if err != nil {
				return err
			}

			if err := store.Connect(cmd.Context()); err != nil {
				return err
			}
			defer store.Close(cmd.Context()) //nolint:errcheck

			tables, err := store.Tables(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEMA\tTABLE\tROWS")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%s\t%v\n", t.Schema, t.Name, t.RowCount)
			}
			return w.Flush()
		},
	}
}
