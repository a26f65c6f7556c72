package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"agritrace.io/agritrace/internal/audit"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func newDumpCmd(withService func(*cobra.Command, func(*audit.Service) error) error) *cobra.Command {
	var (
		tenant int64
		format string
	)

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Export audit chains in chain order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != formatJSON && format != formatYAML {
				return fmt.Errorf("unsupported format %q: use %s or %s", format, formatJSON, formatYAML)
			}
			return withService(cmd, func(svc *audit.Service) error {
				var (
					events []audit.Event
					err    error
				)
				if cmd.Flags().Changed("tenant") {
					scope, filter := svc.ScopeMode().ChainView(&tenant)
					events, err = svc.ListChain(cmd.Context(), scope, filter)
				} else {
					events, err = svc.ListAllChains(cmd.Context())
				}
				if err != nil {
					return err
				}
				return writeEvents(cmd.OutOrStdout(), format, events)
			})
		},
	}
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "dump the chain of one tenant (empresa id)")
	cmd.Flags().StringVar(&format, "format", formatJSON, "output format: json or yaml")
	return cmd
}

func writeEvents(w io.Writer, format string, events []audit.Event) error {
	if events == nil {
		events = []audit.Event{}
	}
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(events); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(events); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}
