package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"agritrace.io/agritrace/internal/audit"
)

func newVerifyCmd(withService func(*cobra.Command, func(*audit.Service) error) error) *cobra.Command {
	var (
		tenant int64
		global bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute hashes and check the links of audit chains",
		Long: "verify walks audit chains in order and reports the first broken link of each.\n" +
			"Without flags, or with --global, every known chain is verified.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *audit.Service) error {
				var results []audit.VerifyResult
				if cmd.Flags().Changed("tenant") {
					res, err := svc.VerifyChain(cmd.Context(), svc.ScopeMode().ScopeFor(&tenant))
					if err != nil {
						return err
					}
					results = []audit.VerifyResult{res}
				} else {
					var err error
					results, err = svc.VerifyAll(cmd.Context())
					if err != nil {
						return err
					}
				}

				if err := writeVerifyResults(cmd.OutOrStdout(), results); err != nil {
					return err
				}
				if !audit.AllValid(results) {
					return errChainBroken
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&tenant, "tenant", 0, "verify the chain of one tenant (empresa id)")
	cmd.Flags().BoolVar(&global, "global", false, "verify every known chain")
	cmd.MarkFlagsMutuallyExclusive("tenant", "global")
	return cmd
}

func writeVerifyResults(w io.Writer, results []audit.VerifyResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCOPE\tSTATUS\tEVENTS\tBROKEN AT\tREASON")
	for _, r := range results {
		status, brokenAt := "ok", "-"
		if !r.Valid {
			status = "BROKEN"
			brokenAt = fmt.Sprintf("%d", r.BrokenAt)
		}
		reason := r.Reason
		if reason == "" {
			reason = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", r.Scope, status, r.Events, brokenAt, reason)
	}
	if len(results) == 0 {
		fmt.Fprintln(tw, "(no chains)\t\t\t\t")
	}
	return tw.Flush()
}
