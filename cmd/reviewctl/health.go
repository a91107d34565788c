package main

import (
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var flags engineFlags

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the system health summary for the outputs of a review request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := flags.logger()
			if err != nil {
				return err
			}
			req, err := flags.readRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			rel, err := flags.reliability(logger)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rel.CalculateSystemHealth(req.Outputs))
		},
	}
	flags.register(cmd)
	return cmd
}
