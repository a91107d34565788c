package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/xela07ax/trustgate/internal/engine"
	"github.com/xela07ax/trustgate/internal/risk"
)

var errDeferred = errors.New("review deferred to human")

func newEvaluateCmd() *cobra.Command {
	var (
		flags  engineFlags
		detect bool
		minGap int
		failOn bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Gate and synthesize a decision for a review request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := flags.logger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			req, err := flags.readRequest(cmd.InOrStdin())
			if err != nil {
				return err
			}
			rel, err := flags.reliability(logger)
			if err != nil {
				return err
			}

			var detector *risk.ConflictDetector
			if detect {
				detector = risk.NewConflictDetector(minGap, logger)
			}
			core := engine.NewReviewCore(engine.ReviewCoreDeps{
				Reliability: engine.NewReliabilityHolder(rel),
				Decider:     risk.NewDecisionAgent(logger),
				Detector:    detector,
			}, logger)

			res, err := core.ProcessReview(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if failOn && res.Escalated {
				return errDeferred
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&detect, "detect-conflicts", false, "derive risk conflicts from the outputs")
	cmd.Flags().IntVar(&minGap, "min-risk-gap", risk.DefaultMinRiskGap, "risk level gap that counts as a conflict")
	cmd.Flags().BoolVar(&failOn, "fail-on-defer", false, "exit non-zero when the review is deferred to a human")
	return cmd
}
