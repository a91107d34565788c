package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/xela07ax/trustgate/internal/domain"
	"github.com/xela07ax/trustgate/internal/engine"
	"go.uber.org/zap"
)

// engineFlags — общие для evaluate и health настройки движка.
type engineFlags struct {
	file      string
	threshold float64
	critical  []string
	weights   map[string]string
	verbose   bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "review request JSON (\"-\" for stdin)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", engine.DefaultMinConfidence, "minimum aggregate confidence")
	cmd.Flags().StringSliceVar(&f.critical, "critical", []string{string(domain.AgentSecurityAnalysis)}, "critical agent types")
	cmd.Flags().StringToStringVar(&f.weights, "weights", nil, "reliability weights, e.g. security_analysis=1,code_quality=0.6")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log engine decisions to stderr")
	_ = cmd.MarkFlagRequired("file")
}

func (f *engineFlags) logger() (*zap.Logger, error) {
	if !f.verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func (f *engineFlags) reliability(logger *zap.Logger) (*engine.ReliabilityEngine, error) {
	cfg := engine.DefaultReliabilityConfig()
	cfg.MinConfidence = f.threshold
	cfg.CriticalAgents = make([]domain.AgentType, 0, len(f.critical))
	for _, t := range f.critical {
		cfg.CriticalAgents = append(cfg.CriticalAgents, domain.AgentType(t))
	}
	if len(f.weights) > 0 {
		cfg.Weights = make(map[domain.AgentType]float64, len(f.weights))
		for t, raw := range f.weights {
			w, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("weight %s: %w", t, err)
			}
			cfg.Weights[domain.AgentType(t)] = w
		}
	}
	return engine.NewReliabilityEngine(cfg, logger)
}

func (f *engineFlags) readRequest(stdin io.Reader) (domain.ReviewRequest, error) {
	var req domain.ReviewRequest

	r := stdin
	if f.file != "-" {
		file, err := os.Open(f.file)
		if err != nil {
			return req, err
		}
		defer file.Close()
		r = file
	}

	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return req, fmt.Errorf("decode %s: %w", f.file, err)
	}
	return req, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reviewctl",
		Short: "Offline evaluation of multi-agent review results",
		Long: `reviewctl runs the reliability gate and the decision agent over a saved
review request, without PostgreSQL, Redis or remote experts.

Examples:
  reviewctl evaluate -f request.json
  reviewctl evaluate -f request.json --threshold 0.8 --detect-conflicts
  cat request.json | reviewctl health -f -`,
		SilenceUsage: true,
	}
	root.AddCommand(newEvaluateCmd(), newHealthCmd())
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
