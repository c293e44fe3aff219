// Package main implements riskctl, an operator CLI for the IntegrityOS API server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/kiranshivaraju/integrityos/internal/client"
	"github.com/kiranshivaraju/integrityos/pkg/models"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	serverURL string
	timeout   time.Duration
	asJSON    bool
}

func (o *options) client() *client.HTTPClient {
	return client.NewHTTPClient(o.serverURL, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "riskctl",
		Short: "CLI for IntegrityOS risk service operations",
		Long: `riskctl talks to the IntegrityOS HTTP API. It checks server health, classifies
measurements, and retrains or rebuilds the risk model.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.serverURL, "server", envOr("INTEGRITYOS_URL", "http://localhost:8080"), "IntegrityOS server URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "request timeout")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print raw JSON")

	root.AddCommand(
		newHealthCmd(opts),
		newPredictCmd(opts),
		newTrainCmd(opts),
		newBootstrapCmd(opts),
		newModelCmd(opts),
	)
	return root
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := opts.client().Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), h)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", h.Status)
			for _, name := range sortedKeys(h.Services) {
				fmt.Fprintf(out, "  %s: %s\n", name, h.Services[name])
			}
			return nil
		},
	}
}

func newPredictCmd(opts *options) *cobra.Command {
	var p1, p2, p3, temp, hum float64
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Classify one set of measurements",
		Long: `Classify one set of measurements. Omitted flags take the server defaults
(0 for param1..param3, 20 for temperature, 60 for humidity).

Examples:
  riskctl predict --param1 12 --param2 8 --param3 3.5
  riskctl predict --param3 4 --temperature 31 --humidity 85 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in models.FeatureInput
			flags := cmd.Flags()
			for name, dst := range map[string]**float64{
				"param1":      &in.Param1,
				"param2":      &in.Param2,
				"param3":      &in.Param3,
				"temperature": &in.Temperature,
				"humidity":    &in.Humidity,
			} {
				if flags.Changed(name) {
					v, _ := flags.GetFloat64(name)
					*dst = &v
				}
			}

			pred, err := opts.client().Predict(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("predict: %w", err)
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), pred)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Risk: %s\n", pred.Label)
			fmt.Fprintf(out, "Recommendation: %s\n", pred.Recommendation)
			for _, l := range models.RiskLabels {
				fmt.Fprintf(out, "  %-7s %.3f\n", l, pred.Probabilities[l])
			}
			if pred.Error != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", pred.Error)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&p1, "param1", 0, "measurement parameter 1")
	cmd.Flags().Float64Var(&p2, "param2", 0, "measurement parameter 2")
	cmd.Flags().Float64Var(&p3, "param3", 0, "measurement parameter 3")
	cmd.Flags().Float64Var(&temp, "temperature", models.DefaultTemperature, "ambient temperature")
	cmd.Flags().Float64Var(&hum, "humidity", models.DefaultHumidity, "relative humidity")
	return cmd
}

func newTrainCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Retrain the model on labeled inspections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().Train(cmd.Context())
			if err != nil {
				return fmt.Errorf("train: %w", err)
			}
			return printTrainResult(cmd.OutOrStdout(), res, opts.asJSON)
		},
	}
}

func newBootstrapCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Rebuild the model from synthetic data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := opts.client().Bootstrap(cmd.Context())
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			return printTrainResult(cmd.OutOrStdout(), res, opts.asJSON)
		},
	}
}

func newModelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Show the active model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := opts.client().ModelInfo(cmd.Context())
			if err != nil {
				return fmt.Errorf("model info: %w", err)
			}
			if opts.asJSON {
				return printJSON(cmd.OutOrStdout(), info)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Type:\t%s (%d trees, depth %d)\n", info.ModelType, info.Trees, info.MaxDepth)
			fmt.Fprintf(tw, "Loaded:\t%t\n", info.Loaded)
			if info.Loaded {
				fmt.Fprintf(tw, "Model ID:\t%s\n", info.ModelID)
				fmt.Fprintf(tw, "Source:\t%s\n", info.Source)
				fmt.Fprintf(tw, "Samples:\t%d\n", info.Samples)
				fmt.Fprintf(tw, "Accuracy:\t%.3f\n", info.Accuracy)
				if info.TrainedAt != nil {
					fmt.Fprintf(tw, "Trained:\t%s\n", info.TrainedAt.Format(time.RFC3339))
				}
			}
			return tw.Flush()
		},
	}
}

func printTrainResult(w io.Writer, res *client.TrainResult, asJSON bool) error {
	if asJSON {
		return printJSON(w, res)
	}
	fmt.Fprintf(w, "Trained %s model on %d samples, accuracy %.3f\n", res.Source, res.TrainingSamples, res.Accuracy)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
