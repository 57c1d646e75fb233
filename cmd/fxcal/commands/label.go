package commands

import (
	"log/slog"
	"os"

	"fxlab/lib/serviceutil"
	"fxlab/services/align"
	"fxlab/services/label"

	"github.com/spf13/cobra"
)

var labelInput *string
var labelSymbol *string
var labelOut *string
var labelImpacts *[]string
var labelMaxMinutes *int
var labelMinRange *float64
var labelHorizon *int
var labelThreshold *float64

func init() {
	labelInput = labelCmd.Flags().String("input", "", "Tagged OHLCV csv, required.")
	labelSymbol = labelCmd.Flags().String("symbol", "", "Traded symbol like EURUSDm, required.")
	labelOut = labelCmd.Flags().String("out", "", "Output csv path, required.")
	labelImpacts = labelCmd.Flags().StringSlice("impact", label.DefaultFilterOptions.AllowedImpacts, "Allowed news impact values.")
	labelMaxMinutes = labelCmd.Flags().Int("max-minutes", label.DefaultFilterOptions.MaxMinutesFromNews, "Maximum |minutes_from_news|.")
	labelMinRange = labelCmd.Flags().Float64("min-range", label.DefaultFilterOptions.MinCandleRange, "Minimum high-low candle range.")
	labelHorizon = labelCmd.Flags().Int("horizon", label.DefaultLabelOptions.Horizon, "Candles ahead to compare the close against.")
	labelThreshold = labelCmd.Flags().Float64("threshold", label.DefaultLabelOptions.Threshold, "Price delta for an up/down label.")
	labelCmd.MarkFlagRequired("input")
	labelCmd.MarkFlagRequired("symbol")
	labelCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(labelCmd)
}

var labelCmd = &cobra.Command{
	Use:   "label --input FILE --symbol SYM --out FILE [--impact Medium,High] [--horizon 3]",
	Short: "Filters tagged candles by news relevance and volatility, then labels future moves.",
	Run: func(cmd *cobra.Command, args []string) {
		in, err := os.Open(*labelInput)
		if err != nil {
			serviceutil.Fatal("failed to open input", err)
		}
		defer in.Close()
		rows, err := align.ReadCandles(in)
		if err != nil {
			serviceutil.Fatal("failed to read input", err)
		}

		filtered := label.Filter(cmd.Context(), rows, *labelSymbol, label.FilterOptions{
			AllowedImpacts:     *labelImpacts,
			MaxMinutesFromNews: *labelMaxMinutes,
			MinCandleRange:     *labelMinRange,
		})
		slog.Info("filtered rows", "kept", len(filtered), "total", len(rows))

		labeled := label.LabelRows(cmd.Context(), filtered, label.LabelOptions{
			Horizon:   *labelHorizon,
			Threshold: *labelThreshold,
		})

		out, err := os.Create(*labelOut)
		if err != nil {
			serviceutil.Fatal("failed to create output", err)
		}
		defer out.Close()
		if err := align.WriteCandles(out, labeled); err != nil {
			serviceutil.Fatal("failed to write output", err)
		}

		slog.Info("labeled candles written", "path", *labelOut, "rows", len(labeled))
	},
}
