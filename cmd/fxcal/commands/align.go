package commands

import (
	"log/slog"
	"os"
	"time"

	ff "fxlab/lib/scrapers/forexfactory"
	"fxlab/lib/serviceutil"
	"fxlab/services/align"

	"github.com/spf13/cobra"
)

var alignCandles *string
var alignNews *string
var alignWindow *int
var alignOut *string

func init() {
	alignCandles = alignCmd.Flags().String("candles", "", "OHLCV csv to tag, required.")
	alignNews = alignCmd.Flags().String("news", "", "Merged calendar csv, required.")
	alignWindow = alignCmd.Flags().Int("window", 60, "±window in minutes for matching news to a candle.")
	alignOut = alignCmd.Flags().String("out", "", "Output csv path, required.")
	alignCmd.MarkFlagRequired("candles")
	alignCmd.MarkFlagRequired("news")
	alignCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(alignCmd)
}

var alignCmd = &cobra.Command{
	Use:   "align --candles FILE --news FILE --out FILE [--window 60]",
	Short: "Tags each candle with the nearest calendar event inside a ±window.",
	Run: func(cmd *cobra.Command, args []string) {
		candlesFile, err := os.Open(*alignCandles)
		if err != nil {
			serviceutil.Fatal("failed to open candles", err)
		}
		defer candlesFile.Close()
		candles, err := align.ReadCandles(candlesFile)
		if err != nil {
			serviceutil.Fatal("failed to read candles", err)
		}

		newsFile, err := os.Open(*alignNews)
		if err != nil {
			serviceutil.Fatal("failed to open news", err)
		}
		defer newsFile.Close()
		events, err := ff.ReadCSV(newsFile)
		if err != nil {
			serviceutil.Fatal("failed to read news", err)
		}

		window := time.Duration(*alignWindow) * time.Minute
		tagged := align.Join(cmd.Context(), candles, events, window)

		out, err := os.Create(*alignOut)
		if err != nil {
			serviceutil.Fatal("failed to create output", err)
		}
		defer out.Close()
		if err := align.WriteCandles(out, tagged); err != nil {
			serviceutil.Fatal("failed to write output", err)
		}

		slog.Info("tagged candles written", "path", *alignOut, "candles", len(tagged), "events", len(events))
	},
}
