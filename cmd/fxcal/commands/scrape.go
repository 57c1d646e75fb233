package commands

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"fxlab/lib/configutil"
	ff "fxlab/lib/scrapers/forexfactory"
	"fxlab/lib/serviceutil"
	"fxlab/lib/sqliteutil"
	"fxlab/lib/timezone"
	"fxlab/services/calendar"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type ScrapeConfig struct {
	Http    ff.HTTPFetcherOptions    `json:"http"`
	Browser ff.BrowserFetcherOptions `json:"browser"`
}

var scrapeStart *string
var scrapeEnd *string
var scrapeOut *string
var scrapeDb *string
var scrapeBrowser *bool

func init() {
	scrapeStart = scrapeCmd.Flags().String("start", "", "Start date (YYYY-MM-DD), required.")
	scrapeEnd = scrapeCmd.Flags().String("end", "", "End date (YYYY-MM-DD), required.")
	scrapeOut = scrapeCmd.Flags().String("out", "calendar", "Directory for weekly tables and the merged calendar.")
	scrapeDb = scrapeCmd.Flags().String("db", "", "Optional sqlite database to upsert the merged calendar into.")
	scrapeBrowser = scrapeCmd.Flags().Bool("browser", true, "Fetch through a real browser instead of plain http.")
	scrapeCmd.MarkFlagRequired("start")
	scrapeCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape --start 2024-07-01 --end 2025-07-11 [--out DIR] [--db FILE] [--browser=false]",
	Short: "Scrapes the economic calendar week by week and merges the results.",
	Run: func(cmd *cobra.Command, args []string) {
		start, err := time.ParseInLocation("2006-01-02", *scrapeStart, timezone.Location)
		if err != nil {
			serviceutil.Fatal("invalid --start date", err)
		}
		end, err := time.ParseInLocation("2006-01-02", *scrapeEnd, timezone.Location)
		if err != nil {
			serviceutil.Fatal("invalid --end date", err)
		}

		cfg, err := configutil.ReadConfig[ScrapeConfig]("config.json5")
		if err != nil && !os.IsNotExist(err) {
			serviceutil.Fatal("failed to read config", err)
		}

		var factory ff.FetcherFactory
		if *scrapeBrowser {
			factory = func(ctx context.Context) (ff.PageFetcher, error) {
				return ff.NewBrowserFetcher(cfg.Browser)
			}
		} else {
			factory = func(ctx context.Context) (ff.PageFetcher, error) {
				return ff.NewHTTPFetcher(cfg.Http)
			}
		}

		weeks, err := calendar.NewWeekStore(*scrapeOut)
		if err != nil {
			serviceutil.Fatal("failed to create week store", err)
		}
		debug, err := calendar.NewDebugStore("debug")
		if err != nil {
			serviceutil.Fatal("failed to create debug store", err)
		}

		campaign := calendar.NewCampaign(factory, weeks, debug)
		if *scrapeDb != "" {
			db, err := sqliteutil.OpenDB(calendar.Schema, *scrapeDb)
			if err != nil {
				serviceutil.Fatal("failed to open event store", err)
			}
			defer db.Close()
			campaign = campaign.WithEventStore(calendar.NewEventStore(db))
		}

		t1 := time.Now()
		report, err := campaign.Run(cmd.Context(), start, end)
		if err != nil {
			serviceutil.Fatal("campaign aborted", err)
		}
		slog.Info("campaign finished", "seconds", time.Since(t1).Seconds())

		printReport(report)
	},
}

func printReport(report calendar.RunReport) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"attempted", "skipped", "succeeded", "failed", "events merged"})
	t.AppendRow(table.Row{
		strconv.Itoa(report.WeeksAttempted),
		strconv.Itoa(report.WeeksSkipped),
		strconv.Itoa(report.WeeksSucceeded),
		strconv.Itoa(report.WeeksFailed),
		strconv.Itoa(report.EventsMerged),
	})
	if len(report.FailedWeeks) > 0 {
		t.AppendFooter(table.Row{"failed weeks", strings.Join(report.FailedWeeks, " ")})
	}
	t.Render()
}
