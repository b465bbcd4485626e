/*
tripfetch downloads ride receipts as PDFs by driving an already running
Chrome instance over the DevTools protocol.

Launch Chrome with: chrome --remote-debugging-port=9222

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/tripfetch/tripfetch/internal/browser"
	"github.com/tripfetch/tripfetch/internal/config"
	"github.com/tripfetch/tripfetch/internal/date"
	"github.com/tripfetch/tripfetch/internal/extract"
	"github.com/tripfetch/tripfetch/internal/log"
	"github.com/tripfetch/tripfetch/internal/receipt"
	"github.com/tripfetch/tripfetch/internal/types"
	"gopkg.in/yaml.v3"
)

var version = "dev"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type cli struct {
	Version VersionFlag `short:"v" help:"Print the version and exit."`
	Debug   bool        `short:"d" help:"Set log level to 'debug'."`

	Fetch  FetchCmd  `cmd:"" help:"Download receipt PDFs for trips."`
	List   ListCmd   `cmd:"" help:"List trips found on the trips page without downloading anything."`
	Amount AmountCmd `cmd:"" help:"Extract the amount for a single trip, useful for checking the extraction heuristics against live markup."`
}

type FetchCmd struct {
	Config    string   `short:"c" default:"./config.yaml" help:"The location of the configuration file."`
	TripID    []string `help:"Specific trip ID(s) to download. Takes precedence over any date range: no filtering is applied."`
	Days      int      `default:"90" help:"Number of days back to fetch trips."`
	StartDate string   `help:"Start date for the trip range (YYYY-MM-DD). Defaults to --days before today."`
	EndDate   string   `help:"End date for the trip range (YYYY-MM-DD). Defaults to today."`
	OutputDir string   `short:"o" help:"Directory to save receipts to, overriding the configuration."`
	CDPURL    string   `help:"Chrome DevTools protocol URL, overriding the configuration."`
}

func (f *FetchCmd) Run() error {
	cfg, err := loadConfig(f.Config, f.CDPURL, f.OutputDir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := browser.Connect(ctx, cfg.CDPURL, browser.Options{
		DownloadDir:  cfg.OutputDir,
		PageLoadWait: cfg.PageLoadWait(),
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		slog.Error("make sure Chrome is running with the --remote-debugging-port=9222 flag")
		return err
	}
	defer session.Close()

	batch := receipt.NewBatch(session.Page(), cfg)

	var trips []types.TripRecord
	if len(f.TripID) > 0 {
		slog.Info(fmt.Sprintf("using %d provided trip id(s)", len(f.TripID)))
		for _, id := range f.TripID {
			trips = append(trips, types.TripRecord{ID: id})
		}
		trips = types.Dedupe(trips)
	} else {
		start, end, err := f.dateRange()
		if err != nil {
			return err
		}
		slog.Info(fmt.Sprintf("fetching trips from %s to %s", date.Format(start), date.Format(end)))
		trips, err = batch.FetchTrips(ctx, start, end)
		if err != nil {
			// the session is up, so the run itself is not a failure
			slog.Error(fmt.Sprintf("fetching trips: %v", err))
			return nil
		}
	}

	if len(trips) == 0 {
		slog.Info("no trips found")
		return nil
	}

	results := batch.Run(ctx, trips)
	printSummary(results, cfg.OutputDir)
	return nil
}

func (f *FetchCmd) dateRange() (time.Time, time.Time, error) {
	end := time.Now()
	if f.EndDate != "" {
		t, err := time.Parse(date.ISOLayout, f.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q, use YYYY-MM-DD", f.EndDate)
		}
		end = t
	}
	start := time.Now().AddDate(0, 0, -f.Days)
	if f.StartDate != "" {
		t, err := time.Parse(date.ISOLayout, f.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q, use YYYY-MM-DD", f.StartDate)
		}
		start = t
	}
	return start, end, nil
}

type ListCmd struct {
	Config    string `short:"c" default:"./config.yaml" help:"The location of the configuration file."`
	Days      int    `default:"90" help:"Number of days back to fetch trips."`
	StartDate string `help:"Start date for the trip range (YYYY-MM-DD)."`
	EndDate   string `help:"End date for the trip range (YYYY-MM-DD)."`
	CDPURL    string `help:"Chrome DevTools protocol URL, overriding the configuration."`
	YAML      bool   `short:"y" help:"Print the trips as yaml instead of a table."`
}

func (l *ListCmd) Run() error {
	cfg, err := loadConfig(l.Config, l.CDPURL, "")
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := browser.Connect(ctx, cfg.CDPURL, browser.Options{
		DownloadDir:  cfg.OutputDir,
		PageLoadWait: cfg.PageLoadWait(),
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer session.Close()

	fetch := FetchCmd{Days: l.Days, StartDate: l.StartDate, EndDate: l.EndDate}
	start, end, err := fetch.dateRange()
	if err != nil {
		return err
	}

	trips, err := receipt.NewBatch(session.Page(), cfg).FetchTrips(ctx, start, end)
	if err != nil {
		slog.Error(fmt.Sprintf("fetching trips: %v", err))
		return nil
	}

	if l.YAML {
		yamlData, err := yaml.Marshal(trips)
		if err != nil {
			return fmt.Errorf("error while marshalling trips: %w", err)
		}
		fmt.Println(string(yamlData))
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Trip", "Date"})
	for _, t := range trips {
		table.Append([]string{t.ID, t.RawDateText})
	}
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.SetBorder(false)
	table.Render()
	return nil
}

type AmountCmd struct {
	Config string `short:"c" default:"./config.yaml" help:"The location of the configuration file."`
	TripID string `arg:"" help:"The trip to extract the amount for."`
	CDPURL string `help:"Chrome DevTools protocol URL, overriding the configuration."`
}

func (a *AmountCmd) Run() error {
	cfg, err := loadConfig(a.Config, a.CDPURL, "")
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := browser.Connect(ctx, cfg.CDPURL, browser.Options{
		DownloadDir:  cfg.OutputDir,
		PageLoadWait: cfg.PageLoadWait(),
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return err
	}
	defer session.Close()

	page := session.Page()
	tripURL := fmt.Sprintf("%s/%s", cfg.TripsURL, a.TripID)
	if err := page.Navigate(ctx, tripURL, cfg.NavTimeout()); err != nil {
		slog.Error(fmt.Sprintf("navigating to %s: %v", tripURL, err))
		return nil
	}
	fmt.Println(extract.New(page, cfg.VisibilityWait()).Amount(ctx))
	return nil
}

func loadConfig(path, cdpURL, outputDir string) (*config.Config, error) {
	cfg, err := config.New(path)
	if err != nil {
		slog.Error(fmt.Sprintf("error reading config: %v", err))
		return nil, err
	}
	if cdpURL != "" {
		cfg.CDPURL = cdpURL
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	return cfg, nil
}

func printSummary(results []types.TripResult, outputDir string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Trip", "Status", "Receipt"})

	succeeded := 0
	for _, r := range results {
		if r.Err != nil {
			table.Rich(
				[]string{r.TripID, "failed", r.Err.Error()},
				[]tablewriter.Colors{
					{tablewriter.Normal, tablewriter.FgRedColor},
					{tablewriter.Normal, tablewriter.FgRedColor},
					{tablewriter.Normal, tablewriter.FgRedColor},
				})
		} else {
			succeeded++
			table.Append([]string{r.TripID, "ok", r.Path})
		}
	}
	table.SetFooter([]string{"total", fmt.Sprintf("%d/%d", succeeded, len(results)), ""})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})
	table.SetBorder(false)
	table.Render()

	if succeeded > 0 {
		slog.Info(fmt.Sprintf("receipts saved to %s", outputDir))
	}
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	// .env values back the TRIPFETCH_* config variables
	_ = godotenv.Load()

	cli := cli{
		Version: VersionFlag(getVersion()),
	}

	ctx := kong.Parse(&cli,
		kong.Vars{
			"version": string(cli.Version),
		})

	config.Debug = cli.Debug
	log.InitializeDefaultLogger()

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
