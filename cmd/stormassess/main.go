// Command stormassess is the one-shot CLI: parse TRACK files, print
// seasonal statistics, export artifacts, or run a single catalogue ingest.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/leosaffin/storm-assess/internal/assess"
	"github.com/leosaffin/storm-assess/internal/catalog"
	"github.com/leosaffin/storm-assess/internal/config"
	"github.com/leosaffin/storm-assess/internal/export"
	"github.com/leosaffin/storm-assess/internal/jobs"
	"github.com/leosaffin/storm-assess/internal/log"
	"github.com/leosaffin/storm-assess/internal/storm"
	"github.com/leosaffin/storm-assess/internal/timeutil"
	"github.com/leosaffin/storm-assess/internal/track"
)

var version = "dev"

const usage = `usage: stormassess <command> [flags] [args]

Commands:
  load     parse a track file and summarise its storms
  stats    monthly storm counts and ACE for a set of track files
  export   write GeoJSON/CSV artifacts from track files
  ingest   run one catalogue ingest

Run "stormassess <command> -h" for command flags.
`

func main() {
	log.Configure(log.Config{Service: "storm-assess", Version: version})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "load":
		err = runLoad(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "ingest":
		err = runIngest(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "stormassess:", err)
		os.Exit(1)
	}
}

type trackFlags struct {
	format       string
	calendar     string
	extraColumns int
}

func (f *trackFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.format, "format", "standard", "track format (standard, hart or hurdat2)")
	fs.StringVar(&f.calendar, "calendar", "360_day", "calendar (gregorian or 360_day)")
	fs.IntVar(&f.extraColumns, "extra-columns", 0, "extra data columns in the standard layout")
}

func (f *trackFlags) options() (track.Options, error) {
	format, err := track.ParseFormat(f.format)
	if err != nil {
		return track.Options{}, err
	}
	cal, err := timeutil.ParseCalendar(f.calendar)
	if err != nil {
		return track.Options{}, err
	}
	return track.Options{Format: format, Calendar: cal, ExtraColumns: f.extraColumns}, nil
}

func loadFiles(paths []string, opts track.Options) ([]storm.Storm, error) {
	var storms []storm.Storm
	for _, path := range paths {
		s, err := track.LoadFile(path, opts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		storms = append(storms, s...)
	}
	return storms, nil
}

func runLoad(args []string) error {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	var tf trackFlags
	tf.register(fs)
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("load: want exactly one track file")
	}

	opts, err := tf.options()
	if err != nil {
		return err
	}
	storms, err := track.LoadFile(fs.Arg(0), opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "TRACK\tGENESIS\tLYSIS\tOBS\tVMAX (m/s)\tMSLP (hPa)\tACE")
	for i := range storms {
		s := &storms[i]
		genesis, err := s.GenesisDate()
		if err != nil {
			continue
		}
		lysis, _ := s.LysisDate()
		vmax, _ := s.MaxVMax()
		mslp, _ := s.MinMSLP()
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.1f\t%.1f\t%.4f\n",
			s.Number, genesis, lysis, s.Len(), vmax, mslp, s.ACE())
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d storms\n", len(storms))
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var tf trackFlags
	tf.register(fs)
	yearsFlag := fs.String("years", "", "years, e.g. 2000,2001 or 2000-2005")
	monthsFlag := fs.String("months", "1-12", "season months, e.g. 7,8,9 or 7-12")
	basin := fs.String("basin", "na", "basin (na, ep, wp, ni, si, au, sp or mdr)")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("stats: want at least one track file")
	}

	opts, err := tf.options()
	if err != nil {
		return err
	}
	years, err := parseYears(*yearsFlag)
	if err != nil {
		return err
	}
	if len(years) == 0 {
		return fmt.Errorf("stats: -years is required")
	}
	months, err := config.ParseMonths(*monthsFlag)
	if err != nil {
		return err
	}

	storms, err := loadFiles(fs.Args(), opts)
	if err != nil {
		return err
	}

	counts, err := assess.MonthlyStormCounts(storms, years, months, *basin)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "MONTH\tSTORMS")
	for i, m := range months {
		fmt.Fprintf(w, "%d\t%d\n", m, counts[i])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("YEAR  ACE")
	for _, year := range years {
		ace, err := assess.SeasonACE(storms, year, months, *basin, opts.Calendar)
		if err != nil {
			return err
		}
		fmt.Printf("%d  %.4f\n", year, ace)
	}
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	var tf trackFlags
	tf.register(fs)
	outDir := fs.String("out", ".", "output directory")
	mode := fs.String("mode", "lines", "geometry mode (lines, genesis, lysis or max)")
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		return fmt.Errorf("export: want at least one track file")
	}

	opts, err := tf.options()
	if err != nil {
		return err
	}
	var exportMode export.Mode
	switch *mode {
	case "lines":
		exportMode = export.Lines
	case "genesis":
		exportMode = export.GenesisPoints
	case "lysis":
		exportMode = export.LysisPoints
	case "max":
		exportMode = export.MaxIntensityPoints
	default:
		return fmt.Errorf("export: unknown mode %q", *mode)
	}

	storms, err := loadFiles(fs.Args(), opts)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	geoPath := filepath.Join(*outDir, "tracks.geojson")
	if err := export.WriteTracksGeoJSONFile(geoPath, storms, export.Options{Mode: exportMode}); err != nil {
		return err
	}
	csvPath := filepath.Join(*outDir, "storms.csv")
	if err := export.SummaryCSVFile(csvPath, storms); err != nil {
		return err
	}
	fmt.Printf("wrote %s and %s (%d storms)\n", geoPath, csvPath, len(storms))
	return nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file (YAML)")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log.SetLevel(cfg.LogLevel)

	store, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("open catalogue: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status, err := jobs.NewRunner(cfg, store).Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d files, %d storms, %d skipped\n",
		status.RunID, status.Files, status.Storms, status.Skipped)
	return nil
}

// parseYears accepts "2000,2001" and ranges "2000-2005".
func parseYears(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []int
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Count(p, "-") == 1 && !strings.HasPrefix(p, "-") {
			var a, b int
			if _, err := fmt.Sscanf(p, "%d-%d", &a, &b); err != nil {
				return nil, fmt.Errorf("invalid year range %q", p)
			}
			if a > b {
				return nil, fmt.Errorf("invalid year range %q: start > end", p)
			}
			for y := a; y <= b; y++ {
				out = append(out, y)
			}
			continue
		}
		var y int
		if _, err := fmt.Sscanf(p, "%d", &y); err != nil {
			return nil, fmt.Errorf("invalid year %q", p)
		}
		out = append(out, y)
	}
	return out, nil
}
