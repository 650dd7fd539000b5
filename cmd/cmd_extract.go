package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"suapemap/browser"
	"suapemap/cache"
	"suapemap/config"
	"suapemap/extract"
	"suapemap/feature"
	"suapemap/fetch"
	"suapemap/offline"
	"suapemap/scraper"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type extractOptions struct {
	output  string
	offline string
	browser string
	port    int
	format  string
	print   bool
}

var extractOpts = &extractOptions{}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the companies and write the collection (default)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		extractOpts.apply(cmd.Flags(), &cfg)
		cfg.Verbose = verbose
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sources, closeSources := buildSources(cfg)
		defer closeSources()

		_, err = run(ctx, cfg, scraper.NewService(extract.NewParser(), sources...), extractOpts.print)
		return err
	},
}

func init() {
	addExtractFlags(extractCmd)
	rootCmd.AddCommand(extractCmd)
}

func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&extractOpts.output, "output", "o", "", "Output file (default "+config.DefaultOutputPath+", or "+config.DefaultLegacyOutputPath+" with --format json)")
	f.StringVar(&extractOpts.offline, "offline", "", "Saved copy of the page used when the live strategies fail")
	f.StringVar(&extractOpts.browser, "browser", "", "Chrome executable used by the browser strategy (default: looked up in PATH)")
	f.IntVar(&extractOpts.port, "port", 0, "Remote debugging port for the browser (0 picks a free port)")
	f.StringVar(&extractOpts.format, "format", "", "Output format: geojson or json")
	f.BoolVar(&extractOpts.print, "print", false, "Print one line per company")
}

// apply overrides cfg with the flags the user set explicitly
func (o *extractOptions) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("output") {
		cfg.OutputPath = o.output
	}
	if flags.Changed("offline") {
		cfg.OfflinePath = o.offline
	}
	if flags.Changed("browser") {
		cfg.BrowserPath = o.browser
	}
	if flags.Changed("port") {
		cfg.BrowserPort = o.port
	}
	if flags.Changed("format") {
		cfg.Format = o.format
	}
}

// buildSources returns the strategies in their fixed order of preference:
// browser, network, offline. Live strategies go through the Redis cache when
// one is configured
func buildSources(cfg config.Config) ([]scraper.Source, func()) {
	bcfg := browser.DefaultConfig(cfg.URL, cfg.BrowserPath)
	bcfg.Port = cfg.BrowserPort
	bcfg.UserAgent = fetch.DefaultUserAgent

	live := []scraper.Source{browser.New(bcfg), fetch.New(cfg.URL)}
	closer := func() {}
	if cfg.RedisAddr != "" {
		store := cache.NewStore(cfg.RedisAddr)
		for i, src := range live {
			live[i] = cache.Wrap(store, cfg.CacheTTL, cfg.URL, extract.DefaultSelectors.Block, src)
		}
		closer = func() { _ = store.Close() }
	}

	return append(live, offline.New(cfg.OfflinePath)), closer
}

// run executes the pipeline and writes the output once on success. Exhaustion
// is already logged by the service and is reported as a nil error so the
// process exits normally
func run(ctx context.Context, cfg config.Config, svc *scraper.Service, printLines bool) (*scraper.Result, error) {
	res, err := svc.Run(ctx)
	if errors.Is(err, scraper.ErrExhausted) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if printLines {
		printCompanies(res.Collection.Features)
	}

	out := cfg.Output()
	switch cfg.Format {
	case config.FormatJSON:
		err = feature.WriteLegacyFile(out, res.Collection.Features)
	default:
		err = feature.WriteFile(out, res.Collection)
	}
	if err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}

	log.Info().
		Str("out", out).
		Str("source", res.Source).
		Int("companies", len(res.Collection.Features)).
		Msg("wrote output")
	return res, nil
}

func printCompanies(features []feature.Feature) {
	for i, f := range features {
		c, _ := f.Company()
		fmt.Printf("%03d. %s | %s | %v, %v\n", i+1, c.Name, c.Cluster, c.Lat, c.Lng)
	}
}
