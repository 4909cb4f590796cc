package main

import (
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/quantwise/chartsync"
	"github.com/quantwise/chartsync/analytics"
	"github.com/quantwise/chartsync/config"
	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/notification"
	"github.com/quantwise/chartsync/plot"
	"github.com/quantwise/chartsync/simulator"
	"github.com/quantwise/chartsync/storage"
)

// Command line flags
var (
	configPath string
	simulate   bool

	// Download command flags
	ticker     string
	startDate  string
	endDate    string
	outputFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "chartsync",
		Short:   "Strategy backtest chart synchronizer",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "chartsync.yml", "Config file path")

	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildDownloadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chart and keep it synchronized with the strategy",
		RunE:  runServe,
	}

	serveCmd.Flags().BoolVar(&simulate, "simulate", false, "Use the built-in analytics simulator instead of the remote service")

	return serveCmd
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical price data to CSV",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&ticker, "ticker", "t", "", "Ticker symbol (e.g. AAPL)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2023-01-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2023-12-31)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./aapl.csv)")

	downloadCmd.MarkFlagRequired("ticker")
	downloadCmd.MarkFlagRequired("start")
	downloadCmd.MarkFlagRequired("end")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	service, err := buildAnalytics(cfg)
	if err != nil {
		return err
	}

	store, err := buildStorage(cfg)
	if err != nil {
		return err
	}

	options := []chartsync.Option{
		chartsync.WithStorage(store),
		chartsync.WithChartOptions(chartOptions(cfg)...),
	}

	if cfg.Telegram.Enabled {
		telegram, err := notification.NewTelegram(store, notification.Settings{
			Token: cfg.Telegram.Token,
			Users: cfg.Telegram.Users,
		}, chartsync.DefaultLog)
		if err != nil {
			return err
		}
		options = append(options, chartsync.WithNotifier(telegram))
	}

	app, err := chartsync.NewApp(service, cfg.BuildStrategy(), options...)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(cmd.Context())
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	service, err := buildAnalytics(cfg)
	if err != nil {
		return err
	}

	return analytics.NewDownloader(service, chartsync.DefaultLog).Download(
		cmd.Context(),
		ticker,
		startDate,
		endDate,
		outputFile,
	)
}

// buildAnalytics returns the remote service client, or a client backed by
// the in-process simulator when requested.
func buildAnalytics(cfg *config.Config) (core.Analytics, error) {
	baseURL := cfg.Service.URL

	if simulate || cfg.Simulator.Enabled {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return nil, fmt.Errorf("failed to start simulator: %w", err)
		}

		service := simulator.New(chartsync.DefaultLog, simulator.WithSeed(cfg.Simulator.Seed))
		go http.Serve(listener, service)

		baseURL = "http://" + listener.Addr().String()
		chartsync.DefaultLog.Info("analytics simulator listening on ", baseURL)
	}

	timeout, err := cfg.ServiceTimeout()
	if err != nil {
		return nil, err
	}

	client := analytics.NewClient(baseURL, chartsync.DefaultLog,
		analytics.WithHTTPClient(&http.Client{Timeout: timeout}))

	return client, nil
}

func buildStorage(cfg *config.Config) (core.RunStorage, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.FromMemory()
	case "sqlite":
		return storage.FromSQLite(cfg.Storage.Path)
	default:
		return storage.FromFile(cfg.Storage.Path)
	}
}

func chartOptions(cfg *config.Config) []plot.Option {
	options := []plot.Option{
		plot.WithPort(cfg.Chart.Port),
		plot.WithTheme(cfg.Chart.Theme),
	}

	if cfg.Chart.Debug {
		options = append(options, plot.WithDebug())
	}

	return options
}
