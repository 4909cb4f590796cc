package chartsync

import (
	"github.com/quantwise/chartsync/core"
	"github.com/quantwise/chartsync/plot"
)

// Option is a functional option for configuring an App instance
type Option func(*App)

// WithLogger replaces the default environment-configured logger.
func WithLogger(log core.Logger) Option {
	return func(app *App) {
		app.log = log
	}
}

// WithLogLevel sets the log level. eg: core.DebugLevel, core.InfoLevel, core.WarnLevel, core.ErrorLevel
func WithLogLevel(level core.Level) Option {
	return func(app *App) {
		app.log.SetLevel(level)
	}
}

// WithStorage sets the run storage, by default it uses a local file called chartsync.db
func WithStorage(storage core.RunStorage) Option {
	return func(app *App) {
		app.storage = storage
	}
}

// WithNotifier registers a notifier, currently only telegram is supported
func WithNotifier(notifier core.Notifier) Option {
	return func(app *App) {
		app.notifier = notifier
		if withStart, ok := notifier.(core.NotifierWithStart); ok {
			app.telegram = withStart
		}
	}
}

// WithChartOptions forwards options to the chart created by NewApp. Ignored
// when WithChart provides a ready chart.
func WithChartOptions(options ...plot.Option) Option {
	return func(app *App) {
		app.chartOptions = append(app.chartOptions, options...)
	}
}

// WithChart sets a preconfigured chart instead of letting NewApp build one.
func WithChart(chart *plot.Chart) Option {
	return func(app *App) {
		app.chart = chart
	}
}

// WithServer replaces the standard HTTP server, used by tests
func WithServer(server plot.HTTPServer) Option {
	return func(app *App) {
		app.server = server
	}
}
