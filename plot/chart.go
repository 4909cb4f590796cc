package plot

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/quantwise/chartsync/core"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

// Chart owns the single visual surface shown to the host. It is the only
// component allowed to touch the surface: the synchronizer hands it a
// finished ChartView and the chart disposes the previous surface, acquires
// a fresh one and populates it.
type Chart struct {
	sync.Mutex
	port          int
	debug         bool
	theme         string
	mounted       bool
	state         State
	surface       Surface
	view          *core.ChartView
	generation    uint64
	scriptContent string
	indexHTML     *template.Template
	lastUpdate    time.Time
	log           core.Logger
	wsManager     *WebSocketManager

	// newSurface is replaceable for tests
	newSurface func(ticker string) Surface
}

// Option defines a function type for configuring a Chart instance
type Option func(*Chart)

// WithPort sets the HTTP server port
func WithPort(port int) Option {
	return func(chart *Chart) {
		chart.port = port
	}
}

// WithDebug enables debug mode (disables minification)
func WithDebug() Option {
	return func(chart *Chart) {
		chart.debug = true
	}
}

// WithTheme sets the visual theme ("light" or "dark"). Affects colors
// only, never data.
func WithTheme(theme string) Option {
	return func(chart *Chart) {
		chart.theme = theme
	}
}

// WithSurfaceFactory replaces the surface constructor. Used by tests to
// observe lifecycle transitions.
func WithSurfaceFactory(factory func(ticker string) Surface) Option {
	return func(chart *Chart) {
		chart.newSurface = factory
	}
}

// NewChart creates a new chart instance with the provided options
func NewChart(log core.Logger, options ...Option) (*Chart, error) {
	chart := &Chart{
		port:  8080,
		theme: "light",
		state: StateUnmounted,
		log:   log,
	}

	// Apply all options
	for _, option := range options {
		option(chart)
	}

	// Parse chart HTML template
	var err error
	chart.indexHTML, err = template.ParseFS(staticFiles, "assets/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	// Read and transpile chart JavaScript
	chartJS, err := staticFiles.ReadFile("assets/js/main.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read main.js: %w", err)
	}

	transpileChartJS := api.Transform(string(chartJS), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2015,
		MinifySyntax:      !chart.debug,
		MinifyIdentifiers: !chart.debug,
		MinifyWhitespace:  !chart.debug,
	})

	if len(transpileChartJS.Errors) > 0 {
		return nil, fmt.Errorf("chart script failed with: %v", transpileChartJS.Errors)
	}

	chart.scriptContent = string(transpileChartJS.Code)

	// Create WebSocket manager
	chart.wsManager = NewWebSocketManager(log, chart)

	if chart.newSurface == nil {
		chart.newSurface = func(ticker string) Surface {
			return newWebSurface(ticker, chart.theme, chart.wsManager)
		}
	}

	return chart, nil
}

// GetPort returns the configured port
func (c *Chart) GetPort() int {
	return c.port
}

// GetWSManager returns the WebSocket manager
func (c *Chart) GetWSManager() *WebSocketManager {
	return c.wsManager
}

// State returns the current lifecycle state.
func (c *Chart) State() State {
	c.Lock()
	defer c.Unlock()
	return c.state
}

// Mounted reports whether the chart has a mount target. Synchronization is
// a no-op until handlers are registered on a server.
func (c *Chart) Mounted() bool {
	c.Lock()
	defer c.Unlock()
	return c.mounted
}

// SetTheme switches the color theme for subsequently acquired surfaces.
func (c *Chart) SetTheme(theme string) {
	c.Lock()
	defer c.Unlock()
	c.theme = theme
}

// RegisterHandlers registers all necessary handlers on the HTTP server and
// mounts the chart.
func (c *Chart) RegisterHandlers(server HTTPServer) {
	// Register static file handler
	server.RegisterFileServer("/assets/", http.FS(staticFiles))

	// Register API handlers
	server.RegisterHandler("/health", c.handleHealth)
	server.RegisterHandler("/history", c.handleTradeHistoryData)
	server.RegisterHandler("/ws", c.wsManager.HandleWebSocket)
	server.RegisterHandler("/", c.handleIndex)

	c.Lock()
	c.mounted = true
	c.Unlock()
}

// Apply displays a finished view. The previous surface is fully disposed
// before the new one is acquired so two surfaces never hold data at the
// same time. A view from a superseded pass is refused.
func (c *Chart) Apply(view *core.ChartView, generation uint64) error {
	c.Lock()
	defer c.Unlock()

	if !c.mounted {
		return core.ErrPrecondition
	}

	if generation < c.generation {
		c.log.Debugf("discarding stale chart view (generation %d < %d)", generation, c.generation)
		return core.ErrSuperseded
	}
	c.generation = generation

	// Release first, acquire second
	c.disposeLocked()

	surface := c.newSurface(view.Ticker)
	c.state = StateReady
	c.surface = surface

	if err := c.populate(surface, view); err != nil {
		surface.Dispose()
		c.surface = nil
		c.state = StateDisposed
		return err
	}

	c.view = view
	c.state = StateDisplaying
	c.lastUpdate = time.Now()

	return nil
}

// populate fills a freshly acquired surface from the view. Rendering is
// not expected to fail under normal operation; a panic in a surface
// implementation is converted into an error so the caller can still
// guarantee disposal.
func (c *Chart) populate(surface Surface, view *core.ChartView) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chart rendering failed: %v", r)
		}
	}()

	surface.SetPrices(view.Prices)

	for _, overlay := range view.Overlays {
		indicator, _, _ := splitOverlayKey(overlay.Key)
		surface.AddOverlay(overlay.Key, ColorFor(indicator), overlay.Points)
	}

	surface.SetMarkers(view.Markers)
	surface.FitContent()

	return nil
}

// Dispose releases the current surface, if any. Terminal until the next
// Apply acquires a fresh surface.
func (c *Chart) Dispose() {
	c.Lock()
	defer c.Unlock()
	c.disposeLocked()
}

func (c *Chart) disposeLocked() {
	if c.surface == nil {
		return
	}

	c.surface.Dispose()
	c.surface = nil
	c.view = nil
	c.state = StateDisposed
}

// currentSnapshot returns the drawable state for a newly connected client,
// or nil when nothing is displayed.
func (c *Chart) currentSnapshot() map[string]any {
	c.Lock()
	defer c.Unlock()

	ws, ok := c.surface.(*webSurface)
	if !ok || ws == nil {
		return nil
	}

	return ws.snapshot()
}

// splitOverlayKey breaks an overlay key like "SMA_20" into indicator name
// and period. Keys without a period separator return the whole key as the
// indicator name.
func splitOverlayKey(key string) (indicator, period string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '_' {
			return key[:i], key[i+1:], true
		}
	}
	return key, "", false
}
