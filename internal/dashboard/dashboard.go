// Package dashboard runs the full engagement pipeline over the configured
// sheets and owns the contact write path.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/contact"
	"driver-engagement-audit/internal/delivery"
	"driver-engagement-audit/internal/engagement"
	"driver-engagement-audit/internal/metrics"
	"driver-engagement-audit/internal/registry"
	"driver-engagement-audit/internal/source"
	"driver-engagement-audit/internal/table"
)

// ErrNotLoaded is returned by operations that need a completed load.
var ErrNotLoaded = errors.New("dashboard has not been loaded")

// LoadError is a data-source failure that aborted a load.
type LoadError struct {
	Sheet string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load sheet %q: %v", e.Sheet, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Sheets names the four sheets a load reads.
type Sheets struct {
	Availability   string `yaml:"availability"`
	Deliveries     string `yaml:"deliveries"`
	StableRegistry string `yaml:"stable_registry"`
	UpdateRegistry string `yaml:"update_registry"`
}

func DefaultSheets() Sheets {
	return Sheets{
		Availability:   "availability",
		Deliveries:     "deliveries",
		StableRegistry: "stable_registry",
		UpdateRegistry: "update_registry",
	}
}

func (s Sheets) names() []string {
	return []string{s.Availability, s.Deliveries, s.StableRegistry, s.UpdateRegistry}
}

type Config struct {
	Logger   *slog.Logger
	Provider source.Provider
	Sheets   Sheets

	AMWindow  string
	PM1Window string
	Policy    engagement.Policy
}

func (c *Config) Validate() error {
	if c.Provider == nil {
		return errors.New("provider is required")
	}
	defaults := DefaultSheets()
	if c.Sheets.Availability == "" {
		c.Sheets.Availability = defaults.Availability
	}
	if c.Sheets.Deliveries == "" {
		c.Sheets.Deliveries = defaults.Deliveries
	}
	if c.Sheets.StableRegistry == "" {
		c.Sheets.StableRegistry = defaults.StableRegistry
	}
	if c.Sheets.UpdateRegistry == "" {
		c.Sheets.UpdateRegistry = defaults.UpdateRegistry
	}
	if c.AMWindow == "" {
		c.AMWindow = availability.DefaultAMWindow
	}
	if c.PM1Window == "" {
		c.PM1Window = availability.DefaultPM1Window
	}
	if c.AMWindow == c.PM1Window {
		return fmt.Errorf("am and pm1 windows must differ, both are %q", c.AMWindow)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Result is everything one load produces.
type Result struct {
	LoadedAt     time.Time         `json:"loaded_at"`
	Summary      []engagement.Row  `json:"summary"`
	Availability availability.Log  `json:"availability"`
	Deliveries   delivery.Summary  `json:"deliveries"`
	Stable       registry.Snapshot `json:"stable_registry"`
	Update       registry.Snapshot `json:"update_registry"`
	Diff         registry.Diff     `json:"registry_diff"`
	Queue        []contact.Entry   `json:"contact_queue"`
	Clusters     []string          `json:"clusters"`
	Policy       engagement.Policy `json:"policy"`
}

// Added returns the drivers present in the update feed but not the stable registry.
func (r *Result) Added() []registry.Entry { return r.Diff.Added }

// Removed returns the drivers present in the stable registry but not the update feed.
func (r *Result) Removed() []registry.Entry { return r.Diff.Removed }

type Dashboard struct {
	log        *slog.Logger
	provider   source.Provider
	sheets     Sheets
	classifier *availability.Classifier
	policy     engagement.Policy
	writer     *contact.Writer
	readPool   pond.ResultPool[table.Table]

	mu   sync.RWMutex
	last *Result
}

func New(cfg Config) (*Dashboard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	writer, err := contact.NewWriter(contact.WriterConfig{
		Logger:   cfg.Logger,
		Provider: cfg.Provider,
		Sheet:    cfg.Sheets.StableRegistry,
	})
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		log:        cfg.Logger,
		provider:   cfg.Provider,
		sheets:     cfg.Sheets,
		classifier: availability.NewClassifier(cfg.AMWindow, cfg.PM1Window),
		policy:     cfg.Policy,
		writer:     writer,
		readPool:   pond.NewResultPool[table.Table](len(cfg.Sheets.names())),
	}, nil
}

// Close stops the sheet reader pool.
func (d *Dashboard) Close() {
	d.readPool.StopAndWait()
}

// Load reads every sheet and recomputes the dashboard. On failure the
// previous result stays current.
func (d *Dashboard) Load(ctx context.Context) (*Result, error) {
	started := time.Now()
	result, err := d.load(ctx)
	metrics.LoadDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.Loads.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.Loads.WithLabelValues("ok").Inc()

	d.mu.Lock()
	d.last = result
	d.mu.Unlock()
	return result, nil
}

func (d *Dashboard) load(ctx context.Context) (*Result, error) {
	tables, err := d.readSheets(ctx)
	if err != nil {
		return nil, err
	}

	wide := table.NormalizeColumns(tables[0])
	log := availability.Reshape(wide)
	log = d.classifier.Apply(log)
	log = availability.ExpandClusters(log)

	deliveries := delivery.Aggregate(tables[1])
	stable := registry.FromTable(tables[2])
	update := registry.FromTable(tables[3])
	diff := registry.Reconcile(stable, update)

	summary := engagement.Summarize(log, deliveries, registry.Combine(stable, update), d.policy)
	queue := contact.WithStatuses(contact.BuildQueue(diff.Added, summary), stable)

	result := &Result{
		LoadedAt:     time.Now().UTC(),
		Summary:      summary,
		Availability: log,
		Deliveries:   deliveries,
		Stable:       stable,
		Update:       update,
		Diff:         diff,
		Queue:        queue,
		Clusters:     availability.Clusters(log),
		Policy:       d.policy,
	}
	d.observe(result)
	return result, nil
}

// readSheets fetches the four sheets concurrently, in Sheets order. Missing
// delivery and registry sheets read as empty; any other failure is a LoadError.
func (d *Dashboard) readSheets(ctx context.Context) ([]table.Table, error) {
	optional := map[string]bool{
		d.sheets.Deliveries:     true,
		d.sheets.StableRegistry: true,
		d.sheets.UpdateRegistry: true,
	}

	group := d.readPool.NewGroupContext(ctx)
	for _, name := range d.sheets.names() {
		group.SubmitErr(func() (table.Table, error) {
			t, err := d.provider.ReadTable(ctx, name)
			if err == nil {
				d.log.Debug("read sheet", "sheet", name, "rows", len(t.Rows), "columns", len(t.Header))
				return t, nil
			}
			if errors.Is(err, source.ErrSheetNotFound) && optional[name] {
				d.log.Warn("sheet not found; treating as empty", "sheet", name)
				return table.Table{}, nil
			}
			metrics.SheetReadErrs.WithLabelValues(name).Inc()
			return table.Table{}, &LoadError{Sheet: name, Err: err}
		})
	}

	tables, err := group.Wait()
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return nil, loadErr
		}
		return nil, &LoadError{Sheet: "*", Err: err}
	}
	return tables, nil
}

func (d *Dashboard) observe(r *Result) {
	metrics.SkippedDateColumns.Set(float64(len(r.Availability.SkippedColumns)))
	metrics.DroppedDeliveryRows.Set(float64(r.Deliveries.DroppedRows))
	if r.Deliveries.Resolution.Usable() {
		metrics.DeliveryColumnsMissing.Set(0)
	} else {
		metrics.DeliveryColumnsMissing.Set(1)
	}
	counts := map[engagement.Category]int{}
	for _, row := range r.Summary {
		counts[row.Category]++
	}
	for _, category := range engagement.Categories {
		metrics.Drivers.WithLabelValues(string(category)).Set(float64(counts[category]))
	}
	metrics.QueueSize.Set(float64(len(r.Queue)))

	if len(r.Availability.SkippedColumns) > 0 {
		d.log.Debug("skipped non-date availability columns", "columns", r.Availability.SkippedColumns)
	}
	if r.Deliveries.DroppedRows > 0 {
		d.log.Debug("dropped delivery rows", "rows", r.Deliveries.DroppedRows)
	}
	d.log.Info("dashboard loaded",
		"drivers", len(r.Summary),
		"records", len(r.Availability.Records),
		"added", len(r.Diff.Added),
		"removed", len(r.Diff.Removed),
		"queue", len(r.Queue),
	)
}

// Last returns the most recent successful load.
func (d *Dashboard) Last() (*Result, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last, d.last != nil
}

// Reload drops any cached sheets and loads again.
func (d *Dashboard) Reload(ctx context.Context) (*Result, error) {
	if cached, ok := d.provider.(interface{ Invalidate() }); ok {
		cached.Invalidate()
	}
	return d.Load(ctx)
}

// MarkContact records status for a queued driver, writes it to the stable
// registry and returns the updated registry. The current result is rebuilt
// against the new registry in place of a full reload.
func (d *Dashboard) MarkContact(ctx context.Context, driverID string, status contact.Status) (registry.Snapshot, error) {
	status, err := contact.ParseStatus(string(status))
	if err != nil {
		return registry.Snapshot{}, err
	}

	last, ok := d.Last()
	if !ok {
		return registry.Snapshot{}, ErrNotLoaded
	}
	entry, ok := contact.Find(last.Queue, driverID)
	if !ok {
		return registry.Snapshot{}, fmt.Errorf("%w: %s", contact.ErrNotQueued, driverID)
	}

	stable, err := d.writer.MarkContact(ctx, entry, status)
	if err != nil {
		return registry.Snapshot{}, err
	}

	d.mu.Lock()
	if d.last != nil {
		d.last = rebase(d.last, stable)
		metrics.QueueSize.Set(float64(len(d.last.Queue)))
	}
	d.mu.Unlock()
	return stable, nil
}

// rebase recomputes everything derived from the stable registry, giving the
// result the next load would produce for unchanged sheets. A contacted new
// driver leaves the new-driver part of the queue.
func rebase(r *Result, stable registry.Snapshot) *Result {
	next := *r
	next.Stable = stable
	next.Diff = registry.Reconcile(stable, r.Update)
	next.Summary = engagement.Summarize(r.Availability, r.Deliveries, registry.Combine(stable, r.Update), r.Policy)
	next.Queue = contact.WithStatuses(contact.BuildQueue(next.Diff.Added, next.Summary), stable)
	return &next
}
