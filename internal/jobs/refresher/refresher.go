package refresher

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"

	"streamgate/internal/catalog"
	"streamgate/internal/database"
	"streamgate/internal/metrics"
)

// fetchChannelsFunc is swapped in tests so refresh runs do not hit the network.
var fetchChannelsFunc = catalog.FetchSourceChannels

// Refresher keeps the channel catalog in step with the configured sources:
// it downloads each enabled source's playlist on a schedule, persists the
// channel set, republishes the in-memory view and tells the other nodes.
type Refresher struct {
	catalog      *catalog.Catalog
	fetchTimeout time.Duration
	cron         *cron.Cron
}

func New(cat *catalog.Catalog, fetchTimeout time.Duration) *Refresher {
	return &Refresher{
		catalog:      cat,
		fetchTimeout: fetchTimeout,
		cron:         cron.New(),
	}
}

// Start schedules RefreshAll with a cron spec such as "@every 1h".
func (r *Refresher) Start(ctx context.Context, spec string) error {
	if _, err := r.cron.AddFunc(spec, func() {
		r.RefreshAll(ctx)
	}); err != nil {
		return fmt.Errorf("refresher: schedule %q: %w", spec, err)
	}
	r.cron.Start()
	log.Info("Source refresh scheduled", "spec", spec)
	return nil
}

func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// RefreshAll refreshes every enabled source. One broken origin does not stop
// the others.
func (r *Refresher) RefreshAll(ctx context.Context) {
	sources, err := database.ListSources()
	if err != nil {
		log.Error("Source refresh: listing sources failed", "error", err)
		return
	}

	for _, source := range sources {
		if !source.Enabled {
			continue
		}
		if err := r.RefreshSource(ctx, source.ID); err != nil {
			log.Warn("Source refresh failed", "source", source.Name, "error", err)
		}
	}
}

// RefreshSource downloads one source's playlist and swaps its channel set in
// the database and the live catalog. A failed fetch keeps the previously
// published channels.
func (r *Refresher) RefreshSource(ctx context.Context, sourceID uint64) error {
	source, err := database.GetSourceByID(sourceID)
	if err != nil {
		return err
	}

	channels, err := fetchChannelsFunc(ctx, source.OriginURL, r.fetchTimeout)
	if err != nil {
		metrics.CatalogRefreshes.WithLabelValues("failure").Inc()
		if dbErr := database.MarkSourceFailed(sourceID, err); dbErr != nil {
			log.Error("Source refresh: marking failure failed", "source_id", sourceID, "error", dbErr)
		}
		return err
	}

	if err := database.ReplaceSourceChannels(sourceID, channels); err != nil {
		metrics.CatalogRefreshes.WithLabelValues("failure").Inc()
		return err
	}

	r.catalog.Refresh(sourceID, source.Priority, channels)
	metrics.CatalogRefreshes.WithLabelValues("success").Inc()
	log.Info("Source refreshed", "source", source.Name, "channels", len(channels))

	if err := catalog.BroadcastRefresh(ctx, sourceID, "refresh"); err != nil {
		log.Warn("Source refresh: broadcast failed", "source_id", sourceID, "error", err)
	}
	return nil
}

// LoadPersisted seeds the in-memory catalog from the stored channel sets. It
// runs at boot and whenever another node broadcasts a refresh.
func (r *Refresher) LoadPersisted(context.Context) error {
	stored, err := database.LoadCatalog()
	if err != nil {
		return err
	}

	for _, entry := range stored {
		r.catalog.Refresh(entry.Source.ID, entry.Source.Priority, entry.Channels)
	}
	return nil
}
