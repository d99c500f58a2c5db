package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driver_engagement_build_info",
		Help: "Build information of the driver engagement dashboard",
	}, []string{"version", "commit", "date"})

	Loads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_engagement_loads_total", Help: "Total dashboard loads by result.",
	}, []string{"result"})
	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "driver_engagement_load_duration_seconds",
		Help:    "Duration of a full dashboard load.",
		Buckets: prometheus.DefBuckets,
	})
	SheetReadErrs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_engagement_sheet_read_errors_total", Help: "Total sheet read errors.",
	}, []string{"sheet"})

	SkippedDateColumns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driver_engagement_skipped_date_columns", Help: "Availability columns dropped on the last load because their label is not a date.",
	})
	DroppedDeliveryRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driver_engagement_dropped_delivery_rows", Help: "Delivery rows dropped on the last load for unparsable dates.",
	})
	DeliveryColumnsMissing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driver_engagement_delivery_columns_missing", Help: "1 when the last load could not resolve delivery columns.",
	})

	Drivers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "driver_engagement_drivers", Help: "Summary rows by engagement category on the last load.",
	}, []string{"category"})
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "driver_engagement_contact_queue_size", Help: "Contact queue length on the last load.",
	})

	ContactWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "driver_engagement_contact_writes_total", Help: "Contact status write-backs by result.",
	}, []string{"result"})
)
