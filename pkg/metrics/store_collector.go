package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/paperlane/paperlane/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type storeStatsCollector struct {
	store             store.Store
	documentsByStatus *prometheus.Desc
	accountsByStatus  *prometheus.Desc
}

// NewStoreStatsCollector exposes document and account counts per status, read from the store on every scrape.
func NewStoreStatsCollector(s store.Store) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_%s", paperlane, name)
	}

	return &storeStatsCollector{
		store: s,
		documentsByStatus: prometheus.NewDesc(
			fqName("documents_by_status"),
			"Number of documents in each status.",
			[]string{"status"},
			prometheus.Labels{},
		),
		accountsByStatus: prometheus.NewDesc(
			fqName("accounts_by_status"),
			"Number of accounts in each status.",
			[]string{"status"},
			prometheus.Labels{},
		),
	}
}

func (c *storeStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.documentsByStatus
	ch <- c.accountsByStatus
}

// Collect implements Collector.
func (c *storeStatsCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	documents, err := c.store.Document().CountByStatus(ctx)
	if err != nil {
		zap.S().Named("store_collector").Errorf("failed to count documents: %s", err)
	} else {
		for status, total := range documents {
			ch <- prometheus.MustNewConstMetric(c.documentsByStatus, prometheus.GaugeValue, float64(total), string(status))
		}
	}

	accounts, err := c.store.Account().CountByStatus(ctx)
	if err != nil {
		zap.S().Named("store_collector").Errorf("failed to count accounts: %s", err)
		return
	}
	for status, total := range accounts {
		ch <- prometheus.MustNewConstMetric(c.accountsByStatus, prometheus.GaugeValue, float64(total), string(status))
	}
}
