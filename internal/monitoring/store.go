// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package monitoring

import (
	"context"

	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/release-engineering/waiverdb/store"
)

var logger = loggo.GetLogger("waiverdb.internal.monitoring")

// StoreCollector is a prometheus.Collector that reports the number of
// stored waivers.
type StoreCollector struct {
	Store store.Store
}

var storeWaiversDesc = prometheus.NewDesc(
	"waiverdb_store_waivers",
	"Number of stored waivers",
	[]string{"state"},
	nil,
)

// Describe implements prometheus.Collector.
func (c StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- storeWaiversDesc
}

// Collect implements prometheus.Collector.
func (c StoreCollector) Collect(ch chan<- prometheus.Metric) {
	ctx := context.Background()
	all, err := c.Store.CountWaivers(ctx, &store.Query{IncludeObsolete: true})
	if err != nil {
		logger.Infof("error collecting metrics: %s", err)
		return
	}
	current, err := c.Store.CountWaivers(ctx, &store.Query{})
	if err != nil {
		logger.Infof("error collecting metrics: %s", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(storeWaiversDesc, prometheus.GaugeValue, float64(current), "current")
	ch <- prometheus.MustNewConstMetric(storeWaiversDesc, prometheus.GaugeValue, float64(all-current), "obsolete")
}
