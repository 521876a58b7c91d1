// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dbErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "db_error_total",
		Help: "Number of failed database operations.",
	})
	dbRollbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "db_transaction_rollback",
		Help: "Number of transactions, which were rolled back.",
	})
)

func init() {
	mustRegisterPrometheusCollector(dbErrors)
	mustRegisterPrometheusCollector(dbRollbacks)
}

// DBError records a failed database operation.
func DBError() {
	dbErrors.Inc()
}

// TransactionRollback records a rolled back transaction.
func TransactionRollback() {
	dbRollbacks.Inc()
}

func mustRegisterPrometheusCollector(c prometheus.Collector) {
	err := prometheus.DefaultRegisterer.Register(c)
	if err == nil {
		return
	}
	if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return
	}
	panic(err)
}
