package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/ngrok/sqlmw"
	"github.com/prometheus/client_golang/prometheus"
)

const instrumentedDriverName = "pgx-paperlane"

var (
	sqlVerb          = regexp.MustCompile(`^\s*(\w+)`)
	dbOpLatency      *prometheus.HistogramVec
	dbOpTotal        *prometheus.CounterVec
	registerDriverFn sync.Once
)

func init() {
	dbOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "paperlane",
		Name:      "db_op_duration_seconds",
		Help:      "Time spent on a database operation.",
		Buckets:   []float64{0.001, 0.005, 0.02, 0.1, 0.5, 1, 5},
	}, []string{"op", "verb"})
	dbOpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "paperlane",
		Name:      "db_op_total",
		Help:      "Number of database operations.",
	}, []string{"op"})

	prometheus.MustRegister(dbOpLatency, dbOpTotal)
}

// openInstrumented opens postgres through a driver that measures every operation.
func openInstrumented(connCfg *pgx.ConnConfig) (*sql.DB, error) {
	registerDriverFn.Do(func() {
		sql.Register(instrumentedDriverName, sqlmw.Driver(stdlib.GetDefaultDriver(), &metricInterceptor{}))
	})
	return sql.Open(instrumentedDriverName, stdlib.RegisterConnConfig(connCfg))
}

type metricInterceptor struct {
	sqlmw.NullInterceptor
}

func verb(query, fallback string) string {
	if m := sqlVerb.FindStringSubmatch(query); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	return fallback
}

func (mi *metricInterceptor) ConnBeginTx(ctx context.Context, conn driver.ConnBeginTx, opts driver.TxOptions) (context.Context, driver.Tx, error) {
	defer mi.measure("begin", "begin", time.Now())
	tx, err := conn.BeginTx(ctx, opts)
	return ctx, tx, err
}

func (mi *metricInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	defer mi.measure("exec", verb(query, "exec"), time.Now())
	return conn.ExecContext(ctx, query, args)
}

func (mi *metricInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	defer mi.measure("query", verb(query, "query"), time.Now())
	rows, err := conn.QueryContext(ctx, query, args)
	return ctx, rows, err
}

func (mi *metricInterceptor) ConnectorConnect(ctx context.Context, conn driver.Connector) (driver.Conn, error) {
	defer mi.measure("connect", "connect", time.Now())
	return conn.Connect(ctx)
}

func (mi *metricInterceptor) TxCommit(ctx context.Context, conn driver.Tx) error {
	defer mi.measure("commit", "commit", time.Now())
	return conn.Commit()
}

func (mi *metricInterceptor) TxRollback(ctx context.Context, conn driver.Tx) error {
	defer mi.measure("rollback", "rollback", time.Now())
	return conn.Rollback()
}

func (mi *metricInterceptor) measure(op, verb string, start time.Time) {
	dbOpTotal.WithLabelValues(op).Inc()
	dbOpLatency.WithLabelValues(op, verb).Observe(time.Since(start).Seconds())
}
