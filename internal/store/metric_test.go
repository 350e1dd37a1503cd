package store

import (
	"context"
	"database/sql/driver"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit() error   { f.committed = true; return nil }
func (f *fakeTx) Rollback() error { f.rolledBack = true; return nil }

type fakeExecer struct {
	query string
}

func (f *fakeExecer) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	f.query = query
	return driver.RowsAffected(1), nil
}

var _ = Describe("db metrics interceptor", func() {
	mi := &metricInterceptor{}

	It("counts commits and rollbacks", func() {
		commits := testutil.ToFloat64(dbOpTotal.WithLabelValues("commit"))
		rollbacks := testutil.ToFloat64(dbOpTotal.WithLabelValues("rollback"))

		tx := &fakeTx{}
		Expect(mi.TxCommit(context.TODO(), tx)).To(Succeed())
		Expect(mi.TxRollback(context.TODO(), tx)).To(Succeed())

		Expect(tx.committed).To(BeTrue())
		Expect(tx.rolledBack).To(BeTrue())
		Expect(testutil.ToFloat64(dbOpTotal.WithLabelValues("commit"))).To(Equal(commits + 1))
		Expect(testutil.ToFloat64(dbOpTotal.WithLabelValues("rollback"))).To(Equal(rollbacks + 1))
	})

	It("passes statements through", func() {
		before := testutil.ToFloat64(dbOpTotal.WithLabelValues("exec"))

		execer := &fakeExecer{}
		res, err := mi.ConnExecContext(context.TODO(), execer, "UPDATE documents SET version = 2", nil)
		Expect(err).To(BeNil())
		Expect(execer.query).To(Equal("UPDATE documents SET version = 2"))
		n, err := res.RowsAffected()
		Expect(err).To(BeNil())
		Expect(n).To(Equal(int64(1)))

		Expect(testutil.ToFloat64(dbOpTotal.WithLabelValues("exec"))).To(Equal(before + 1))
	})

	It("labels statements by their verb", func() {
		Expect(verb("  SELECT * FROM documents", "query")).To(Equal("select"))
		Expect(verb("insert into activities", "exec")).To(Equal("insert"))
		Expect(verb("", "exec")).To(Equal("exec"))
	})
})
