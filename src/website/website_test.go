package website

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestResponseDataStatusDefaults(t *testing.T) {
	var res ResponseData
	res.WriteJson(map[string]int{"a": 1}, nil)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a": 1}`, res.Body.String())
	assert.Zero(t, res.StatusCode)
}

func TestUpdateQueuedJobsKeepsLastValueOnError(t *testing.T) {
	queuedJobs.Reset()
	queuedJobs.WithLabelValues("SearchIndex").Set(4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	updateQueuedJobs(ctx, failingConn{})

	assert.Equal(t, 4.0, testutil.ToFloat64(queuedJobs.WithLabelValues("SearchIndex")))
}

type failingConn struct{}

var errNoDatabase = errors.New("no database in tests")

func (failingConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoDatabase
}

func (failingConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic(errNoDatabase)
}

func (failingConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoDatabase
}

func (failingConn) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoDatabase
}

func (failingConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errNoDatabase
}
