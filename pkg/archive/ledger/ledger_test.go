package ledger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tendant/archive-dump/pkg/archive/ledger"
)

func TestRunLifecycle(t *testing.T) {
	run := ledger.NewRun("book", "9.1", "archive.cnx.org")
	assert.Equal(t, ledger.StatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.Zero(t, run.Duration())

	run.Finish(ledger.Counts{Raw: 2, Baked: 2, Resource: 1}, nil)
	assert.Equal(t, ledger.StatusSucceeded, run.Status)
	assert.NotNil(t, run.FinishedAt)
	assert.Equal(t, 1, run.Counts.Resource)
	assert.GreaterOrEqual(t, run.Duration().Nanoseconds(), int64(0))

	failed := ledger.NewRun("book", "", "archive.cnx.org")
	failed.Finish(ledger.Counts{Raw: 1}, errors.New("fetch failed"))
	assert.Equal(t, ledger.StatusFailed, failed.Status)
	assert.Equal(t, "fetch failed", failed.Error)
	assert.NotEqual(t, run.ID, failed.ID)
}
