package main

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/consignado/internal/transaction"
)

func TestDispatchFilter(t *testing.T) {
	filter, err := dispatchFilter("BT", "2024-03-01", "")
	require.NoError(t, err)

	require.NotNil(t, filter.BankID)
	assert.Equal(t, "BT", *filter.BankID)
	require.NotNil(t, filter.DateFrom)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *filter.DateFrom)
	assert.Nil(t, filter.DateTo)

	empty, err := dispatchFilter("", "", "")
	require.NoError(t, err)
	assert.Nil(t, empty.BankID)

	_, err = dispatchFilter("", "", "31/03/2024")
	assert.ErrorContains(t, err, "--to")
}

func TestRequeue_RejectsInvalidID(t *testing.T) {
	cmd := requeueCmd()
	cmd.SetArgs([]string{"not-a-uuid"})

	assert.ErrorContains(t, cmd.Execute(), "invalid transaction id")
}

func TestMigrate_DryRun(t *testing.T) {
	cmd := migrateCmd()
	cmd.SetArgs([]string{"--dry-run"})

	var out strings.Builder
	cmd.SetOut(&out)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "001_init.sql")
}

func TestInlineSummary(t *testing.T) {
	type attempt struct {
		status transaction.Status
		err    error
	}

	tests := []struct {
		name     string
		attempts []attempt
		want     string
		failed   int
	}{
		{
			name: "AllStored",
			attempts: []attempt{
				{status: transaction.StatusReconciled},
				{status: transaction.StatusDivergent},
				{status: transaction.StatusReconciled},
			},
			want: "reconciled 3 of 3 transactions inline\n" +
				"  RECONCILED 2\n" +
				"  DIVERGENT  1\n",
		},
		{
			name: "FailuresCountedApart",
			attempts: []attempt{
				{status: transaction.StatusReconciled},
				{status: transaction.StatusError, err: errors.New("contract store down")},
				{err: errors.New("transaction not found")},
			},
			want: "reconciled 1 of 3 transactions inline\n" +
				"  RECONCILED 1\n" +
				"  failed     2\n",
			failed: 2,
		},
		{
			name: "NothingPending",
			want: "reconciled 0 of 0 transactions inline\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := inlineSummary{outcomes: make(map[transaction.Status]int)}
			for _, a := range tt.attempts {
				s.record(a.status, a.err)
			}

			var out strings.Builder
			s.write(&out)

			assert.Equal(t, tt.want, out.String())
			assert.Equal(t, tt.failed, s.failed)
		})
	}
}
