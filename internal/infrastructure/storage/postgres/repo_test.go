package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickfolio/internal/application/port"
)

// Runs against a real server only: TICKFOLIO_TEST_POSTGRES_DSN=postgres://...
func TestPostgresRepoAppendAndRange(t *testing.T) {
	dsn := os.Getenv("TICKFOLIO_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TICKFOLIO_TEST_POSTGRES_DSN not set")
	}
	repo, err := New(dsn)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	name := "test_" + time.Now().Format("150405.000000")
	at := time.UnixMilli(1700000000000).UTC()
	m := port.Measurement{
		Name:   name,
		Tags:   map[string]string{"currency": "EUR"},
		Fields: map[string]float64{"MSFT": 6750, "total": 6750},
		Time:   at,
	}
	require.NoError(t, repo.Append(ctx, m))

	got, err := repo.Range(ctx, name, at, at)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, m, got[0])
}

func TestPostgresNewBadDSN(t *testing.T) {
	_, err := New("postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
	assert.Error(t, err)
}
