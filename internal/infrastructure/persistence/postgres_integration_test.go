//go:build integration

package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/karte/backend/internal/domain/client"
	"github.com/karte/backend/internal/domain/karte"
	"github.com/karte/backend/internal/domain/shared"
	"github.com/karte/backend/internal/infrastructure/docstore"
	"github.com/karte/backend/internal/infrastructure/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresStore starts a throwaway PostgreSQL container, applies the
// migrations and returns a document store on it
func newPostgresStore(t *testing.T) *docstore.GormStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("karte_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	path, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	migrator, err := migration.New(sqlDB, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	return docstore.NewGormStore(db)
}

func TestPostgres_KarteRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDocstoreKarteRepository(newPostgresStore(t), zap.NewNop())

	var ids []string
	for _, tc := range []struct{ number, departure string }{
		{"D-250110-001", "2025-03-01"},
		{"D-250110-002", "2025-01-15"},
		{"D-250111-001", "2025-02-10"},
	} {
		s := sampleSnapshot()
		s.RecordNumber = tc.number
		s.Fields.DepartureDate = tc.departure
		res, err := repo.Save(ctx, s)
		require.NoError(t, err)
		assert.True(t, res.Created)
		ids = append(ids, res.ID)
	}

	t.Run("round trip", func(t *testing.T) {
		loaded, err := repo.FindByID(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, "D-250110-001", loaded.RecordNumber)
		assert.Equal(t, "Yakushima", loaded.Fields.DestinationOther)
		require.Len(t, loaded.Comments, 1)
		assert.Equal(t, []string{"data:image/jpeg;base64,AA=="}, loaded.Comments[0].Images)
	})

	t.Run("list orders", func(t *testing.T) {
		recent, err := repo.List(ctx, karte.ListOptions{})
		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, ids[2], recent[0].ID)

		byDeparture, err := repo.List(ctx, karte.ListOptions{SortBy: karte.SortByDeparture, Ascending: true})
		require.NoError(t, err)
		require.Len(t, byDeparture, 3)
		assert.Equal(t, "2025-01-15", byDeparture[0].Projection.DepartureDate)
		assert.Equal(t, "2025-03-01", byDeparture[2].Projection.DepartureDate)
	})

	t.Run("next serial counts the day's records", func(t *testing.T) {
		n, err := repo.NextSerial(ctx, "D-250110")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		n, err = repo.NextSerial(ctx, "D-250112")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("updated between", func(t *testing.T) {
		all, err := repo.FindUpdatedBetween(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, ids[1]))
		_, err := repo.FindByID(ctx, ids[1])
		assert.True(t, shared.IsKind(err, shared.KindNotFound))
	})
}

func TestPostgres_ClientRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewDocstoreClientRepository(newPostgresStore(t))

	acme, err := client.NewClient("Acme Travel", "Tokyo", "")
	require.NoError(t, err)
	acme.AddContact(client.Contact{PersonName: "Sato", IsPrimary: true}, shared.NewLocalID)
	require.NoError(t, repo.Save(ctx, acme))
	require.NotEmpty(t, acme.ID)

	found, err := repo.FindByNameIndex(ctx, acme.NameIndex)
	require.NoError(t, err)
	assert.Equal(t, acme.ID, found.ID)
	require.Len(t, found.Contacts, 1)
	assert.Equal(t, "Sato", found.Contacts[0].PersonName)

	_, err = repo.FindByNameIndex(ctx, "nobody")
	assert.True(t, shared.IsKind(err, shared.KindNotFound))
}
