package docstore

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockGormStore creates a GormStore with a mocked SQL connection
func newMockGormStore(t *testing.T) (*GormStore, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	store := NewGormStore(gormDB)
	store.now = func() time.Time { return time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC) }
	store.newID = func() string { return "generated-id" }
	return store, mock, mockDB
}

func TestGormStore_Get(t *testing.T) {
	t.Run("returns stored document", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		updated := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
		rows := sqlmock.NewRows([]string{"collection", "id", "data", "updated_at"}).
			AddRow("karte", "k1", []byte(`{"recordNumber":"D-250110-001"}`), updated)
		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE collection = \$1 AND id = \$2 LIMIT .*`).
			WithArgs("karte", "k1", 1).
			WillReturnRows(rows)

		doc, err := store.Get(context.Background(), "karte", "k1")
		require.NoError(t, err)
		assert.Equal(t, "k1", doc.ID)
		assert.JSONEq(t, `{"recordNumber":"D-250110-001"}`, string(doc.Data))
		assert.Equal(t, updated, doc.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing row to ErrNotFound", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "documents" WHERE collection = \$1 AND id = \$2 LIMIT .*`).
			WithArgs("karte", "missing", 1).
			WillReturnRows(sqlmock.NewRows([]string{"collection", "id", "data", "updated_at"}))

		_, err := store.Get(context.Background(), "karte", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("passes through driver errors", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "documents"`).
			WillReturnError(errors.New("connection refused"))

		_, err := store.Get(context.Background(), "karte", "k1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestGormStore_Put(t *testing.T) {
	t.Run("creates with generated id", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		mock.ExpectExec(`INSERT INTO "documents" \("collection","id","data","updated_at"\) VALUES`).
			WithArgs("karte", "generated-id", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		doc, err := store.Put(context.Background(), "karte", "", []byte(`{"a":"b"}`))
		require.NoError(t, err)
		assert.Equal(t, "generated-id", doc.ID)
		assert.Equal(t, time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC), doc.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replaces existing document", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "documents" SET "data"=\$1,"updated_at"=\$2 WHERE collection = \$3 AND id = \$4`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "karte", "k1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		doc, err := store.Put(context.Background(), "karte", "k1", []byte(`{"a":"c"}`))
		require.NoError(t, err)
		assert.Equal(t, "k1", doc.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("replace of missing document returns ErrNotFound", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "documents"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := store.Put(context.Background(), "karte", "gone", []byte(`{}`))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("timestamps are strictly increasing", func(t *testing.T) {
		store, _, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		a := store.nextTimestamp()
		b := store.nextTimestamp()
		assert.True(t, b.After(a))
	})

	t.Run("rejects non-object body without touching the database", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		_, err := store.Put(context.Background(), "karte", "", []byte(`"text"`))
		assert.ErrorIs(t, err, ErrInvalidDocument)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStore_Delete(t *testing.T) {
	store, mock, mockDB := newMockGormStore(t)
	defer mockDB.Close()

	mock.ExpectExec(`DELETE FROM "documents" WHERE collection = \$1 AND id = \$2`).
		WithArgs("karte", "k1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.Delete(context.Background(), "karte", "k1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Query(t *testing.T) {
	t.Run("renders range filters on json paths", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		expected := regexp.QuoteMeta(`SELECT * FROM "documents" WHERE collection = $1 AND (data #>> '{recordNumber}') COLLATE "C" >= $2 AND (data #>> '{recordNumber}') COLLATE "C" < $3 ORDER BY id ASC`)
		mock.ExpectQuery(expected).
			WithArgs("karte", "D-250110", "D-250110").
			WillReturnRows(sqlmock.NewRows([]string{"collection", "id", "data", "updated_at"}).
				AddRow("karte", "k1", []byte(`{}`), time.Now()).
				AddRow("karte", "k2", []byte(`{}`), time.Now()))

		docs, err := store.Query(context.Background(), "karte", Query{}.
			Where("recordNumber", OpGte, "D-250110").
			Where("recordNumber", OpLt, "D-250110"))
		require.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("orders by update time with limit", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		expected := regexp.QuoteMeta(`SELECT * FROM "documents" WHERE collection = $1 ORDER BY updated_at DESC,id ASC LIMIT $2`)
		mock.ExpectQuery(expected).
			WithArgs("karte", 50).
			WillReturnRows(sqlmock.NewRows([]string{"collection", "id", "data", "updated_at"}))

		docs, err := store.Query(context.Background(), "karte", Query{OrderBy: FieldUpdatedAt, Descending: true, Limit: 50})
		require.NoError(t, err)
		assert.Empty(t, docs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested path and update time filter", func(t *testing.T) {
		store, mock, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		expected := regexp.QuoteMeta(`WHERE collection = $1 AND (data #>> '{summaryProjection,staffName}') COLLATE "C" = $2 AND updated_at >= $3`)
		mock.ExpectQuery(expected).
			WithArgs("karte", "Sato", from).
			WillReturnRows(sqlmock.NewRows([]string{"collection", "id", "data", "updated_at"}))

		_, err := store.Query(context.Background(), "karte", Query{}.
			Where("summaryProjection.staffName", OpEq, "Sato").
			Where(FieldUpdatedAt, OpGte, from))
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unsafe field paths", func(t *testing.T) {
		store, _, mockDB := newMockGormStore(t)
		defer mockDB.Close()

		_, err := store.Query(context.Background(), "karte", Query{}.Where("x}'; --", OpEq, "a"))
		assert.ErrorIs(t, err, ErrInvalidQuery)
	})
}
