package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailcannon/mailcannon/internal/domain"
)

func TestSuppressionRepository_Warm_ServesFromCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewSuppressionRepository(db)

	mock.ExpectQuery(`SELECT email FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"email"}).
			AddRow("blocked@example.com").
			AddRow("bounced@example.com"))

	require.NoError(t, repo.Warm(context.Background()))

	// No further queries expected: both checks hit the cache
	suppressed, err := repo.IsSuppressed(context.Background(), "Blocked@Example.COM")
	require.NoError(t, err)
	assert.True(t, suppressed)

	suppressed, err = repo.IsSuppressed(context.Background(), "fresh@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuppressionRepository_IsSuppressed_Unwarmed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewSuppressionRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("blocked@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	suppressed, err := repo.IsSuppressed(context.Background(), " blocked@example.com ")
	require.NoError(t, err)
	assert.True(t, suppressed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuppressionRepository_Add_UpdatesCache(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewSuppressionRepository(db)

	mock.ExpectQuery(`SELECT email FROM suppressions`).
		WillReturnRows(sqlmock.NewRows([]string{"email"}))
	require.NoError(t, repo.Warm(context.Background()))

	mock.ExpectExec(`INSERT INTO suppressions`).
		WithArgs("hard@example.com", domain.SuppressionKindBounce, "permanent bounce").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Add(context.Background(), "Hard@Example.com", domain.SuppressionKindBounce, "permanent bounce")
	require.NoError(t, err)

	// Served from the cache, no extra query
	suppressed, err := repo.IsSuppressed(context.Background(), "hard@example.com")
	require.NoError(t, err)
	assert.True(t, suppressed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSuppressionRepository_Add_EmptyEmail(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := NewSuppressionRepository(db)

	err = repo.Add(context.Background(), "   ", domain.SuppressionKindManual, "")
	assert.Error(t, err)
}
