package repositories

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"excursion-booking/internal/database"
	"excursion-booking/internal/models"
)

// setupTestDB connects to TEST_DATABASE_URL and applies the migrations.
// Tests are skipped when no database is configured or reachable.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database tests")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		t.Skipf("Failed to ping test database: %v", err)
	}

	require.NoError(t, database.NewMigrator(db, zerolog.Nop()).RunMigrations(context.Background()))
	t.Cleanup(func() { db.Close() })

	return db
}

func createTestUser(t *testing.T, db *sql.DB) *models.User {
	t.Helper()

	user, err := NewUserRepository(db).Create(context.Background(), models.NewUser{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Test",
	})
	require.NoError(t, err)
	return user
}

func testCartItem(serviceID string, quantity int) *models.CartItem {
	item := &models.CartItem{
		ServiceID:   serviceID,
		ServiceType: models.ServiceTypeExcursion,
		Date:        time.Now().UTC().AddDate(0, 1, 0).Truncate(24 * time.Hour),
		Time:        "10:00",
		Title:       "Test excursion",
		Options: []*models.CartItemOption{
			{
				PriceType:    "adult",
				BasePrice:    decimal.RequireFromString("25.00"),
				CurrentPrice: decimal.RequireFromString("20.00"),
				Quantity:     quantity,
			},
		},
	}
	item.CalculateTotals()
	return item
}
