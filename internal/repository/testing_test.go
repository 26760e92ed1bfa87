package repository

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/trpi/scheduling-server-go/internal/database"
	"github.com/trpi/scheduling-server-go/internal/model"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.Connect(url)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background()))

	_, err = db.Exec(`TRUNCATE auth_sessions, magic_links, sessions, availability_overrides, therapist_availability, users CASCADE`)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, repo UserRepository, userType model.UserType) *model.User {
	t.Helper()
	user, err := repo.Create(context.Background(), model.CreateUserParams{
		Email:    uuid.NewString() + "@example.com",
		FullName: string(userType) + " user",
		UserType: userType,
	})
	require.NoError(t, err)
	return user
}
