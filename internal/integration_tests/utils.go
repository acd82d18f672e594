//go:build integration

package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"diagram-backend/internal/database"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	dsn := setupMySQLContainer(t, context.Background())
	db, err := database.NewDatabase(context.Background(), database.DriverMySQL, dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

func setupMySQLContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "diagram_chat", "test_user", "test_password"

	mysqlContainer, err := mysql.Run(ctx,
		"mysql:8.0.36",
		mysql.WithDatabase(dbName),
		mysql.WithUsername(dbUser),
		mysql.WithPassword(dbPassword),
	)
	require.NoError(t, err, "Failed to start MySQL container")

	t.Cleanup(func() {
		err := mysqlContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MySQL container")
	})

	connStr, err := mysqlContainer.ConnectionString(ctx, "parseTime=true", "charset=utf8mb4", "clientFoundRows=true")
	require.NoError(t, err, "Failed to get MySQL connection string")

	return connStr
}

func httpRequest(api http.Handler, method, endpoint string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		requestBody, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(requestBody)
	}

	req := httptest.NewRequest(method, endpoint, body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	api.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		return fmt.Errorf("expected status code 200, got %d: %v", rr.Code, rr.Body.String())
	}

	if dest != nil {
		if err := json.Unmarshal(rr.Body.Bytes(), dest); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}
