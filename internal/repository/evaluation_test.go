package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/labsense-server/internal/database"
	"github.com/labsense-server/internal/domain"
)

func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()
	testPassword := generateTestPassword()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	config := &domain.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "testdb",
		Username:        "testuser",
		Password:        testPassword,
		SSLMode:         "disable",
		MaxConns:        10,
		MinConns:        2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	migrator, err := database.NewMigrator(database.ConnectionURL(config), "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrator.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}
	return db, cleanup
}

func sampleRecord() *domain.EvaluationRecord {
	signals := domain.NewClinicalSignals()
	signals.Findings = append(signals.Findings, domain.MatchedFinding{
		ID:       "finding-anemia-pattern",
		Label:    "Anemia Pattern",
		Severity: domain.SeverityMedium,
		Evidence: []string{"Hemoglobin = 9.5 g/dL (< 12)", "Hematocrit = 32 % (< 36)"},
	})

	return &domain.EvaluationRecord{
		ID: uuid.New().String(),
		Readings: []domain.Reading{
			{CanonicalName: "Hemoglobin", Value: 9.5, Unit: "g/dL"},
			{CanonicalName: "Hematocrit", Value: 32, Unit: "%"},
		},
		Signals:          signals,
		MatchedRuleIDs:   []string{"rule-anemia"},
		ProcessingTimeMS: 3,
		CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestEvaluationRepository_SaveAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewEvaluationRepository(db.Pool, logger)

	ctx := context.Background()
	record := sampleRecord()
	record.Profile = &domain.PatientProfile{
		Age: 34, Sex: domain.SexFemale, Pregnancy: domain.PregnancyNotPregnant,
	}

	require.NoError(t, repo.Save(ctx, record))

	got, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.Readings, got.Readings)
	assert.Equal(t, record.Signals, got.Signals)
	assert.Equal(t, record.MatchedRuleIDs, got.MatchedRuleIDs)
	require.NotNil(t, got.Profile)
	assert.Equal(t, record.Profile.Age, got.Profile.Age)
}

func TestEvaluationRepository_GetMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewEvaluationRepository(db.Pool, logger)

	_, err := repo.GetByID(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEvaluationRepository_ListRecent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewEvaluationRepository(db.Pool, logger)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record := sampleRecord()
		record.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Save(ctx, record))
	}

	records, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))

	count, err := repo.CountSince(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
