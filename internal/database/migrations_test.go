package database

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewMigratorRejectsMissingDirectory(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	dir := filepath.Join(t.TempDir(), "absent")
	migrator, err := NewMigrator("postgres://localhost:5432/labsense?sslmode=disable", dir, logger)
	assert.Error(t, err)
	assert.Nil(t, migrator)
	assert.Contains(t, err.Error(), dir)
}
