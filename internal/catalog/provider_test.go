package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labsense-server/internal/domain"
)

type stubSource struct {
	mu    sync.Mutex
	data  Data
	err   error
	loads int
}

func (s *stubSource) Load(ctx context.Context) (*Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return New(s.data)
}

func (s *stubSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *stubSource) setData(data Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestNewProviderFailsFastOnBrokenSource(t *testing.T) {
	src := &stubSource{err: errors.New("backing store down")}
	p, err := NewProvider(context.Background(), src, testLogger())
	assert.Error(t, err)
	assert.Nil(t, p)
}

func TestProviderReloadSwapsSnapshot(t *testing.T) {
	src := &stubSource{data: BuiltinData()}
	p, err := NewProvider(context.Background(), src, testLogger())
	require.NoError(t, err)

	before := p.Snapshot()
	require.NotNil(t, before)

	changed := BuiltinData()
	changed.Findings[0].Description = "updated description"
	src.setData(changed)

	require.NoError(t, p.Reload(context.Background()))
	after := p.Snapshot()
	assert.NotEqual(t, before.Fingerprint(), after.Fingerprint())
}

func TestProviderKeepsSnapshotOnReloadFailure(t *testing.T) {
	src := &stubSource{data: BuiltinData()}
	p, err := NewProvider(context.Background(), src, testLogger())
	require.NoError(t, err)

	before := p.Snapshot()
	src.setErr(errors.New("transient failure"))

	assert.Error(t, p.Reload(context.Background()))
	assert.Same(t, before, p.Snapshot())
}

func TestProviderBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	src := &stubSource{data: BuiltinData()}
	p, err := NewProvider(context.Background(), src, testLogger())
	require.NoError(t, err)

	src.setErr(errors.New("persistent failure"))
	for i := 0; i < 3; i++ {
		require.Error(t, p.Reload(context.Background()))
	}

	// The breaker is now open: the source must not be called again and the
	// error must identify the catalog as unavailable.
	loadsBefore := func() int {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.loads
	}()

	err = p.Reload(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)

	loadsAfter := func() int {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.loads
	}()
	assert.Equal(t, loadsBefore, loadsAfter)
}
