package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"go-fundo-ops/internal/model"
)

type fakeBuilder struct {
	digest *model.AlertDigest
	err    error
}

func (f fakeBuilder) Digest(context.Context) (*model.AlertDigest, error) { return f.digest, f.err }

type fakeArchive struct {
	saved []model.AlertDigest
	err   error
}

func (f *fakeArchive) SaveDigest(_ context.Context, d model.AlertDigest) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, d)
	return nil
}

func (f *fakeArchive) RecentDigests(context.Context, int64) ([]model.AlertDigest, error) {
	return f.saved, nil
}

func sampleDigest(lowStock int) *model.AlertDigest {
	d := &model.AlertDigest{Date: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), InventoryValue: "210.00"}
	for i := 0; i < lowStock; i++ {
		d.LowStock = append(d.LowStock, model.DigestItem{Key: "F01", Value: "0"})
	}
	return d
}

func TestRunDigestArchives(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	archive := &fakeArchive{}
	s := NewScheduler("0 6 * * *", time.UTC, fakeBuilder{digest: sampleDigest(1)}, archive, zap.New(core))

	d, err := s.RunDigest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "210.00", d.InventoryValue)
	require.Len(t, archive.saved, 1)

	warn := logs.FilterMessage("alert digest").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zap.WarnLevel, warn[0].Level)
}

func TestRunDigestWithoutArchive(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewScheduler("0 6 * * *", nil, fakeBuilder{digest: sampleDigest(0)}, nil, zap.New(core))

	_, err := s.RunDigest(context.Background())
	require.NoError(t, err)
	entries := logs.FilterMessage("alert digest").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Zero(t, logs.FilterMessage("alert digest archived").Len())
}

func TestRunDigestErrors(t *testing.T) {
	boom := errors.New("mongo down")
	s := NewScheduler("0 6 * * *", time.UTC, fakeBuilder{digest: sampleDigest(0)}, &fakeArchive{err: boom}, nil)
	d, err := s.RunDigest(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotNil(t, d)

	s = NewScheduler("0 6 * * *", time.UTC, fakeBuilder{err: boom}, &fakeArchive{}, nil)
	_, err = s.RunDigest(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStartRejectsBadCron(t *testing.T) {
	s := NewScheduler("every morning", time.UTC, fakeBuilder{}, nil, nil)
	assert.Error(t, s.Start())

	s = NewScheduler("0 6 * * *", time.UTC, fakeBuilder{}, nil, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
