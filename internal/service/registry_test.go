package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/repository"
	"iclock-gateway/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeKV struct {
	data   map[string]string
	failed bool
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	if f.failed {
		return "", errors.New("kv down")
	}
	v, ok := f.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key, value string, _ time.Duration) error {
	if f.failed {
		return errors.New("kv down")
	}
	f.data[key] = value
	return nil
}

func (f *fakeKV) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	if f.failed {
		return nil, errors.New("kv down")
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func registerDevice(t *testing.T, devices *repository.MemoryDevicesRepo, serial string) {
	t.Helper()
	err := devices.Create(context.Background(), &domain.Device{
		DeviceName:   "Test Device",
		SerialNumber: serial,
	})
	require.NoError(t, err)
}

func TestRegistry_Lookup_CaseInsensitive(t *testing.T) {
	devices := repository.NewMemoryDevicesRepo()
	registry := NewRegistry(devices, nil, zap.NewNop())
	registerDevice(t, devices, "DEV123")

	d, err := registry.Lookup(context.Background(), "dev123")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "DEV123", d.SerialNumber)
}

func TestRegistry_Lookup_Unknown(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryDevicesRepo(), nil, zap.NewNop())

	d, err := registry.Lookup(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = registry.Lookup(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestRegistry_MarkOnline(t *testing.T) {
	devices := repository.NewMemoryDevicesRepo()
	kv := newFakeKV()
	registry := NewRegistry(devices, kv, zap.NewNop())
	registerDevice(t, devices, "DEV123")

	require.NoError(t, registry.MarkOnline(context.Background(), "dev123", "10.0.0.5"))

	d, err := registry.Lookup(context.Background(), "DEV123")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOnline, d.Status)
	assert.Equal(t, "10.0.0.5", d.DeviceIP.String)
	assert.True(t, d.LastOnline.Valid)

	assert.True(t, registry.IsPresent(context.Background(), "DEV123"))
}

func TestRegistry_MarkOnline_KeepsAddressWhenEmpty(t *testing.T) {
	devices := repository.NewMemoryDevicesRepo()
	registry := NewRegistry(devices, nil, zap.NewNop())
	registerDevice(t, devices, "DEV123")
	ctx := context.Background()

	require.NoError(t, registry.MarkOnline(ctx, "DEV123", "10.0.0.5"))
	require.NoError(t, registry.MarkOnline(ctx, "DEV123", ""))

	d, err := registry.Lookup(ctx, "DEV123")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", d.DeviceIP.String)
}

func TestRegistry_MarkOnline_CacheOutageTolerated(t *testing.T) {
	devices := repository.NewMemoryDevicesRepo()
	kv := newFakeKV()
	kv.failed = true
	registry := NewRegistry(devices, kv, zap.NewNop())
	registerDevice(t, devices, "DEV123")

	assert.NoError(t, registry.MarkOnline(context.Background(), "DEV123", "10.0.0.5"))
}

func TestRegistry_MarkOffline(t *testing.T) {
	devices := repository.NewMemoryDevicesRepo()
	registry := NewRegistry(devices, nil, zap.NewNop())
	registerDevice(t, devices, "DEV123")
	ctx := context.Background()

	require.NoError(t, registry.MarkOnline(ctx, "DEV123", ""))
	require.NoError(t, registry.MarkOffline(ctx, "DEV123"))

	d, err := registry.Lookup(ctx, "DEV123")
	require.NoError(t, err)
	assert.Equal(t, domain.DeviceStatusOffline, d.Status)
}

func TestRegistry_IsPresent_NoCache(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryDevicesRepo(), nil, zap.NewNop())
	assert.False(t, registry.IsPresent(context.Background(), "DEV123"))
}

func TestRegistry_PresentSerials(t *testing.T) {
	devices := repository.NewMemoryDevicesRepo()
	kv := newFakeKV()
	registry := NewRegistry(devices, kv, zap.NewNop())
	ctx := context.Background()
	registerDevice(t, devices, "DEV123")
	registerDevice(t, devices, "DEV456")

	require.NoError(t, registry.MarkOnline(ctx, "DEV123", ""))
	require.NoError(t, registry.MarkOnline(ctx, "DEV456", ""))

	present := registry.PresentSerials(ctx)
	assert.True(t, present["DEV123"])
	assert.True(t, present["DEV456"])
	assert.False(t, present["DEV999"])
}

func TestRegistry_PresentSerials_Degraded(t *testing.T) {
	assert.Nil(t, NewRegistry(repository.NewMemoryDevicesRepo(), nil, zap.NewNop()).
		PresentSerials(context.Background()))

	kv := newFakeKV()
	kv.failed = true
	registry := NewRegistry(repository.NewMemoryDevicesRepo(), kv, zap.NewNop())
	assert.Nil(t, registry.PresentSerials(context.Background()))
}
