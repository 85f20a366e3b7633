package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/repository"
	"iclock-gateway/internal/store"

	"go.uber.org/zap"
)

// presenceTTL bounds how long a device counts as present without contact.
// Terminals poll every 30s (Delay=30 in the handshake block), so three missed
// cycles is a safe margin.
const presenceTTL = 2 * time.Minute

// Registry validates device identity and tracks online state. It is the
// single gate in front of every protocol entry point: an unknown serial never
// reaches the ledger, recorder, or queue.
type Registry struct {
	devices repository.DevicesRepo
	kv      store.KV // optional presence cache
	logger  *zap.Logger
}

func NewRegistry(devices repository.DevicesRepo, kv store.KV, logger *zap.Logger) *Registry {
	return &Registry{devices: devices, kv: kv, logger: logger}
}

// Lookup returns the device for a serial (case-insensitive), or nil when it
// is not registered.
func (r *Registry) Lookup(ctx context.Context, serial string) (*domain.Device, error) {
	if serial == "" {
		return nil, nil
	}
	return r.devices.FindBySerial(ctx, domain.NormalizeSerial(serial))
}

// MarkOnline records a successful protocol contact: status online, refreshed
// last-seen, and the caller address when one was supplied. The presence cache
// write is best-effort; a Redis outage must not fail device traffic.
func (r *Registry) MarkOnline(ctx context.Context, serial, ip string) error {
	serial = domain.NormalizeSerial(serial)
	now := time.Now()
	if err := r.devices.MarkOnline(ctx, serial, ip, now); err != nil {
		return fmt.Errorf("mark device online: %w", err)
	}

	if r.kv != nil {
		key := presenceKey(serial)
		if err := r.kv.Set(ctx, key, now.Format(time.RFC3339), presenceTTL); err != nil {
			r.logger.Warn("presence cache write failed",
				zap.String("serial_number", serial),
				zap.Error(err),
			)
		}
	}
	return nil
}

// MarkOffline flags a device that stopped contacting us. Operator-driven;
// the protocol flow never calls it.
func (r *Registry) MarkOffline(ctx context.Context, serial string) error {
	return r.devices.MarkOffline(ctx, domain.NormalizeSerial(serial))
}

// IsPresent consults the presence cache: true while the device has contacted
// us within the TTL window. Falls back to false on a cache miss or when no
// cache is configured.
func (r *Registry) IsPresent(ctx context.Context, serial string) bool {
	if r.kv == nil {
		return false
	}
	_, err := r.kv.Get(ctx, presenceKey(domain.NormalizeSerial(serial)))
	return err == nil
}

// PresentSerials returns the serials currently inside the presence TTL
// window. Empty when no cache is configured; a cache outage degrades to
// empty rather than failing the caller.
func (r *Registry) PresentSerials(ctx context.Context) map[string]bool {
	if r.kv == nil {
		return nil
	}
	keys, err := r.kv.ScanKeys(ctx, presenceKeyPrefix+"*")
	if err != nil {
		r.logger.Warn("presence cache scan failed", zap.Error(err))
		return nil
	}

	present := make(map[string]bool, len(keys))
	for _, key := range keys {
		serial := strings.TrimSuffix(strings.TrimPrefix(key, presenceKeyPrefix), presenceKeySuffix)
		if serial != "" {
			present[serial] = true
		}
	}
	return present
}

const (
	presenceKeyPrefix = "iclock:device:"
	presenceKeySuffix = ":last_seen"
)

func presenceKey(serial string) string {
	return presenceKeyPrefix + serial + presenceKeySuffix
}
