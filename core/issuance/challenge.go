package issuance

import (
	"context"
	"sync"

	"github.com/go-acme/lego/v4/challenge/dns01"
)

// ChallengeZoneStore persists DNS-01 TXT records in the delegated
// challenge zone. Because customers point `_acme-challenge.<domain>`
// at the platform's zone via CNAME, writing here is enough for the CA
// to observe the challenge.
type ChallengeZoneStore interface {
	SetTXT(ctx context.Context, fqdn, value string) error
	DeleteTXT(ctx context.Context, fqdn string) error
}

// zoneProvider adapts a ChallengeZoneStore to lego's challenge.Provider.
type zoneProvider struct {
	store ChallengeZoneStore
}

func newZoneProvider(store ChallengeZoneStore) *zoneProvider {
	return &zoneProvider{store: store}
}

// Present writes the challenge TXT record into the delegated zone.
func (p *zoneProvider) Present(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	return p.store.SetTXT(context.Background(), info.FQDN, info.Value)
}

// CleanUp removes the challenge TXT record after validation.
func (p *zoneProvider) CleanUp(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	return p.store.DeleteTXT(context.Background(), info.FQDN)
}

// MemoryChallengeZone is an in-memory ChallengeZoneStore for tests and
// local development.
type MemoryChallengeZone struct {
	mu      sync.RWMutex
	records map[string]string
}

func NewMemoryChallengeZone() *MemoryChallengeZone {
	return &MemoryChallengeZone{records: make(map[string]string)}
}

func (z *MemoryChallengeZone) SetTXT(ctx context.Context, fqdn, value string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.records[fqdn] = value
	return nil
}

func (z *MemoryChallengeZone) DeleteTXT(ctx context.Context, fqdn string) error {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.records, fqdn)
	return nil
}

// TXT returns the stored record value, if any.
func (z *MemoryChallengeZone) TXT(fqdn string) (string, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	v, ok := z.records[fqdn]
	return v, ok
}
