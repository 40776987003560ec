package services

import (
	"testing"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveIdentityEmailBeatsFingerprint(t *testing.T) {
	fp := security.DeriveFingerprint("device-key")
	repo := &fakeIdentityRepo{identities: []*visitor.Identity{
		{ID: "by-email", Email: strPtr("jane@example.com"), Fingerprint: "other"},
		{ID: "by-fp", Fingerprint: fp},
	}}

	got, err := resolveIdentity(repo, "jane@example.com", &fp)
	require.NoError(t, err)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "by-email", got.Identity.ID)
	assert.Equal(t, commerce.StatusMatched, got.Status)
}

func TestResolveIdentityEmailIsCaseInsensitive(t *testing.T) {
	repo := &fakeIdentityRepo{identities: []*visitor.Identity{
		{ID: "v1", Email: strPtr("jane@example.com")},
	}}

	got, err := resolveIdentity(repo, "  Jane@Example.COM ", nil)
	require.NoError(t, err)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "v1", got.Identity.ID)
}

func TestResolveIdentityMostRecentlyUpdatedWinsEmailTie(t *testing.T) {
	repo := &fakeIdentityRepo{identities: []*visitor.Identity{
		{ID: "older", Email: strPtr("jane@example.com"), UpdatedAt: at("2024-01-01T00:00:00Z")},
		{ID: "newer", Email: strPtr("jane@example.com"), UpdatedAt: at("2024-06-01T00:00:00Z")},
	}}

	got, err := resolveIdentity(repo, "jane@example.com", nil)
	require.NoError(t, err)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "newer", got.Identity.ID)
}

func TestResolveIdentityFallsBackToFingerprint(t *testing.T) {
	fp := security.DeriveFingerprint("device-key")
	repo := &fakeIdentityRepo{identities: []*visitor.Identity{
		{ID: "v1", Fingerprint: fp},
	}}

	got, err := resolveIdentity(repo, "unknown@example.com", &fp)
	require.NoError(t, err)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "v1", got.Identity.ID)
	assert.Equal(t, commerce.StatusMatched, got.Status)
}

func TestResolveIdentityUnmatched(t *testing.T) {
	repo := &fakeIdentityRepo{}

	got, err := resolveIdentity(repo, "unknown@example.com", nil)
	require.NoError(t, err)
	assert.Nil(t, got.Identity)
	assert.Equal(t, commerce.StatusUnmatched, got.Status)
}

func TestResolverServiceResolveDelegates(t *testing.T) {
	repo := &fakeIdentityRepo{identities: []*visitor.Identity{
		{ID: "v1", Email: strPtr("jane@example.com")},
	}}

	got, err := NewResolverService(newTestLogger(t)).Resolve("acme", repo, "jane@example.com", nil)
	require.NoError(t, err)
	require.NotNil(t, got.Identity)
	assert.Equal(t, "v1", got.Identity.ID)
	assert.Equal(t, commerce.StatusMatched, got.Status)
}
