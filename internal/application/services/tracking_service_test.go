package services

import (
	"strings"
	"testing"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTouchCreatesVisitorWithFirstTouchSnapshot(t *testing.T) {
	identities := &fakeIdentityRepo{}
	touches := &fakeTouchRepo{}
	now := at("2024-11-01T00:00:00Z")

	identity, created, err := recordTouch(identities, touches, "visitor-key", TouchInput{
		Source:      strPtr("youtube"),
		Campaign:    strPtr("black-friday"),
		LandingPage: "/course",
	}, now)

	require.NoError(t, err)
	assert.True(t, created)
	require.NotNil(t, identity.FirstTouch.Source)
	assert.Equal(t, "youtube", *identity.FirstTouch.Source)
	assert.Equal(t, security.DeriveFingerprint("visitor-key"), identity.Fingerprint)
	assert.Len(t, touches.touches, 1)
}

func TestRecordTouchAppendsWithoutRewritingFirstTouch(t *testing.T) {
	identities := &fakeIdentityRepo{}
	touches := &fakeTouchRepo{}

	first, created, err := recordTouch(identities, touches, "visitor-key", TouchInput{
		Source: strPtr("youtube"), LandingPage: "/",
	}, at("2024-11-01T00:00:00Z"))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := recordTouch(identities, touches, "visitor-key", TouchInput{
		Source: strPtr("newsletter"), LandingPage: "/offer",
	}, at("2024-11-02T00:00:00Z"))
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.FirstTouch.Source)
	assert.Equal(t, "youtube", *second.FirstTouch.Source)
	assert.Len(t, touches.touches, 2)
}

func TestRecordTouchDirectFirstTouchStaysDirect(t *testing.T) {
	identities := &fakeIdentityRepo{}
	touches := &fakeTouchRepo{}

	identity, _, err := recordTouch(identities, touches, "visitor-key", TouchInput{LandingPage: "/"}, at("2024-11-01T00:00:00Z"))
	require.NoError(t, err)
	assert.True(t, identity.FirstTouch.IsDirect())

	// A later campaign touch must not rewrite the direct first touch.
	identity, _, err = recordTouch(identities, touches, "visitor-key", TouchInput{
		Source: strPtr("instagram"), LandingPage: "/",
	}, at("2024-11-02T00:00:00Z"))
	require.NoError(t, err)
	assert.True(t, identity.FirstTouch.IsDirect())
}

func TestRecordTouchValidation(t *testing.T) {
	identities := &fakeIdentityRepo{}
	touches := &fakeTouchRepo{}
	oversized := strings.Repeat("x", config.MaxTouchFieldLength+1)

	tests := []struct {
		name       string
		visitorKey string
		input      TouchInput
	}{
		{name: "missing visitor key", visitorKey: "  ", input: TouchInput{LandingPage: "/"}},
		{name: "oversized source", visitorKey: "k", input: TouchInput{Source: &oversized}},
		{name: "oversized campaign", visitorKey: "k", input: TouchInput{Campaign: &oversized}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := recordTouch(identities, touches, tt.visitorKey, tt.input, at("2024-11-01T00:00:00Z"))
			assert.ErrorIs(t, err, ErrInvalidTouch)
		})
	}
}

func TestIdentifyVisitorCapturesEmailOnce(t *testing.T) {
	identities := &fakeIdentityRepo{}
	touches := &fakeTouchRepo{}

	_, _, err := recordTouch(identities, touches, "visitor-key", TouchInput{LandingPage: "/"}, at("2024-11-01T00:00:00Z"))
	require.NoError(t, err)

	identity, err := identifyVisitor(identities, "visitor-key", " Jane@Example.COM ", at("2024-11-01T01:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, identity.Email)
	assert.Equal(t, "jane@example.com", *identity.Email)

	// A second identify with a different address is ignored.
	identity, err = identifyVisitor(identities, "visitor-key", "other@example.com", at("2024-11-01T02:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, identity.Email)
	assert.Equal(t, "jane@example.com", *identity.Email)
}

func TestIdentifyVisitorBeforeAnyTouch(t *testing.T) {
	identities := &fakeIdentityRepo{}

	identity, err := identifyVisitor(identities, "fresh-key", "jane@example.com", at("2024-11-01T00:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, identity.Email)
	assert.Equal(t, "jane@example.com", *identity.Email)
	assert.True(t, identity.FirstTouch.IsDirect(), "identify-only visitor has an empty first-touch snapshot")
}

func TestIdentifyVisitorRejectsInvalidInput(t *testing.T) {
	identities := &fakeIdentityRepo{}

	_, err := identifyVisitor(identities, "", "jane@example.com", at("2024-11-01T00:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidIdentify)

	_, err = identifyVisitor(identities, "k", "not-an-email", at("2024-11-01T00:00:00Z"))
	assert.ErrorIs(t, err, ErrInvalidIdentify)
}

func TestNormalizeFieldCollapsesEmpty(t *testing.T) {
	assert.Nil(t, normalizeField(nil))
	assert.Nil(t, normalizeField(strPtr("   ")))
	got := normalizeField(strPtr("  youtube "))
	require.NotNil(t, got)
	assert.Equal(t, "youtube", *got)
}
