package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-secure/evidence-services/constants"
	"github.com/verity-secure/evidence-services/models/service"
)

func TestNewSession(t *testing.T) {
	session := service.NewSession("trip_8d7f2f4a")
	assert.Equal(t, "trip_8d7f2f4a", session.ID)
	assert.Equal(t, constants.SessionActive, session.Status)
	assert.True(t, session.IsActive())
	assert.False(t, session.CreatedAt.IsZero())
}

func TestSessionJsonRoundTrip(t *testing.T) {
	session := service.NewSession("trip_8d7f2f4a")
	jsonData, err := session.ToJson()
	require.Nil(t, err)

	restored, err := service.SessionFromJson(jsonData)
	require.Nil(t, err)
	assert.Equal(t, session.ID, restored.ID)
	assert.Equal(t, session.Status, restored.Status)
}

func TestLooksLikeSessionID(t *testing.T) {
	assert.True(t, service.LooksLikeSessionID("trip_12345"))
	assert.True(t, service.LooksLikeSessionID("trip_8d7f2f4a-77cd-4a2e-b1f0-0a93de11f9cb"))
	assert.False(t, service.LooksLikeSessionID("trip_"))
	assert.False(t, service.LooksLikeSessionID("12345"))
	assert.False(t, service.LooksLikeSessionID(""))
}
