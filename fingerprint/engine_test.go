package fingerprint_test

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verity-secure/evidence-services/fingerprint"
)

// sha256 of the ASCII string "hello"
const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestComputeKnownDigest(t *testing.T) {
	fp, err := fingerprint.Compute(strings.NewReader("hello"))
	require.Nil(t, err)
	assert.Equal(t, helloDigest, fp.Digest)
	assert.Equal(t, int64(5), fp.Size)
	assert.True(t, strings.HasPrefix(fp.ContentID, "bafkrei"),
		"CIDv1 raw + sha2-256 should start with bafkrei, got %s", fp.ContentID)
}

func TestComputeIsDeterministic(t *testing.T) {
	payload := make([]byte, 2*1024*1024)
	_, err := rand.Read(payload)
	require.Nil(t, err)

	first, err := fingerprint.Compute(bytes.NewReader(payload))
	require.Nil(t, err)
	second, err := fingerprint.Compute(bytes.NewReader(payload))
	require.Nil(t, err)

	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, first.ContentID, second.ContentID)
	assert.Equal(t, first.Size, second.Size)
}

func TestComputeDiffersOnDifferentContent(t *testing.T) {
	first, err := fingerprint.Compute(strings.NewReader("hello"))
	require.Nil(t, err)
	second, err := fingerprint.Compute(strings.NewReader("hello "))
	require.Nil(t, err)
	assert.NotEqual(t, first.Digest, second.Digest)
	assert.NotEqual(t, first.ContentID, second.ContentID)
}

func TestContentIDForDigest(t *testing.T) {
	contentID, err := fingerprint.ContentIDForDigest(helloDigest)
	require.Nil(t, err)

	fp, err := fingerprint.Compute(strings.NewReader("hello"))
	require.Nil(t, err)
	assert.Equal(t, fp.ContentID, contentID,
		"content id derived from digest must match content id from full compute")
}

func TestContentIDForDigestRejectsBadInput(t *testing.T) {
	_, err := fingerprint.ContentIDForDigest("not-hex")
	assert.NotNil(t, err)

	_, err = fingerprint.ContentIDForDigest("abcd")
	assert.NotNil(t, err, "short digests are rejected")
}
