package s3

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectStorage_Defaults(t *testing.T) {
	store, ok := NewObjectStorage("", 0).(*ObjectStorage)
	require.True(t, ok)

	assert.Equal(t, "us-east-1", store.Region)
	assert.Equal(t, 7*24*time.Hour, store.PresignExpiry)
}

func TestUploadFile_NotConnected(t *testing.T) {
	store := NewObjectStorage("eu-west-3", time.Hour)

	_, err := store.UploadFile(context.Background(), "proofs", "deliveries/42/signature.png",
		strings.NewReader("png"), 3, "image/png")

	assert.EqualError(t, err, "object storage is not connected")
}
