package minio

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotKeyLayout(t *testing.T) {
	generatedAt := time.Date(2025, 7, 10, 16, 4, 5, 0, time.FixedZone("CEST", 2*3600))

	key := SnapshotKey(generatedAt)

	assert.Regexp(t, regexp.MustCompile(`^2025/07/10/20250710T140405Z-[0-9a-f-]{36}\.json$`), key)
	assert.NotEqual(t, key, SnapshotKey(generatedAt))
}

func TestObjectKeyUsesPrefix(t *testing.T) {
	store := &SnapshotStore{Endpoint: "minio.local:9000", Bucket: "callpath", Prefix: "ivr-journeys"}

	assert.Equal(t, "ivr-journeys/2025/07/10/x.json", store.objectKey("2025/07/10/x.json"))
	assert.Equal(t, "minio.local:9000/callpath/ivr-journeys/x.json", store.ObjectURL("x.json"))
}
