package kafka

import (
	"strings"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSCRAMClientStartsConversation(t *testing.T) {
	for _, mech := range []sarama.SASLMechanism{sarama.SASLTypeSCRAMSHA256, sarama.SASLTypeSCRAMSHA512} {
		client, err := newSCRAMClient(mech)
		require.NoError(t, err, mech)

		require.NoError(t, client.Begin("callpath", "secret", ""))

		first, err := client.Step("")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(first, "n,,n=callpath,r="), first)
		assert.False(t, client.Done())
	}
}

func TestNewSCRAMClientRejectsUnknownMechanism(t *testing.T) {
	_, err := newSCRAMClient(sarama.SASLTypePlaintext)
	require.Error(t, err)
}
