package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

// scramClient adapts xdg-go/scram to sarama.SCRAMClient for one hash function.
type scramClient struct {
	hash         scram.HashGeneratorFcn
	conversation *scram.ClientConversation
}

func newSCRAMClient(mech sarama.SASLMechanism) (*scramClient, error) {
	switch mech {
	case sarama.SASLTypeSCRAMSHA256:
		return &scramClient{hash: scram.SHA256}, nil
	case sarama.SASLTypeSCRAMSHA512:
		return &scramClient{hash: scram.SHA512}, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism %q", mech)
	}
}

func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hash.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}

	c.conversation = client.NewConversation()

	return nil
}

func (c *scramClient) Step(challenge string) (string, error) {
	return c.conversation.Step(challenge)
}

func (c *scramClient) Done() bool {
	return c.conversation.Done()
}
