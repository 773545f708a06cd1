package kafka_test

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/runnr/pkg/channels/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty", input: "", expected: nil},
		{name: "single", input: "localhost:9092", expected: []string{"localhost:9092"}},
		{name: "list with blanks", input: " a:9092, ,b:9092,", expected: []string{"a:9092", "b:9092"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, kafka.ParseBrokers(tt.input))
		})
	}
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	t.Parallel()

	pub, sub, err := kafka.CreateChannel(watermill.NopLogger{}, "runnr", nil)
	require.ErrorIs(t, err, kafka.ErrNoBrokers)
	assert.Nil(t, pub)
	assert.Nil(t, sub)
}
