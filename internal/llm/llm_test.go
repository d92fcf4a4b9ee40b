package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/live-neon/neon-soul-sub008/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseDimension(t *testing.T) {
	assert.Equal(t, domain.DimensionValues, parseDimension("values"))
	assert.Equal(t, domain.DimensionVoice, parseDimension("  Voice\n"))
	assert.Equal(t, domain.DimensionWorldview, parseDimension("WORLDVIEW"))
	assert.Equal(t, domain.DimensionGeneral, parseDimension("philosophy"))
	assert.Equal(t, domain.DimensionGeneral, parseDimension(""))
}

func TestNewClient_Providers(t *testing.T) {
	client, err := NewClient(ProviderMock, "")
	assert.NoError(t, err)
	assert.NotNil(t, client)

	_, err = NewClient(ProviderOpenAI, "")
	assert.Error(t, err)

	_, err = NewClient(ProviderAnthropic, "")
	assert.Error(t, err)

	_, err = NewClient("unknown", "key")
	assert.Error(t, err)
}

func TestMockClient_ClassifyByText(t *testing.T) {
	client := NewMockClient()
	client.ClassifyByText = map[string]domain.Dimension{
		"I speak plainly": domain.DimensionVoice,
	}

	dim, err := client.Classify(context.Background(), "I speak plainly")
	assert.NoError(t, err)
	assert.Equal(t, domain.DimensionVoice, dim)

	dim, err = client.Classify(context.Background(), "something else")
	assert.NoError(t, err)
	assert.Equal(t, domain.DimensionGeneral, dim)

	assert.Len(t, client.ClassifyCalls, 2)
}

func TestMockClient_ErrorsAndReset(t *testing.T) {
	client := NewMockClient()
	client.GenerateError = errors.New("down")

	_, err := client.Generate(context.Background(), "prompt")
	assert.Error(t, err)

	client.Reset()
	out, err := client.Generate(context.Background(), "prompt")
	assert.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.Len(t, client.GenerateCalls, 1)
}
