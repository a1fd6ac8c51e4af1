package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ name string }

func (s *stubProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (s *stubProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (s *stubProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return "chat", nil
}

func (s *stubProvider) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	return "generated", nil
}

func (s *stubProvider) Name() string { return s.name }

func TestRegistryFullProvider(t *testing.T) {
	RegisterProvider("stub-full", func(config map[string]any) (Provider, error) {
		return &stubProvider{name: "stub-full"}, nil
	})

	embed, err := NewEmbeddingProvider("stub-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub-full", embed.Name())

	chat, err := NewChatProvider("stub-full", nil)
	require.NoError(t, err)
	assert.Equal(t, "stub-full", chat.Name())
}

func TestRegistryChatOnlyWinsOverFull(t *testing.T) {
	RegisterProvider("stub-both", func(config map[string]any) (Provider, error) {
		return &stubProvider{name: "full"}, nil
	})
	RegisterChatProvider("stub-both", func(config map[string]any) (ChatProvider, error) {
		return &stubProvider{name: "chat-only"}, nil
	})

	chat, err := NewChatProvider("stub-both", nil)
	require.NoError(t, err)
	assert.Equal(t, "chat-only", chat.Name())
}

func TestRegistryUnknown(t *testing.T) {
	_, err := NewEmbeddingProvider("nope", nil)
	assert.Error(t, err)

	_, err = NewChatProvider("nope", nil)
	assert.Error(t, err)
}

func TestListProviders(t *testing.T) {
	RegisterProvider("stub-list", func(config map[string]any) (Provider, error) {
		return &stubProvider{name: "stub-list"}, nil
	})
	assert.Contains(t, ListProviders(), "stub-list")
}
