package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBackend struct {
	reply  string
	err    error
	prompt string
	sent   string
}

func (f *fakeBackend) Send(_ context.Context, systemPrompt, message string) (string, error) {
	f.prompt = systemPrompt
	f.sent = message
	return f.reply, f.err
}

func (f *fakeBackend) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func newTestAssistant(t *testing.T, b *fakeBackend) (*Assistant, *Store) {
	t.Helper()
	st := newTestStore(t, nil)
	return &Assistant{backend: b, store: st, log: zap.NewNop()}, st
}

func TestAssistantReply(t *testing.T) {
	b := &fakeBackend{reply: "Try Bišu Draugs in Sigulda."}
	a, st := newTestAssistant(t, b)
	st.Register(Farmer{Name: "Secret Pending Farm"})

	got := a.Reply(context.Background(), "Who sells honey?")

	assert.Equal(t, "Try Bišu Draugs in Sigulda.", got)
	assert.Equal(t, "Who sells honey?", b.sent)
	assert.Contains(t, b.prompt, "Riga Harvest AI Assistant")
	assert.Contains(t, b.prompt, "Forest Honey, Beeswax Candles")
	assert.Contains(t, b.prompt, "Sigulda region, Latvia")
	assert.NotContains(t, b.prompt, "Secret Pending Farm")
}

func TestAssistantFallbacks(t *testing.T) {
	testCases := []struct {
		name    string
		backend *fakeBackend
		want    string
	}{
		{name: "backend error", backend: &fakeBackend{err: assert.AnError}, want: replyUnavailable},
		{name: "empty answer", backend: &fakeBackend{reply: "  "}, want: replyEmpty},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a, _ := newTestAssistant(t, tc.backend)
			assert.Equal(t, tc.want, a.Reply(context.Background(), "hello"))
		})
	}

	t.Run("no key", func(t *testing.T) {
		a, err := NewAssistant(context.Background(), "", "", newTestStore(t, nil), zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, replyMissingKey, a.Reply(context.Background(), "hello"))
	})
}

func TestTranslate(t *testing.T) {
	b := &fakeBackend{reply: "Fresh honey"}
	a, _ := newTestAssistant(t, b)

	assert.Equal(t, "Fresh honey", a.Translate(context.Background(), "Svaigs medus", "English"))
	assert.Contains(t, b.prompt, "English")
	assert.Contains(t, b.prompt, "Svaigs medus")

	b.err = assert.AnError
	assert.Equal(t, "Svaigs medus", a.Translate(context.Background(), "Svaigs medus", "English"))

	b.err, b.reply = nil, ""
	assert.Equal(t, "Svaigs medus", a.Translate(context.Background(), "Svaigs medus", "English"))
}

func TestAssistantWithoutLogger(t *testing.T) {
	a, err := NewAssistant(context.Background(), "", "", newTestStore(t, nil), nil)
	require.NoError(t, err)
	a.backend = &fakeBackend{err: assert.AnError}

	assert.Equal(t, replyUnavailable, a.Reply(context.Background(), "hello"))
	assert.Equal(t, "labdien", a.Translate(context.Background(), "labdien", "English"))
}
