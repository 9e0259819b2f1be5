package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Replies shown instead of an assistant answer.
const (
	replyMissingKey  = "I'm sorry, I cannot connect to the AI service right now (Missing API Key)."
	replyUnavailable = "I'm having trouble connecting to the local network. Please try again later."
	replyEmpty       = "I didn't catch that. Could you try again?"
)

// chatBackend is the model behind the assistant.
type chatBackend interface {
	// Send continues the conversation opened with systemPrompt.
	Send(ctx context.Context, systemPrompt, message string) (string, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Assistant answers free-text questions about the directory. It never fails:
// every error turns into a fixed reply.
type Assistant struct {
	backend chatBackend
	store   *Store
	log     *zap.Logger
}

// NewAssistant wires a Gemini backend when apiKey is set.
func NewAssistant(ctx context.Context, apiKey, model string, store *Store, log *zap.Logger) (*Assistant, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Assistant{store: store, log: log}
	if apiKey == "" {
		return a, nil
	}
	backend, err := newGeminiBackend(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	a.backend = backend
	return a, nil
}

// Reply answers message.
func (a *Assistant) Reply(ctx context.Context, message string) string {
	if a.backend == nil {
		return replyMissingKey
	}
	text, err := a.backend.Send(ctx, a.systemPrompt(), message)
	if err != nil {
		a.log.Warn("assistant request failed", zap.Error(err))
		return replyUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return replyEmpty
	}
	return text
}

// Translate renders text in lang, returning text unchanged on any failure.
func (a *Assistant) Translate(ctx context.Context, text, lang string) string {
	if a.backend == nil {
		return text
	}
	out, err := a.backend.Generate(ctx, fmt.Sprintf("Translate the following text to %s: %q", lang, text))
	if err != nil {
		a.log.Warn("translation failed", zap.String("lang", lang), zap.Error(err))
		return text
	}
	if strings.TrimSpace(out) == "" {
		return text
	}
	return out
}

type promptFarmer struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Products string `json:"products"`
}

func (a *Assistant) systemPrompt() string {
	var listing []promptFarmer
	for _, f := range a.store.Discover(Query{}) {
		names := make([]string, len(f.Products))
		for i, p := range f.Products {
			names[i] = p.Name
		}
		listing = append(listing, promptFarmer{Name: f.Name, Location: f.Address, Products: strings.Join(names, ", ")})
	}
	data, _ := json.Marshal(listing)
	return fmt.Sprintf(`You are the "Riga Harvest AI Assistant". Your goal is to help users find local sustainable food in Latvia.
You have access to the following farmers data (context):
%s

1. Answer questions about these specific farmers.
2. If asked about seasonal produce in Latvia, give general advice based on the month (e.g., Strawberries in June/July, Mushrooms in August/September).
3. Be friendly, concise, and helpful.
4. If asked to translate, provide translations in English, Latvian, or Russian.`, data)
}

// geminiBackend keeps one chat session for the process, like a single open
// chat window.
type geminiBackend struct {
	client *genai.Client
	model  string

	mu   sync.Mutex
	chat *genai.Chat
}

func newGeminiBackend(ctx context.Context, apiKey, model string) (*geminiBackend, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiBackend{client: client, model: model}, nil
}

func (g *geminiBackend) Send(ctx context.Context, systemPrompt, message string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chat == nil {
		chat, err := g.client.Chats.Create(ctx, g.model, &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}, nil)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}
		g.chat = chat
	}
	resp, err := g.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.Text(), nil
}

func (g *geminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
