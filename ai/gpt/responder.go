package gpt

import (
	"FrappeBot/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultModel = openai.GPT4oMini
	historyTurns = 6
	historyTTL   = 30 * time.Minute
	maxTokens    = 300
	temperature  = 0.4
)

// ChatClient is the part of the OpenAI client the responder needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type dialog struct {
	messages []openai.ChatCompletionMessage
	updated  time.Time
}

// Responder answers free-form customer questions with a chat completion,
// keeping a short per-user history so follow-ups make sense.
type Responder struct {
	client       ChatClient
	model        string
	systemPrompt string
	mu           sync.Mutex
	dialogs      map[string]*dialog
	nowFunc      func() time.Time
	log          *slog.Logger
}

func NewResponder(client ChatClient, model, systemPrompt string, log *slog.Logger) *Responder {
	if model == "" {
		model = defaultModel
	}
	return &Responder{
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
		dialogs:      make(map[string]*dialog),
		nowFunc:      time.Now,
		log:          log.With(sl.Module("gpt.responder")),
	}
}

// NewOpenAIResponder builds a responder backed by the OpenAI API.
func NewOpenAIResponder(apiKey, model, systemPrompt string, log *slog.Logger) *Responder {
	return NewResponder(openai.NewClient(apiKey), model, systemPrompt, log)
}

func (r *Responder) Reply(ctx context.Context, userID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty question")
	}

	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: r.systemPrompt}}
	messages = append(messages, r.history(userID)...)
	messages = append(messages, userMsg)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("empty answer")
	}

	r.log.With(
		slog.String("user", userID),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
	).Debug("chat response")

	r.remember(userID, userMsg, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: answer})
	return answer, nil
}

func (r *Responder) history(userID string) []openai.ChatCompletionMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dialogs[userID]
	if !ok {
		return nil
	}
	if r.nowFunc().Sub(d.updated) > historyTTL {
		delete(r.dialogs, userID)
		return nil
	}
	out := make([]openai.ChatCompletionMessage, len(d.messages))
	copy(out, d.messages)
	return out
}

func (r *Responder) remember(userID string, msgs ...openai.ChatCompletionMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.dialogs[userID]
	if !ok {
		d = &dialog{}
		r.dialogs[userID] = d
	}
	d.messages = append(d.messages, msgs...)
	if over := len(d.messages) - historyTurns*2; over > 0 {
		d.messages = d.messages[over:]
	}
	d.updated = r.nowFunc()
}
