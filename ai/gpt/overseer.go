package gpt

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultThreadIdle = 24 * time.Hour

type thread struct {
	messages []openai.ChatCompletionMessage
	lastUsed time.Time
}

// Overseer answers through chat completions, keeping a short history per agent session.
// Histories idle for longer than threadIdle are dropped.
type Overseer struct {
	client     *openai.Client
	model      string
	history    int
	threadIdle time.Duration
	threads    map[string]thread
	lastSweep  time.Time
	mu         sync.Mutex
	locker     *LockThreads
	now        func() time.Time
	log        *slog.Logger
}

// LockThreads serializes calls per session. A session's mutex lives only while some
// caller holds or waits for it.
type LockThreads struct {
	mutex   sync.Mutex
	threads map[string]*threadLock
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

func NewOverseer(apiKey, model, baseURL string, history int, logger *slog.Logger) *Overseer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if history <= 0 {
		history = 20
	}
	return &Overseer{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		history:    history,
		threadIdle: defaultThreadIdle,
		threads:    make(map[string]thread),
		locker:     &LockThreads{threads: make(map[string]*threadLock)},
		now:        time.Now,
		log:        logger.With(sl.Module("overseer")),
	}
}

func (l *LockThreads) Lock(sessionID string) {
	l.mutex.Lock()
	t, exists := l.threads[sessionID]
	if !exists {
		t = &threadLock{}
		l.threads[sessionID] = t
	}
	t.refs++
	l.mutex.Unlock()

	t.mu.Lock()
}

func (l *LockThreads) Unlock(sessionID string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	t, exists := l.threads[sessionID]
	if !exists {
		return
	}
	t.mu.Unlock()
	t.refs--
	if t.refs == 0 {
		delete(l.threads, sessionID)
	}
}

func (l *LockThreads) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.threads)
}

// DetectIntent sends the user text with the session parameters as system context.
func (o *Overseer) DetectIntent(ctx context.Context, sessionID, text string, params map[string]interface{}) (string, error) {
	o.locker.Lock(sessionID)
	defer o.locker.Unlock(sessionID)

	o.mu.Lock()
	var past []openai.ChatCompletionMessage
	if t, ok := o.threads[sessionID]; ok && o.now().Sub(t.lastUsed) < o.threadIdle {
		past = append(past, t.messages...)
	}
	o.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(past)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt(params),
	})
	messages = append(messages, past...)
	userMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	messages = append(messages, userMsg)

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	o.remember(sessionID, userMsg, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: answer})

	o.log.With(
		slog.String("session", sessionID),
		slog.Int("tokens", resp.Usage.TotalTokens),
	).Debug("chat completion")

	return answer, nil
}

// ResetConversation drops the stored history of a session.
func (o *Overseer) ResetConversation(sessionID string) {
	o.mu.Lock()
	delete(o.threads, sessionID)
	o.mu.Unlock()
}

func (o *Overseer) remember(sessionID string, msgs ...openai.ChatCompletionMessage) {
	now := o.now()

	o.mu.Lock()
	defer o.mu.Unlock()

	var messages []openai.ChatCompletionMessage
	if t, ok := o.threads[sessionID]; ok && now.Sub(t.lastUsed) < o.threadIdle {
		messages = t.messages
	}
	messages = append(messages, msgs...)
	if len(messages) > o.history {
		messages = messages[len(messages)-o.history:]
	}
	o.threads[sessionID] = thread{messages: messages, lastUsed: now}

	if now.Sub(o.lastSweep) >= o.threadIdle {
		o.lastSweep = now
		for id, t := range o.threads {
			if now.Sub(t.lastUsed) >= o.threadIdle {
				delete(o.threads, id)
			}
		}
	}
}

// Sessions counts the histories currently held.
func (o *Overseer) Sessions() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.threads)
}

func systemPrompt(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("You are a sales assistant. Follow the playbook and session parameters below.\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, params[k])
	}
	return b.String()
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusBadRequest || apiErr.HTTPStatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", entity.ErrAgentRejected, err)
		}
	}
	return fmt.Errorf("%w: %v", entity.ErrAgentUnavailable, err)
}
