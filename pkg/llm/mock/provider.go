// Package mock provides a scripted LLMProvider for tests and offline runs.
package mock

import (
	"context"
	"sync"

	"ai-chatbot-be/pkg/llm"
)

// Call records one request the provider received
type Call struct {
	Messages []llm.Message
	Options  llm.Options
}

// Provider answers with Handler when set, otherwise pops Responses in order
// and falls back to Default once they run out.
type Provider struct {
	mu        sync.Mutex
	Responses []Response
	Default   string
	Handler   func(ctx context.Context, messages []llm.Message) (string, error)
	calls     []Call
}

type Response struct {
	Text string
	Err  error
}

var _ llm.LLMProvider = &Provider{}

func NewProvider(def string) *Provider {
	return &Provider{Default: def}
}

// Push queues responses returned by the next calls.
func (p *Provider) Push(responses ...Response) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Responses = append(p.Responses, responses...)
	return p
}

func (p *Provider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := llm.NewOptions(opts...)
	msgs := append([]llm.Message(nil), history...)

	p.mu.Lock()
	p.calls = append(p.calls, Call{Messages: msgs, Options: *options})
	handler := p.Handler
	var next *Response
	if handler == nil && len(p.Responses) > 0 {
		r := p.Responses[0]
		p.Responses = p.Responses[1:]
		next = &r
	}
	def := p.Default
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if handler != nil {
		return handler(ctx, msgs)
	}
	if next != nil {
		return next.Text, next.Err
	}
	return def, nil
}

func (p *Provider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

// Calls returns a copy of every request received so far.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallCount is len(Calls()).
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// LastPrompt returns the content of the final message of the latest call.
func (p *Provider) LastPrompt() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	msgs := p.calls[len(p.calls)-1].Messages
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Content
}
