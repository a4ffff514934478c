package jobs

import (
	"context"
	"sync"
)

type call struct {
	Method  string
	Channel string
	Ts      string
	Text    string
}

// MockNotifier records every call and delegates to the Func fields when set.
type MockNotifier struct {
	PostFunc      func(ctx context.Context, channel, text string) (string, error)
	PostReplyFunc func(ctx context.Context, channel, thread, text string) (string, error)
	EditFunc      func(ctx context.Context, channel, ts, text string) error

	mu    sync.Mutex
	calls []call
}

func (m *MockNotifier) record(c call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *MockNotifier) Calls() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]call(nil), m.calls...)
}

func (m *MockNotifier) Post(ctx context.Context, channel, text string) (string, error) {
	m.record(call{Method: "Post", Channel: channel, Text: text})
	if m.PostFunc != nil {
		return m.PostFunc(ctx, channel, text)
	}
	return "1709294400.000100", nil
}

func (m *MockNotifier) PostReply(ctx context.Context, channel, thread, text string) (string, error) {
	m.record(call{Method: "PostReply", Channel: channel, Ts: thread, Text: text})
	if m.PostReplyFunc != nil {
		return m.PostReplyFunc(ctx, channel, thread, text)
	}
	return "1709294400.000200", nil
}

func (m *MockNotifier) Edit(ctx context.Context, channel, ts, text string) error {
	m.record(call{Method: "Edit", Channel: channel, Ts: ts, Text: text})
	if m.EditFunc != nil {
		return m.EditFunc(ctx, channel, ts, text)
	}
	return nil
}
