// Package mock provides test doubles for the Discord REST surface.
package mock

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder records interaction responses for test assertions.
// It satisfies discord.Responder.
type InteractionResponder struct {
	mu sync.Mutex

	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []*discordgo.WebhookParams

	// Err is returned by InteractionRespond and FollowupMessageCreate
	// when non-nil, allowing error injection.
	Err error
}

// InteractionRespond records the response and returns the configured error.
func (m *InteractionResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *InteractionResponder) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, params *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *InteractionResponder) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *InteractionResponder) LastFollowUp() *discordgo.WebhookParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// WebhookCall is one recorded webhook execution.
type WebhookCall struct {
	ID, Token string
	Params    *discordgo.WebhookParams
}

// WebhookExecutor records webhook executions. It satisfies
// discord.WebhookExecutor.
type WebhookExecutor struct {
	mu    sync.Mutex
	calls []WebhookCall

	// Err is returned from every call when non-nil.
	Err error

	// ErrFn, when set, decides the error per call and takes precedence
	// over Err.
	ErrFn func(call WebhookCall) error
}

// WebhookExecute records the call.
func (m *WebhookExecutor) WebhookExecute(id, token string, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	call := WebhookCall{ID: id, Token: token, Params: data}
	m.mu.Lock()
	m.calls = append(m.calls, call)
	errFn, err := m.ErrFn, m.Err
	m.mu.Unlock()

	if errFn != nil {
		err = errFn(call)
	}
	if err != nil {
		return nil, err
	}
	return &discordgo.Message{ID: "mock-webhook"}, nil
}

// Calls returns a copy of the recorded calls.
func (m *WebhookExecutor) Calls() []WebhookCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WebhookCall(nil), m.calls...)
}
