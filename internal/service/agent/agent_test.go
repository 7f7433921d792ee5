package agent

import (
	"FunnelRouter/entity"
	"context"
	"encoding/json"
	"errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"log/slog"
	"testing"
	"time"
)

type fakeService struct {
	sessions []string
	params   []map[string]interface{}
	reply    string
	err      error
}

func (f *fakeService) DetectIntent(_ context.Context, sessionID, _ string, params map[string]interface{}) (string, error) {
	f.sessions = append(f.sessions, sessionID)
	f.params = append(f.params, params)
	return f.reply, f.err
}

func newInvoker(svc AgentService) *Invoker {
	return NewInvoker(svc, 0, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sessionParams() entity.SessionParameters {
	return entity.SessionParameters{
		TenantID:            "tenant_123",
		ChannelID:           "123456789",
		UserID:              "5511999999999",
		Funnel:              entity.FunnelInitialOutreach,
		PlaybookConfig:      entity.PlaybookConfig{"tone": "friendly"},
		ContactStatus:       entity.DefaultContactStatus,
		ContactScore:        entity.DefaultContactScore,
		ContactContextScore: entity.DefaultContactContextScore,
	}
}

func TestInvoke(t *testing.T) {
	svc := &fakeService{reply: "Oi! Como posso ajudar?"}
	reply, err := newInvoker(svc).Invoke(context.Background(), "Olá", sessionParams())
	require.NoError(t, err)
	assert.Equal(t, "Oi! Como posso ajudar?", reply)

	require.Len(t, svc.params, 1)
	p := svc.params[0]
	assert.Equal(t, "core_bdr", p["funnel_id"])
	assert.Equal(t, "tenant_123", p["tenant_id"])
	assert.Equal(t, "bdr_inbound", p["contact_status"])
	assert.Equal(t, "default inbound lead", p["contact_context_score"])

	playbook, ok := p["playbook_config"].(string)
	require.True(t, ok, "playbook must be a string")
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(playbook), &decoded))
	assert.Equal(t, "friendly", decoded["tone"])
}

func TestSessionIsStable(t *testing.T) {
	svc := &fakeService{reply: "ok"}
	inv := newInvoker(svc)
	_, _ = inv.Invoke(context.Background(), "a", sessionParams())
	_, _ = inv.Invoke(context.Background(), "b", sessionParams())

	other := sessionParams()
	other.UserID = "5511000000000"
	_, _ = inv.Invoke(context.Background(), "c", other)

	require.Len(t, svc.sessions, 3)
	assert.Equal(t, svc.sessions[0], svc.sessions[1])
	assert.NotEqual(t, svc.sessions[0], svc.sessions[2])

	_, err := uuid.Parse(svc.sessions[0])
	assert.NoError(t, err)
	assert.Len(t, svc.sessions[0], 36)
}

func TestInvokeErrors(t *testing.T) {
	_, err := newInvoker(&fakeService{err: entity.ErrAgentRejected}).Invoke(context.Background(), "x", sessionParams())
	assert.ErrorIs(t, err, entity.ErrAgentRejected)
	assert.False(t, entity.IsRetryable(err))

	_, err = newInvoker(&fakeService{err: entity.ErrAgentUnavailable}).Invoke(context.Background(), "x", sessionParams())
	assert.ErrorIs(t, err, entity.ErrAgentUnavailable)

	_, err = newInvoker(&fakeService{err: errors.New("connection reset")}).Invoke(context.Background(), "x", sessionParams())
	assert.ErrorIs(t, err, entity.ErrAgentUnavailable)
	assert.True(t, entity.IsRetryable(err))
}

func TestNilPlaybookIsEmptyObject(t *testing.T) {
	p := sessionParams()
	p.PlaybookConfig = nil
	params, err := Parameters(p)
	require.NoError(t, err)
	assert.Equal(t, "{}", params["playbook_config"])
}

func TestPlaybookFieldsAreFlattened(t *testing.T) {
	p := sessionParams()
	p.PlaybookConfig = entity.PlaybookConfig{
		"rag_id":      "rag-42",
		"tone_prompt": "be brief",
		"Is_Active":   true,
		"status":      "on",
		"config":      "shadow",
		"name":        "shadow",
	}
	params, err := Parameters(p)
	require.NoError(t, err)

	assert.Equal(t, "rag-42", params["playbook_rag_id"])
	assert.Equal(t, "be brief", params["playbook_tone_prompt"])
	assert.Equal(t, "core_bdr", params["playbook_name"])
	assert.NotContains(t, params, "playbook_Is_Active")
	assert.NotContains(t, params, "playbook_status")
	assert.Equal(t, "bdr_inbound", params["contact_status"])

	playbook, ok := params["playbook_config"].(string)
	require.True(t, ok)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(playbook), &decoded))
	assert.Equal(t, true, decoded["Is_Active"], "the opaque copy is unfiltered")
}

type statefulService struct {
	fakeService
	reset []string
}

func (s *statefulService) ResetConversation(sessionID string) {
	s.reset = append(s.reset, sessionID)
}

func TestResetSession(t *testing.T) {
	svc := &statefulService{}
	inv := newInvoker(svc)
	require.NoError(t, inv.ResetSession("tenant_123", "123456789", "5511999999999"))
	assert.Equal(t, []string{SessionID("tenant_123", "123456789", "5511999999999")}, svc.reset)

	err := newInvoker(&fakeService{}).ResetSession("tenant_123", "123456789", "5511999999999")
	assert.ErrorIs(t, err, entity.ErrNotSupported)
}
