package entity

import (
	"errors"
	"fmt"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestSelectFunnel(t *testing.T) {
	cases := []struct {
		status string
		want   Funnel
	}{
		{"bdr_inbound", FunnelInitialOutreach},
		{"sdr_qualified", FunnelQualifiedLead},
		{"sdr_", FunnelQualifiedLead},
		{"", FunnelInitialOutreach},
		{"SDR_qualified", FunnelInitialOutreach},
		{"customer", FunnelInitialOutreach},
		{" sdr_qualified", FunnelInitialOutreach},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%q", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, SelectFunnel(tc.status))
		})
	}
}

func TestFunnelNames(t *testing.T) {
	assert.Equal(t, "core_bdr", FunnelInitialOutreach.String())
	assert.Equal(t, "core_sdr", FunnelQualifiedLead.String())
	assert.Equal(t, "core_bdr", Funnel(42).String())
}

func TestDefaultContactRoutesToInitialOutreach(t *testing.T) {
	c := DefaultContact("tenant_123", "5511999999999")
	assert.Equal(t, "bdr_inbound", c.ContactStatus)
	assert.Equal(t, "core_bdr", SelectFunnel(c.ContactStatus).String())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("dialogflow: %w", ErrAgentUnavailable)))
	assert.True(t, IsRetryable(fmt.Errorf("graph: %w", ErrDeliveryFailed)))
	assert.False(t, IsRetryable(fmt.Errorf("graph: %w", ErrInvalidRecipient)))
	assert.True(t, IsRetryable(fmt.Errorf("mongo: %w", ErrStoreUnavailable)))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(errors.New("boom")))
	assert.Equal(t, "not_found", FailureKind(fmt.Errorf("channel 1: %w", ErrNotFound)))
}
