package entity

import "encoding/json"

// PlaybookConfig is passed through to the agent service unmodified.
type PlaybookConfig map[string]interface{}

func (p PlaybookConfig) JSON() (string, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type Tenant struct {
	TenantID        string                    `json:"tenant_id" bson:"_id"`
	PlaybookConfigs map[string]PlaybookConfig `json:"playbook_configs" bson:"playbook_configs"`
}

func (t *Tenant) Playbook(funnel Funnel) (PlaybookConfig, bool) {
	if t == nil || t.PlaybookConfigs == nil {
		return nil, false
	}
	p, ok := t.PlaybookConfigs[funnel.String()]
	return p, ok
}
