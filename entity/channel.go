package entity

import (
	"FunnelRouter/internal/lib/validate"
)

const (
	PlatformWhatsApp  = "whatsapp"
	PlatformInstagram = "instagram"
)

// ChannelMapping binds one messaging endpoint to exactly one tenant.
type ChannelMapping struct {
	ChannelID            string `json:"channel_id" bson:"_id" validate:"required"`
	TenantID             string `json:"tenant_id" bson:"tenant_id" validate:"required"`
	CredentialSecretName string `json:"credential_secret_name" bson:"credential_secret_name" validate:"required"`
	Platform             string `json:"platform,omitempty" bson:"platform,omitempty"`
}

func (c *ChannelMapping) Validate() error {
	return validate.Struct(c)
}
