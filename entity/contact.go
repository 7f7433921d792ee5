package entity

const (
	DefaultContactStatus       = "bdr_inbound"
	DefaultContactScore        = 0
	DefaultContactContextScore = "default inbound lead"
)

type Contact struct {
	TenantID            string  `json:"tenant_id" bson:"tenant_id"`
	UserID              string  `json:"user_id" bson:"user_id"`
	ContactStatus       string  `json:"contact_status" bson:"contact_status"`
	ContactScore        float64 `json:"contact_score" bson:"contact_score"`
	ContactContextScore string  `json:"contact_context_score" bson:"contact_context_score"`
}

// DefaultContact is the record used for a user the tenant has never seen.
func DefaultContact(tenantID, userID string) Contact {
	return Contact{
		TenantID:            tenantID,
		UserID:              userID,
		ContactStatus:       DefaultContactStatus,
		ContactScore:        DefaultContactScore,
		ContactContextScore: DefaultContactContextScore,
	}
}
