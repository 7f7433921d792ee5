package repository

import (
	"FunnelRouter/entity"
	"context"
	"fmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"strings"
)

// GetContact returns the tenant's contact for the user, creating the default record
// on first contact. Phone-like ids are matched in all their stored spellings.
func (m *MongoDB) GetContact(ctx context.Context, tenantID, userID string) (*entity.Contact, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	def := entity.DefaultContact(tenantID, userID)
	filter := contactFilter(tenantID, userID)
	update := bson.M{"$setOnInsert": bson.M{
		"user_id":               def.UserID,
		"contact_status":        def.ContactStatus,
		"contact_score":         def.ContactScore,
		"contact_context_score": def.ContactContextScore,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var contact entity.Contact
	err := m.collection(contactsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&contact)
	if err != nil {
		return nil, fmt.Errorf("contact %s/%s: %w", tenantID, userID, m.findError(err))
	}
	return &contact, nil
}

func contactFilter(tenantID, userID string) bson.D {
	return bson.D{
		{Key: "tenant_id", Value: tenantID},
		{Key: "user_id", Value: bson.M{"$in": phoneVariations(userID)}},
	}
}

// phoneVariations lists the spellings a phone number may be stored under: with and
// without the leading '+', and for Brazilian mobiles with and without the 9th digit.
func phoneVariations(userID string) []string {
	variations := []string{userID}
	add := func(v string) {
		for _, existing := range variations {
			if existing == v {
				return
			}
		}
		variations = append(variations, v)
	}

	digits := strings.TrimPrefix(userID, "+")
	if digits == "" || strings.TrimFunc(digits, isDigit) != "" {
		return variations
	}
	add(digits)
	add("+" + digits)

	if strings.HasPrefix(digits, "55") {
		switch len(digits) {
		case 13:
			if digits[4] == '9' {
				short := digits[:4] + digits[5:]
				add(short)
				add("+" + short)
			}
		case 12:
			long := digits[:4] + "9" + digits[4:]
			add(long)
			add("+" + long)
		}
	}
	return variations
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
