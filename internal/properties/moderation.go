package properties

import (
	"context"
	"realestate-platform/internal/apperror"
	"realestate-platform/internal/auth"
	"realestate-platform/internal/logger"
	"realestate-platform/internal/models"
	"realestate-platform/internal/notify"
	"realestate-platform/internal/search"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ModerationAction is an admin decision on a listing
type ModerationAction string

const (
	ActionApprove     ModerationAction = "approve"
	ActionReject      ModerationAction = "reject"
	ActionRequestInfo ModerationAction = "request-info"
	ActionUnavailable ModerationAction = "unavailable"
)

type moderationRule struct {
	status   models.PropertyStatus
	verified bool
	notice   notify.Input // default owner notification
	reply    string
}

var moderationRules = map[ModerationAction]moderationRule{
	ActionApprove: {
		status:   models.PropertyStatusActive,
		verified: true,
		notice: notify.Input{
			Type:    models.NotificationTypeStatusChange,
			Title:   "Το ακίνητο εγκρίθηκε",
			Message: "Το ακίνητό σας εγκρίθηκε από τον διαχειριστή και είναι πλέον δημοσιευμένο.",
		},
		reply: "Το ακίνητο εγκρίθηκε επιτυχώς",
	},
	ActionReject: {
		status: models.PropertyStatusRejected,
		notice: notify.Input{
			Type:    models.NotificationTypeStatusChange,
			Title:   "Το ακίνητο απορρίφθηκε",
			Message: "Το ακίνητό σας απορρίφθηκε από τον διαχειριστή.",
		},
		reply: "Το ακίνητο απορρίφθηκε",
	},
	ActionRequestInfo: {
		status: models.PropertyStatusInfoRequested,
		notice: notify.Input{
			Type:    models.NotificationTypeInfoRequest,
			Title:   "Αίτημα για επιπλέον πληροφορίες",
			Message: "Ο διαχειριστής ζήτησε επιπλέον πληροφορίες για το ακίνητό σας.",
		},
		reply: "Το αίτημα για πληροφορίες στάλθηκε",
	},
	ActionUnavailable: {
		status: models.PropertyStatusUnavailable,
		notice: notify.Input{
			Type:    models.NotificationTypeStatusChange,
			Title:   "Ακίνητο μη διαθέσιμο",
			Message: "Το ακίνητό σας έχει χαρακτηριστεί ως μη διαθέσιμο από τον διαχειριστή.",
		},
		reply: "Το ακίνητο χαρακτηρίστηκε μη διαθέσιμο",
	},
}

// Moderated is a listing after an admin decision
type Moderated struct {
	Property *models.Property `json:"property"`
	Message  string           `json:"message"`
}

// Moderate applies an admin decision: the status moves, the change is
// recorded, the search index is queued and the owner is notified. message,
// when set, replaces the default notification text.
func (s *Service) Moderate(ctx context.Context, p auth.Principal, propertyID string, action ModerationAction, message string) (*Moderated, error) {
	if !p.IsAdmin() {
		return nil, apperror.Forbidden("Admin access required")
	}
	rule, ok := moderationRules[action]
	if !ok {
		return nil, apperror.Validation("Unknown moderation action %q", string(action))
	}

	var property *models.Property
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if property, err = load(tx, propertyID); err != nil {
			return err
		}
		before := *property
		property.Status = rule.status
		property.IsVerified = rule.verified
		if err := tx.Save(property).Error; err != nil {
			return err
		}
		if err := saveChanges(tx, detectChanges(&before, property, p.UserID)); err != nil {
			return err
		}
		if err := search.Enqueue(tx, property.ID, models.IndexActionUpsert); err != nil {
			return err
		}

		notice := rule.notice
		notice.UserID = property.UserID
		if m := plainText(message); m != "" {
			notice.Message = m
		}
		notice.Metadata = map[string]interface{}{
			"propertyId": property.ID,
			"action":     string(action),
			"status":     string(rule.status),
		}
		_, err = s.notify.Create(tx, notice)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("listing moderated",
		zap.String("property_id", property.ID),
		zap.String("action", string(action)),
		zap.String("by", p.UserID))
	return &Moderated{Property: property, Message: rule.reply}, nil
}

// ParseModerationAction accepts the path forms used by the admin API
func ParseModerationAction(s string) (ModerationAction, bool) {
	a := ModerationAction(strings.ToLower(strings.TrimSpace(s)))
	_, ok := moderationRules[a]
	return a, ok
}
