package activity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/types"
)

// Recorder is the write-only surface business services depend on.
type Recorder interface {
	Record(ctx context.Context, actor types.Actor, action enums.ActivityAction, description string, entityType enums.ActivityEntityType, entityID uuid.UUID)
}

type writer interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
}

// Sink writes activity entries outside of any business transaction. Failures
// are logged and dropped; callers never see them.
type Sink struct {
	repo writer
	logg *logger.Logger
	now  func() time.Time
}

func NewSink(repo writer, logg *logger.Logger) *Sink {
	return &Sink{repo: repo, logg: logg, now: time.Now}
}

func (s *Sink) Record(ctx context.Context, actor types.Actor, action enums.ActivityAction, description string, entityType enums.ActivityEntityType, entityID uuid.UUID) {
	if s == nil || s.repo == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	entry := &models.ActivityLog{
		ID:          uuid.New(),
		Action:      action,
		Description: description,
		IPAddress:   optionalString(actor.IPAddress),
		UserAgent:   optionalString(actor.UserAgent),
		CreatedAt:   s.now().UTC(),
	}
	if !actor.IsSystem() {
		userID := actor.UserID
		entry.UserID = &userID
	}
	if entityType != "" {
		et := entityType.String()
		entry.EntityType = &et
	}
	if entityID != uuid.Nil {
		id := entityID
		entry.EntityID = &id
	}

	// Detach from request cancellation so a client hang-up does not drop the entry.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.repo.Insert(writeCtx, entry); err != nil && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"action":      action,
			"entity_type": entityType,
			"entity_id":   entityID.String(),
		})
		s.logg.Error(logCtx, "activity.record_failed", err)
	}
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, types.Actor, enums.ActivityAction, string, enums.ActivityEntityType, uuid.UUID) {
}
