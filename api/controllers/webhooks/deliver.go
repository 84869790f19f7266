package webhooks

import (
	"context"
	"net/http"

	"github.com/angelmondragon/bakehouse-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bakehouse-backend/pkg/errors"
	"github.com/angelmondragon/bakehouse-backend/pkg/logger"
)

// maxPayloadBytes caps gateway notification bodies.
const maxPayloadBytes = 1 << 16

// ReplayGuard remembers accepted gateway event ids.
type ReplayGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type delivery struct {
	gateway   string
	eventID   string
	eventType string
}

// deliverOnce runs apply unless the delivery was already accepted. A failed
// apply forgets the delivery so the gateway's retry is processed again.
// Duplicates are acknowledged with 200 so the gateway stops retrying.
func deliverOnce(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, guard ReplayGuard, d delivery, apply func(context.Context) error) {
	if logg == nil {
		logg = logger.Nop()
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"gateway":    d.gateway,
		"event_id":   d.eventID,
		"event_type": d.eventType,
	})

	seen, err := guard.CheckAndMark(ctx, d.eventID)
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check replay"))
		return
	}
	if seen {
		logg.Info(ctx, "webhook.duplicate")
		responses.WriteSuccess(w, map[string]bool{"duplicate": true})
		return
	}

	if err := apply(ctx); err != nil {
		if delErr := guard.Delete(ctx, d.eventID); delErr != nil {
			logg.Error(ctx, "webhook.replay_release_failed", delErr)
		}
		responses.WriteError(ctx, logg, w, err)
		return
	}
	logg.Info(ctx, "webhook.applied")
	responses.WriteSuccess(w, map[string]bool{"duplicate": false})
}

func unavailable(ctx context.Context, w http.ResponseWriter, logg *logger.Logger, what string) {
	responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, what+" unavailable"))
}
