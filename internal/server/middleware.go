package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/techwallet/internal/audit/domain"
	obscontext "github.com/smallbiznis/techwallet/internal/observability/context"
)

const (
	HeaderActorType = "X-Actor-Type"
	HeaderActorID   = "X-Actor-Id"
)

// ActorContext attaches the calling actor to the request context so audit
// entries and logs can attribute the action. Unknown actor types are ignored.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorType := strings.ToUpper(strings.TrimSpace(c.GetHeader(HeaderActorType)))
		actorID := strings.TrimSpace(c.GetHeader(HeaderActorID))

		switch auditdomain.ActorType(actorType) {
		case auditdomain.ActorTypeAdmin,
			auditdomain.ActorTypeTechnician,
			auditdomain.ActorTypePlatform,
			auditdomain.ActorTypeSystem:
			ctx := obscontext.WithActor(c.Request.Context(), actorType, actorID)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

func actorIDFromRequest(c *gin.Context) string {
	_, actorID := obscontext.ActorFromContext(c.Request.Context())
	return actorID
}
