package certhttp

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-certificate/certificate"
)

// Actor headers read by HeaderActor.
const (
	HeaderActorID  = "X-Actor-ID"
	HeaderTenantID = "X-Tenant-ID"
	HeaderOrgID    = "X-Org-ID"
)

// ActorFunc resolves the requesting actor from a fiber request.
type ActorFunc func(c *fiber.Ctx) (certificate.Actor, error)

// HeaderActor reads the actor from request headers. An absent actor is not an error.
func HeaderActor(c *fiber.Ctx) (certificate.Actor, error) {
	return certificate.Actor{
		ID:       strings.TrimSpace(c.Get(HeaderActorID)),
		TenantID: strings.TrimSpace(c.Get(HeaderTenantID)),
		OrgID:    strings.TrimSpace(c.Get(HeaderOrgID)),
	}, nil
}

// StaticActor always resolves to the given actor.
func StaticActor(actor certificate.Actor) ActorFunc {
	return func(*fiber.Ctx) (certificate.Actor, error) {
		return actor, nil
	}
}

func (h *Handler) withActor(c *fiber.Ctx) error {
	actor, err := h.actor(c)
	if err != nil {
		return writeError(c, err)
	}
	c.SetUserContext(certificate.ContextWithActor(c.UserContext(), actor))
	return c.Next()
}
