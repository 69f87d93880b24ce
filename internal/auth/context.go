package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// OrganizationHeader carries the caller's organization scope.
const OrganizationHeader = "X-Organization-ID"

// ErrOutOfScope is returned when a caller reads an entity owned by another organization.
var ErrOutOfScope = errors.New("entity is outside the authenticated organization scope")

type contextKey string

const organizationIDKey contextKey = "organizationID"

// ContextWithOrganizationID returns a new context that carries the authenticated organization scope.
func ContextWithOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, organizationIDKey, id)
}

// OrganizationIDFromContext retrieves the authenticated organization scope from the context, if any.
func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(organizationIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// EnforceOrganizationScope allows access when no scope is set or the scope matches.
func EnforceOrganizationScope(ctx context.Context, organizationID uuid.UUID) error {
	scopedID, ok := OrganizationIDFromContext(ctx)
	if !ok {
		return nil
	}
	if scopedID != organizationID {
		return fmt.Errorf("organization %s: %w", organizationID, ErrOutOfScope)
	}
	return nil
}

// OrganizationFromRequest parses the scope header. A missing header yields uuid.Nil.
func OrganizationFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(r.Header.Get(OrganizationHeader))
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s header: %w", OrganizationHeader, err)
	}
	return id, nil
}
