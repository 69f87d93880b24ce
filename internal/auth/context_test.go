package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestEnforceOrganizationScope(t *testing.T) {
	org := uuid.New()

	if err := EnforceOrganizationScope(context.Background(), uuid.New()); err != nil {
		t.Fatalf("unscoped context must allow access, got %v", err)
	}

	ctx := ContextWithOrganizationID(context.Background(), org)
	if err := EnforceOrganizationScope(ctx, org); err != nil {
		t.Fatalf("matching scope must allow access, got %v", err)
	}
	if err := EnforceOrganizationScope(ctx, uuid.New()); !errors.Is(err, ErrOutOfScope) {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
}

func TestOrganizationFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if id, err := OrganizationFromRequest(req); err != nil || id != uuid.Nil {
		t.Fatalf("expected nil id without header, got %v %v", id, err)
	}

	org := uuid.New()
	req.Header.Set(OrganizationHeader, " "+org.String()+" ")
	if id, err := OrganizationFromRequest(req); err != nil || id != org {
		t.Fatalf("expected %s, got %v %v", org, id, err)
	}

	req.Header.Set(OrganizationHeader, "not-a-uuid")
	if _, err := OrganizationFromRequest(req); err == nil {
		t.Fatalf("expected error for malformed header")
	}
}
