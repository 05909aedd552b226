package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/punkhunt/internal/domain"
)

func TestPreference_GetSet(t *testing.T) {
	db := newTestDB(t, &domain.Preference{})
	ctx := context.Background()

	if _, err := GetPreference(ctx, db, PrefSoundEnabled); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SetPreference(ctx, db, PrefSoundEnabled, "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := SetPreference(ctx, db, PrefSoundEnabled, "true"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err := GetPreference(ctx, db, PrefSoundEnabled)
	if err != nil || v != "true" {
		t.Fatalf("GetPreference = %q, %v", v, err)
	}
}
