package memory

import (
	"errors"
	"testing"
	"time"
)

func TestValidatePriority(t *testing.T) {
	for p := -3; p <= 13; p++ {
		err := ValidatePriority(p)
		want := p >= 0 && p <= 10
		if (err == nil) != want {
			t.Errorf("ValidatePriority(%d) = %v, want valid=%v", p, err, want)
		}
		if err != nil && !errors.Is(err, ErrInvalidPriority) {
			t.Errorf("expected ErrInvalidPriority, got %v", err)
		}
		if err != nil && !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	}
}

func TestBand(t *testing.T) {
	tests := []struct {
		priority int
		want     string
	}{
		{0, "core"},
		{2, "core"},
		{3, "elevated"},
		{4, "elevated"},
		{5, "default"},
		{6, "background"},
		{10, "background"},
	}
	for _, tt := range tests {
		if got := Band(tt.priority); got != tt.want {
			t.Errorf("Band(%d) = %s, want %s", tt.priority, got, tt.want)
		}
	}
}

func TestTransitionGuards(t *testing.T) {
	tests := []struct {
		name   string
		guard  func(TransitionContext) GuardResult
		status string
		want   bool
	}{
		{"deprecate active", CanDeprecate, StatusActive, true},
		{"deprecate deprecated", CanDeprecate, StatusDeprecated, false},
		{"deprecate archived", CanDeprecate, StatusArchived, false},
		{"deprecate deleted", CanDeprecate, StatusDeleted, false},
		{"archive active", CanArchive, StatusActive, true},
		{"archive deprecated", CanArchive, StatusDeprecated, true},
		{"archive archived", CanArchive, StatusArchived, false},
		{"archive deleted", CanArchive, StatusDeleted, false},
		{"restore active", CanRestore, StatusActive, false},
		{"restore deprecated", CanRestore, StatusDeprecated, true},
		{"restore archived", CanRestore, StatusArchived, true},
		{"restore deleted", CanRestore, StatusDeleted, true},
		{"delete active", CanSoftDelete, StatusActive, true},
		{"delete deprecated", CanSoftDelete, StatusDeprecated, true},
		{"delete deleted", CanSoftDelete, StatusDeleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.guard(TransitionContext{URI: "task://t1", Status: tt.status})
			if result.Allowed != tt.want {
				t.Errorf("Allowed = %v, want %v (reason %q)", result.Allowed, tt.want, result.Reason)
			}
			if !tt.want && !errors.Is(result.Error(), ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", result.Error())
			}
			if tt.want && result.Error() != nil {
				t.Errorf("expected nil error, got %v", result.Error())
			}
		})
	}
}

func TestApplyTransition(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	earlier := now.Add(-time.Hour)

	dep := ApplyTransition(StatusDeprecated, nil, now)
	if dep.DeprecatedAt == nil || !dep.DeprecatedAt.Equal(now) {
		t.Errorf("expected deprecated_at=now, got %v", dep.DeprecatedAt)
	}

	restored := ApplyTransition(StatusActive, &earlier, now)
	if restored.DeprecatedAt != nil {
		t.Errorf("expected deprecated_at cleared, got %v", restored.DeprecatedAt)
	}

	archived := ApplyTransition(StatusArchived, &earlier, now)
	if archived.DeprecatedAt == nil || !archived.DeprecatedAt.Equal(earlier) {
		t.Errorf("expected deprecated_at kept, got %v", archived.DeprecatedAt)
	}
}
