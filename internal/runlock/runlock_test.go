package runlock

import (
	"errors"
	"testing"

	"dossier/internal/services"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, 1)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	// Releasing frees the partner for the next run.
	again, err := Acquire(dir, 1)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if err := again.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireHeldLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir, 7)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if _, err := Acquire(dir, 7); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error for held lock, got %v", err)
	}
}

func TestAcquireDistinctPartners(t *testing.T) {
	dir := t.TempDir()

	a, err := Acquire(dir, 1)
	if err != nil {
		t.Fatalf("Acquire partner 1: %v", err)
	}
	defer a.Release()

	b, err := Acquire(dir, 2)
	if err != nil {
		t.Fatalf("partner locks must not collide: %v", err)
	}
	defer b.Release()
}

func TestAcquireInvalidPartner(t *testing.T) {
	if _, err := Acquire(t.TempDir(), 0); !errors.Is(err, services.ErrInvalidScope) {
		t.Fatalf("expected invalid scope error, got %v", err)
	}
}
