package storage

import (
	"context"
	"errors"
	"testing"
)

func TestValidUserID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"200001", true},
		{"000000", true},
		{"12", false},
		{"2000010", false},
		{"20000a", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidUserID(tc.id); got != tc.want {
			t.Fatalf("ValidUserID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}

func TestGetUserByID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	user, err := store.GetUserByID(ctx, "200001")
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Name != "Alex Chen" {
		t.Fatalf("user.Name = %q, want %q", user.Name, "Alex Chen")
	}

	if _, err := store.GetUserByID(ctx, "999999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetUserByID(999999) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetUserByID(ctx, "12"); !errors.Is(err, ErrInvalidUserID) {
		t.Fatalf("GetUserByID(12) error = %v, want ErrInvalidUserID", err)
	}
}

func TestMergeProfile_ShallowMerge(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	name := "Mira"
	about := "hello"
	user, err := store.MergeProfile(ctx, ProfilePatch{Name: &name, About: &about}, 1000)
	if err != nil {
		t.Fatalf("MergeProfile() error = %v", err)
	}
	if user.Name != "Mira" || user.About != "hello" {
		t.Fatalf("merged user = %q/%q, want Mira/hello", user.Name, user.About)
	}

	// A later patch that omits name must leave it alone.
	phone := "555-0101"
	user, err = store.MergeProfile(ctx, ProfilePatch{Phone: &phone}, 2000)
	if err != nil {
		t.Fatalf("MergeProfile(phone) error = %v", err)
	}
	if user.Name != "Mira" {
		t.Fatalf("user.Name = %q, want %q after partial patch", user.Name, "Mira")
	}
	if user.Phone != "555-0101" {
		t.Fatalf("user.Phone = %q, want %q", user.Phone, "555-0101")
	}
}

func TestUserExists(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ok, err := store.UserExists(ctx, "300002")
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if !ok {
		t.Fatalf("UserExists(300002) = false, want true")
	}

	ok, err = store.UserExists(ctx, "888888")
	if err != nil {
		t.Fatalf("UserExists(888888) error = %v", err)
	}
	if ok {
		t.Fatalf("UserExists(888888) = true, want false")
	}
}
