package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hitoshi/productman/internal/model"
)

// PostgresUserRepoはUserRepositoryインターフェースを満たすことを検証
func TestPostgresUserRepo_ImplementsInterface(t *testing.T) {
	var _ UserRepository = (*PostgresUserRepo)(nil)
}

// NewPostgresUserRepoが正しく初期化されることを検証
func TestNewPostgresUserRepo_Initializes(t *testing.T) {
	repo := NewPostgresUserRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestPostgresUserRepo_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	created := createTestUser(t, repo, "alice@example.com")

	byID, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if byID == nil {
		t.Fatal("expected user, got nil")
	}
	if byID.Email != "alice@example.com" {
		t.Errorf("Email = %q, want %q", byID.Email, "alice@example.com")
	}
	if byID.Role != model.RoleUser {
		t.Errorf("Role = %q, want %q", byID.Role, model.RoleUser)
	}
	if byID.PasswordHash == "" {
		t.Error("expected password hash to be loaded")
	}

	byEmail, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if byEmail == nil || byEmail.ID != created.ID {
		t.Errorf("FindByEmail returned %+v, want ID %q", byEmail, created.ID)
	}
}

func TestPostgresUserRepo_FindMissing_ReturnsNil(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	u, err := repo.FindByID(ctx, uuid.NewString())
	if err != nil || u != nil {
		t.Errorf("FindByID(unknown) = (%v, %v), want (nil, nil)", u, err)
	}

	u, err = repo.FindByID(ctx, "not-a-uuid")
	if err != nil || u != nil {
		t.Errorf("FindByID(malformed) = (%v, %v), want (nil, nil)", u, err)
	}

	u, err = repo.FindByEmail(ctx, "nobody@example.com")
	if err != nil || u != nil {
		t.Errorf("FindByEmail(unknown) = (%v, %v), want (nil, nil)", u, err)
	}
}

func TestPostgresUserRepo_Create_DuplicateEmail_ReturnsErrEmailTaken(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)

	createTestUser(t, repo, "dup@example.com")

	dup := &model.User{
		ID:           uuid.NewString(),
		Name:         "Other",
		Email:        "dup@example.com",
		PasswordHash: "x",
		Role:         model.RoleUser,
	}
	err := repo.Create(context.Background(), dup)
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPostgresUserRepo_UpdateRole(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	u := createTestUser(t, repo, "admin@example.com")

	if err := repo.UpdateRole(ctx, "admin@example.com", model.RoleAdmin); err != nil {
		t.Fatalf("UpdateRole returned error: %v", err)
	}
	got, err := repo.FindByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("Role = %q, want %q", got.Role, model.RoleAdmin)
	}

	if err := repo.UpdateRole(ctx, "missing@example.com", model.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown email, got %v", err)
	}
}
