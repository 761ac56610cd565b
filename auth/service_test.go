package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestService_RegisterAndLogin(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "dana@repairco.example",
		Password: "supersafe",
		FullName: "Dana Staff",
		Role:     RoleStaff,
	}

	ctx := context.Background()
	user, err := svc.Register(ctx, req)
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}

	if user.Email != req.Email {
		t.Fatalf("expected email %q got %q", req.Email, user.Email)
	}
	if user.Role != RoleStaff {
		t.Fatalf("register: expected role %s got %s", RoleStaff, user.Role)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: req.Email, Password: req.Password})
	if err != nil {
		t.Fatalf("login: unexpected error: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("login: expected token, got empty string")
	}
	if resp.User.ID != user.ID {
		t.Fatalf("login: expected user id %q got %q", user.ID, resp.User.ID)
	}

	claims, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("verify token: expected %q got %q", user.ID, claims.UserID)
	}
	if claims.Role != RoleStaff {
		t.Fatalf("verify token: expected role %s got %s", RoleStaff, claims.Role)
	}
	if claims.ClientID != nil {
		t.Fatalf("staff token must not carry a client scope, got %q", *claims.ClientID)
	}
}

func TestService_PortalTokenCarriesClientScope(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")
	ctx := context.Background()

	clientID := "client-42"
	user, err := svc.Register(ctx, RegisterRequest{
		Email:    "maria@portal.example",
		Password: "strongpassword",
		FullName: "Maria Santos",
		Role:     RoleClient,
		ClientID: &clientID,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ClientID == nil || *user.ClientID != clientID {
		t.Fatalf("expected user linked to %q, got %v", clientID, user.ClientID)
	}

	resp, err := svc.Login(ctx, LoginRequest{Email: "maria@portal.example", Password: "strongpassword"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.VerifyToken(resp.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if claims.Role != RoleClient {
		t.Fatalf("expected client role, got %s", claims.Role)
	}
	if claims.ClientID == nil || *claims.ClientID != clientID {
		t.Fatalf("expected client scope %q in token, got %v", clientID, claims.ClientID)
	}

	if !claims.CanViewClient(clientID) {
		t.Error("portal user must see their own client file")
	}
	if claims.CanViewClient("client-99") {
		t.Error("portal user must not see another client file")
	}
}

func TestService_RegisterRejectsClientLinkForStaff(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	clientID := "client-42"
	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "dana@repairco.example",
		Password: "strongpassword",
		FullName: "Dana Staff",
		Role:     RoleStaff,
		ClientID: &clientID,
	})
	if err == nil {
		t.Fatal("expected error linking a staff account to a client file")
	}
}

func TestClaims_CanViewClient_Staff(t *testing.T) {
	staff := Claims{UserID: "user-1", Role: RoleStaff}
	if !staff.CanViewClient("any-client") {
		t.Fatal("staff must see every client file")
	}
	unlinked := Claims{UserID: "user-2", Role: RoleClient}
	if unlinked.CanViewClient("any-client") {
		t.Fatal("an unlinked portal account must see nothing")
	}
}

func TestService_RegisterDefaultsToClientRole(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	user, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "carl@portal.example",
		Password: "strongpassword",
		FullName: "Carl Client",
	})
	if err != nil {
		t.Fatalf("register: unexpected error: %v", err)
	}
	if user.Role != RoleClient {
		t.Fatalf("expected default role %s got %s", RoleClient, user.Role)
	}
}

func TestService_RegisterValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "dana@repairco.example",
		Password: "short",
		FullName: "Dana Staff",
	})
	if !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "",
		Password: "strongpassword",
		FullName: "",
	}); err == nil {
		t.Fatal("expected validation error for missing fields")
	}

	if _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "x@example.com",
		Password: "strongpassword",
		FullName: "X",
		Role:     Role("superuser"),
	}); err == nil {
		t.Fatal("expected validation error for unknown role")
	}
}

func TestService_DuplicateEmail(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	req := RegisterRequest{
		Email:    "dana@repairco.example",
		Password: "strongpassword",
		FullName: "Dana Staff",
	}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}

	if _, err := svc.Register(context.Background(), req); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	repo := newFakeRepository()
	svc := NewService(repo, "test-secret")

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "unknown@example.com",
		Password: "irrelevant",
	})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCanManageClients(t *testing.T) {
	if !CanManageClients(RoleAdmin) || !CanManageClients(RoleStaff) {
		t.Fatal("admin and staff must be able to manage clients")
	}
	if CanManageClients(RoleClient) {
		t.Fatal("client role must not manage client files")
	}
}

type fakeRepository struct {
	usersByEmail map[string]User
	usersByID    map[string]User
	nextID       int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		usersByEmail: make(map[string]User),
		usersByID:    make(map[string]User),
		nextID:       1,
	}
}

func (f *fakeRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if _, exists := f.usersByEmail[strings.ToLower(params.Email)]; exists {
		return User{}, ErrDuplicateEmail
	}

	id := fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	role := params.Role
	if role == "" {
		role = RoleClient
	}

	user := User{
		ID:           id,
		Email:        params.Email,
		FullName:     params.FullName,
		PasswordHash: params.PasswordHash,
		Role:         role,
		ClientID:     params.ClientID,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	f.usersByEmail[strings.ToLower(user.Email)] = user
	f.usersByID[user.ID] = user

	return user, nil
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, ok := f.usersByID[userID]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
