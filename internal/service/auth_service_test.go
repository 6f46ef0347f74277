package service

import (
	"errors"
	"testing"
	"time"

	"quizhub_backend/internal/config"
	"quizhub_backend/internal/repository"
	"quizhub_backend/internal/util"
)

func newAuthEnv(t *testing.T) (*AuthService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.ExpireTime = time.Hour
	cfg.JWT.RefreshExpireTime = 24 * time.Hour

	svc := NewAuthService(
		repository.NewUserRepository(env.db),
		repository.NewRefreshTokenRepository(env.db),
		cfg,
	)
	return svc, env
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newAuthEnv(t)

	user, err := svc.Register(&RegisterRequest{Name: "张三", Email: "zs@test.io", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != "student" {
		t.Fatalf("role = %s, want student", user.Role)
	}

	// 重复注册
	if _, err := svc.Register(&RegisterRequest{Name: "李四", Email: "zs@test.io", Password: "secret2"}); !errors.Is(err, util.ErrEmailRegistered) {
		t.Fatalf("err = %v, want ErrEmailRegistered", err)
	}

	pair, loggedIn, err := svc.Login(&LoginRequest{Email: "zs@test.io", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Fatalf("logged in user %d, want %d", loggedIn.ID, user.ID)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token pair")
	}

	claims, err := util.ParseJWT(pair.AccessToken, "test-secret")
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatalf("claims user = %d, want %d", claims.UserID, user.ID)
	}

	if _, _, err := svc.Login(&LoginRequest{Email: "zs@test.io", Password: "wrong"}); !errors.Is(err, util.ErrInvalidCredential) {
		t.Fatalf("err = %v, want ErrInvalidCredential", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc, _ := newAuthEnv(t)

	if _, err := svc.Register(&RegisterRequest{Name: "王五", Email: "ww@test.io", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _, err := svc.Login(&LoginRequest{Email: "ww@test.io", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	// 旧令牌已吊销，重放失败
	if _, err := svc.Refresh(pair.RefreshToken); !errors.Is(err, util.ErrInvalidRefresh) {
		t.Fatalf("replay err = %v, want ErrInvalidRefresh", err)
	}

	// 新令牌可用
	if _, err := svc.Refresh(rotated.RefreshToken); err != nil {
		t.Fatalf("rotated token refresh: %v", err)
	}
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	svc, _ := newAuthEnv(t)

	if _, err := svc.Register(&RegisterRequest{Name: "赵六", Email: "zl@test.io", Password: "secret1"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	pair, _, err := svc.Login(&LoginRequest{Email: "zl@test.io", Password: "secret1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Refresh(pair.RefreshToken); !errors.Is(err, util.ErrInvalidRefresh) {
		t.Fatalf("err = %v, want ErrInvalidRefresh", err)
	}
}
