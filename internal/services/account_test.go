package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"mirror/internal/models"
)

const testJWTSecret = "test-secret"

type fakeVerifier struct {
	calls []string
	err   error
}

func (v *fakeVerifier) SendToUser(_ context.Context, userID string) (VerificationResult, error) {
	v.calls = append(v.calls, userID)
	return VerificationResult{}, v.err
}

func newAccountService(users *fakeUsers, verifier Verifier) *AccountService {
	return NewAccountService(users, verifier, testLogger(), testJWTSecret, time.Hour)
}

func TestSignup_HappyPath(t *testing.T) {
	users := newFakeUsers()
	verifier := &fakeVerifier{}
	svc := newAccountService(users, verifier)

	email := gofakeit.Email()
	u, token, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     gofakeit.Name(),
		Email:    strings.ToUpper(email),
		Password: goodPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(email), u.Email)
	assert.Equal(t, "en", u.Language)
	assert.False(t, u.EmailVerified)
	assert.Equal(t, []string{u.ID}, verifier.calls)

	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) { return []byte(testJWTSecret), nil })
	require.NoError(t, err)
	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, u.ID, claims["sub"])
	assert.Equal(t, u.Email, claims["email"])
}

func TestSignup_DuplicateEmail(t *testing.T) {
	users := newFakeUsers()
	existing := users.add(t, goodPassword, false)
	svc := newAccountService(users, nil)

	_, _, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     gofakeit.Name(),
		Email:    existing.Email,
		Password: goodPassword,
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignup_VerificationFailureDoesNotFailSignup(t *testing.T) {
	svc := newAccountService(newFakeUsers(), &fakeVerifier{err: errBoom})

	u, token, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: goodPassword,
		Language: "he",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "he", u.Language)
}

func TestSignup_WeakPassword(t *testing.T) {
	users := newFakeUsers()
	svc := newAccountService(users, nil)

	_, _, err := svc.Signup(context.Background(), models.SignupRequest{
		Name:     gofakeit.Name(),
		Email:    gofakeit.Email(),
		Password: "alllowercase1",
	})
	var policy *PasswordPolicyError
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, "Password must contain at least one uppercase letter", policy.Message)
	assert.Zero(t, users.calls)
}

func TestSignupAndChangePassword_OverlongPassword(t *testing.T) {
	users := newFakeUsers()
	u := users.add(t, goodPassword, true)
	svc := newAccountService(users, nil)
	ctx := context.Background()
	long := "Aa1" + strings.Repeat("x", 80)
	calls := users.calls

	_, _, err := svc.Signup(ctx, models.SignupRequest{Name: gofakeit.Name(), Email: gofakeit.Email(), Password: long})
	var policy *PasswordPolicyError
	require.ErrorAs(t, err, &policy)

	err = svc.ChangePassword(ctx, u.ID, goodPassword, long)
	require.ErrorAs(t, err, &policy)
	assert.Equal(t, calls, users.calls)
}

func TestSignin(t *testing.T) {
	users := newFakeUsers()
	u := users.add(t, goodPassword, true)
	svc := newAccountService(users, nil)
	ctx := context.Background()

	got, token, err := svc.Signin(ctx, strings.ToUpper(u.Email), goodPassword)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotEmpty(t, token)

	_, _, err = svc.Signin(ctx, u.Email, "Wrong123x")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Signin(ctx, gofakeit.Email(), goodPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestChangePassword(t *testing.T) {
	users := newFakeUsers()
	u := users.add(t, goodPassword, true)
	svc := newAccountService(users, nil)
	ctx := context.Background()

	err := svc.ChangePassword(ctx, u.ID, "Wrong123x", newPassword)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, goodPassword, newPassword))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.get(u.ID).PasswordHash), []byte(newPassword)))

	err = svc.ChangePassword(ctx, gofakeit.UUID(), newPassword, goodPassword)
	require.ErrorIs(t, err, ErrUserNotFound)
}
