package services

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verifyFixture struct {
	users  *fakeUsers
	tokens *fakeVerifications
	mailer *fakeMailer
	svc    *EmailVerificationService
}

func newVerifyFixture() *verifyFixture {
	f := &verifyFixture{
		users:  newFakeUsers(),
		tokens: newFakeVerifications(),
		mailer: &fakeMailer{},
	}
	f.svc = NewEmailVerificationService(f.users, f.tokens, f.mailer, testLogger(), "https://app.test", 24*time.Hour)
	return f
}

func TestSendToUser_AlreadyVerifiedSendsNothing(t *testing.T) {
	f := newVerifyFixture()
	u := f.users.add(t, goodPassword, true)

	res, err := f.svc.SendToUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)
	assert.Empty(t, f.mailer.sent)
	assert.Empty(t, f.tokens.forUser(u.ID))
}

func TestSendToUser_UnknownUser(t *testing.T) {
	f := newVerifyFixture()

	_, err := f.svc.SendToUser(context.Background(), gofakeit.UUID())
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestSendToUser_ReissueKeepsOneToken(t *testing.T) {
	ctx := context.Background()
	f := newVerifyFixture()
	u := f.users.add(t, goodPassword, false)

	for range 3 {
		res, err := f.svc.SendToUser(ctx, u.ID)
		require.NoError(t, err)
		assert.False(t, res.AlreadyVerified)
	}

	rows := f.tokens.forUser(u.ID)
	require.Len(t, rows, 1)
	raw := f.mailer.lastToken(t)
	assert.Equal(t, HashToken(raw), rows[0].TokenHash)
	assert.Contains(t, f.mailer.sent[2].Text, "https://app.test/api/auth/verify-email?token="+raw)
}

func TestSendToEmail_UnknownEmail(t *testing.T) {
	f := newVerifyFixture()

	res, err := f.svc.SendToEmail(context.Background(), gofakeit.Email())
	require.NoError(t, err)
	assert.False(t, res.AlreadyVerified)
	assert.Empty(t, f.tokens.rows)
	assert.Empty(t, f.mailer.sent)
}

func TestSendToEmail_SendFailureRevokesToken(t *testing.T) {
	f := newVerifyFixture()
	u := f.users.add(t, goodPassword, false)
	f.mailer.err = errBoom

	_, err := f.svc.SendToEmail(context.Background(), u.Email)
	require.ErrorIs(t, err, ErrEmailDelivery)
	assert.Empty(t, f.tokens.forUser(u.ID))
}

func TestVerify_TwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newVerifyFixture()
	u := f.users.add(t, goodPassword, false)

	_, err := f.svc.SendToUser(ctx, u.ID)
	require.NoError(t, err)
	raw := f.mailer.lastToken(t)

	res, err := f.svc.Verify(ctx, raw)
	require.NoError(t, err)
	assert.False(t, res.AlreadyVerified)

	first := f.users.get(u.ID)
	require.True(t, first.EmailVerified)
	require.NotNil(t, first.EmailVerifiedAt)
	verifiedAt := *first.EmailVerifiedAt

	f.svc.now = func() time.Time { return time.Now().UTC().Add(time.Minute) }

	res, err = f.svc.Verify(ctx, raw)
	require.NoError(t, err)
	assert.True(t, res.AlreadyVerified)
	assert.Equal(t, verifiedAt, *f.users.get(u.ID).EmailVerifiedAt)
	assert.Empty(t, f.tokens.forUser(u.ID))

	// The spent row is gone now, so a third attempt is simply invalid.
	_, err = f.svc.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Expired(t *testing.T) {
	ctx := context.Background()
	f := newVerifyFixture()
	u := f.users.add(t, goodPassword, false)

	_, err := f.svc.SendToUser(ctx, u.ID)
	require.NoError(t, err)
	raw := f.mailer.lastToken(t)

	f.svc.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }

	_, err = f.svc.Verify(ctx, raw)
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.False(t, f.users.get(u.ID).EmailVerified)
	assert.Empty(t, f.tokens.forUser(u.ID))
}

func TestVerify_UnknownToken(t *testing.T) {
	f := newVerifyFixture()

	_, err := f.svc.Verify(context.Background(), "deadbeef")
	require.ErrorIs(t, err, ErrTokenInvalid)
}
