package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/R3E-Network/mintix/internal/app/storage/memory"
	svcerrors "github.com/R3E-Network/mintix/internal/errors"
	"github.com/R3E-Network/mintix/pkg/logger"
)

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(memory.New(), "test-secret", time.Hour, logger.Discard())
	require.NoError(t, err)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestSignupLoginVerify(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, " alice ", "s3cret", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	token, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, err := svc.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, Fingerprint(u.PasswordHash), claims.Password)
	assert.NotContains(t, token, u.PasswordHash)
}

func TestSignupValidation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "bob", "", "bob@example.com")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, err = svc.Signup(ctx, "bob", "pw", "not-an-email")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation))

	_, err = svc.Signup(ctx, "bob", "pw", "bob@example.com")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "bob", "pw2", "bob2@example.com")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeValidation), "duplicate username")
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "carol", "right", "carol@example.com")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol", "wrong")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeAuth))

	_, err = svc.Login(ctx, "nobody", "right")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeAuth))
}

func TestVerifyTokenFailures(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Signup(ctx, "dave", "pw", "dave@example.com")
	require.NoError(t, err)
	token, err := svc.Login(ctx, "dave", "pw")
	require.NoError(t, err)

	_, err = svc.VerifyToken("")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeForbidden))

	_, err = svc.VerifyToken("garbage")
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeAuth))

	other, _ := New(memory.New(), "other-secret", time.Hour, logger.Discard())
	_, err = other.VerifyToken(token)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeAuth), "wrong secret")

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.VerifyToken(token)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeAuth), "expired")
}

func TestVerifyTokenRejectsOtherAlgorithms(t *testing.T) {
	svc := newService(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Username: "eve"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.VerifyToken(unsigned)
	assert.True(t, svcerrors.IsCode(err, svcerrors.CodeAuth))
}
