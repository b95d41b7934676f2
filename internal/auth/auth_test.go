package auth_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jxucoder/codehelper/internal/auth"
	"github.com/jxucoder/codehelper/pkg/store/sqlstore"
)

func newService(t *testing.T) (*auth.Service, *sqlstore.Store) {
	t.Helper()
	st, err := sqlstore.Open(sqlstore.DriverSQLite, filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return auth.NewService(st, bcrypt.MinCost), st
}

func authReason(t *testing.T, err error) auth.Reason {
	t.Helper()
	var authErr *auth.Error
	require.True(t, errors.As(err, &authErr), "expected *auth.Error, got %v", err)
	return authErr.Reason
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "Ada", "  Ada@Example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotEqual(t, "s3cret", u.PasswordHash)
	assert.Len(t, u.ID, 36)

	got, err := svc.Login(ctx, "ADA@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "Ada", got.Name)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Ada", "ada@example.com", "one")
	require.NoError(t, err)

	before, err := st.Count(ctx)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "Imposter", "ada@example.com", "two")
	assert.Equal(t, auth.ReasonEmailExists, authReason(t, err))
	assert.Equal(t, "Email already exists!", err.Error())

	after, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLogin_Failures(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Ada", "ada@example.com", "right")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "bob@example.com", "right")
	assert.Equal(t, auth.ReasonBadEmail, authReason(t, err))
	assert.Equal(t, "Invalid email!", err.Error())

	_, err = svc.Login(ctx, "ada@example.com", "wrong")
	assert.Equal(t, auth.ReasonBadPassword, authReason(t, err))
	assert.Equal(t, "Incorrect password!", err.Error())
}

func TestSignup_PasswordTooLong(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Ada", "ada@example.com", strings.Repeat("a", auth.MaxPasswordBytes+8))
	assert.Equal(t, auth.ReasonInvalidInput, authReason(t, err))
	assert.Equal(t, "Password is too long!", err.Error())

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.Signup(ctx, "Ada", "ada@example.com", strings.Repeat("a", auth.MaxPasswordBytes))
	assert.NoError(t, err)
}

func TestMissingCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Ada", "  ", "pw")
	assert.Equal(t, auth.ReasonInvalidInput, authReason(t, err))

	_, err = svc.Login(ctx, "ada@example.com", "")
	assert.Equal(t, auth.ReasonInvalidInput, authReason(t, err))
}
