package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/credittasks/backend/internal/models"
	"github.com/credittasks/backend/internal/store/memstore"
)

func newTestService(t *testing.T) (*service, *memstore.Store) {
	t.Helper()
	s := memstore.New()
	svc := NewService(s, Config{
		Secret:     []byte("0123456789abcdef0123456789abcdef"),
		TokenTTL:   time.Hour,
		Issuer:     "credittasks",
		Audience:   "credittasks-api",
		BcryptCost: bcrypt.MinCost,
	})
	return svc, s
}

func TestRegister_GrantsStartingCredits(t *testing.T) {
	svc, s := newTestService(t)

	acc, tok, err := svc.Register(context.Background(), " Alice@Example.com ", "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", acc.Email)
	assert.Equal(t, 500, acc.Credits)
	assert.Nil(t, acc.LastAutoGrantAt)
	assert.NotEmpty(t, tok.Value)

	entries, err := s.ListCreditEntries(context.Background(), acc.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.CreditEntrySignupGrant, entries[0].EntryType)
	assert.Equal(t, 500, entries[0].Amount)
}

func TestRegister_Duplicate(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Register(context.Background(), "a@example.com", "alice", "password1")
	require.NoError(t, err)

	_, _, err = svc.Register(context.Background(), "A@example.com", "bob", "password1")
	assert.ErrorIs(t, err, ErrDuplicateAccount)
	_, _, err = svc.Register(context.Background(), "b@example.com", "Alice", "password1")
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestRegister_ShortPassword(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.Register(context.Background(), "a@example.com", "alice", "short")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	acc, _, err := svc.Register(context.Background(), "a@example.com", "Alice", "password1")
	require.NoError(t, err)

	for _, login := range []string{"a@example.com", "A@EXAMPLE.COM", "alice", "ALICE"} {
		got, tok, err := svc.Login(context.Background(), login, "password1")
		require.NoError(t, err, login)
		assert.Equal(t, acc.ID, got.ID)

		id, err := svc.ValidateToken(context.Background(), tok.Value)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, id)
	}

	_, _, err = svc.Login(context.Background(), "alice", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(context.Background(), "nobody", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_Rejects(t *testing.T) {
	svc, _ := newTestService(t)
	acc, tok, err := svc.Register(context.Background(), "a@example.com", "alice", "password1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), tok.Value+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService(nil, Config{Secret: []byte("another-secret-another-secret-xx"), Issuer: "credittasks", Audience: "credittasks-api"})
	_, err = other.ValidateToken(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.ValidateToken(context.Background(), tok.Value)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: acc.ID.String()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
