package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhouzirui/z-chat/backend/internal/session"
)

func TestCheckAccess(t *testing.T) {
	user := &session.Identity{UserID: "123"}

	cases := []struct {
		name     string
		view     View
		identity *session.Identity
		want     Decision
	}{
		{"protected without identity", ViewProtected, nil, RedirectToLogin},
		{"protected with identity", ViewProtected, user, Allow},
		{"login with identity", ViewLogin, user, RedirectToApp},
		{"login without identity", ViewLogin, nil, Allow},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CheckAccess(tc.view, tc.identity))
		})
	}
}

type stubReader struct {
	identity session.Identity
	err      error
}

func (s stubReader) Get(*http.Request) (session.Identity, error) {
	return s.identity, s.err
}

func TestResolveFailsClosed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)

	assert.Nil(t, Resolve(stubReader{err: session.ErrNoSession}, req))
	assert.Nil(t, Resolve(stubReader{err: session.ErrInvalidSession}, req))
	assert.Nil(t, Resolve(stubReader{err: errors.New("boom")}, req))

	identity := Resolve(stubReader{identity: session.Identity{UserID: "123"}}, req)
	require.NotNil(t, identity)
	assert.Equal(t, "123", identity.UserID)
}

func TestResolveWithTamperedCookieRedirectsToLogin(t *testing.T) {
	store := session.NewStore(session.Config{Secret: "s3cret"})
	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "forged"})

	assert.Equal(t, RedirectToLogin, CheckAccess(ViewProtected, Resolve(store, req)))
}

func newTestVerifier(t *testing.T) *StaticVerifier {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	verifier, err := NewStaticVerifierFromHash("sam@gmail.com", string(hash), "123")
	require.NoError(t, err)
	return verifier
}

func TestLogin(t *testing.T) {
	svc := NewService(newTestVerifier(t))
	ctx := context.Background()

	userID, err := svc.Login(ctx, Credentials{Email: "sam@gmail.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "123", userID)

	rejected := []Credentials{
		{Email: "sam@gmail.com", Password: "wrong"},
		{Email: "someone@gmail.com", Password: "password"},
		{Email: "", Password: "password"},
		{Email: "sam@gmail.com", Password: ""},
	}
	for _, creds := range rejected {
		_, err := svc.Login(ctx, creds)
		assert.ErrorIs(t, err, ErrInvalidCredentials, "creds %+v", creds)
	}
}

func TestStaticVerifierNormalizesEmail(t *testing.T) {
	verifier := newTestVerifier(t)
	userID, err := verifier.Verify(context.Background(), "  SAM@gmail.com ", "password")
	require.NoError(t, err)
	assert.Equal(t, "123", userID)
}

func TestNewStaticVerifierHashesPassword(t *testing.T) {
	verifier, err := NewStaticVerifier("sam@gmail.com", "password", "123")
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), "sam@gmail.com", "password")
	assert.NoError(t, err)
}

func TestNewStaticVerifierFromHashValidates(t *testing.T) {
	_, err := NewStaticVerifierFromHash("sam@gmail.com", "not-a-hash", "123")
	assert.Error(t, err)

	_, err = NewStaticVerifierFromHash("", "$2a$04$abcdefghijklmnopqrstuu", "123")
	assert.Error(t, err)

	_, err = HashPassword("")
	assert.Error(t, err)
}
