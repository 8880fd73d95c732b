package navigator

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/pagemapper/internal/config"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestDefaultRedirectDetector(t *testing.T) {
	login := &config.LoginConfig{LoginURL: "https://app.example.test/account/enter", Username: "a", Password: "b"}

	tests := []struct {
		name      string
		requested string
		current   string
		login     *config.LoginConfig
		want      bool
	}{
		{"SamePage", "https://app.example.test/home", "https://app.example.test/home/", nil, false},
		{"AuthSegment", "https://app.example.test/home", "https://app.example.test/auth/signin", nil, true},
		{"LoginWithExtension", "https://app.example.test/home", "https://app.example.test/login.php?next=/home", nil, true},
		{"SignInHyphen", "https://app.example.test/home", "https://app.example.test/users/sign-in", nil, true},
		{"AuthorIsNotAuth", "https://app.example.test/home", "https://app.example.test/authors/42", nil, false},
		{"ConfiguredLoginPath", "https://app.example.test/home", "https://app.example.test/account/enter", login, true},
		{"ConfiguredLoginOtherHost", "https://app.example.test/home", "https://other.example.test/account/enter/home", login, false},
		{"HostChangeDropsPath", "https://app.example.test/home", "https://other.example.test/account/enter", login, true},
		{"TargetUnderAuthPath", "https://app.example.test/auth/settings", "https://app.example.test/auth/settings", nil, false},
		{"IdentityProviderHost", "https://app.example.test/home", "https://id.example.test/u/start", nil, true},
		{"CanonicalHostKeepsPath", "https://example.test/home", "https://www.example.test/home", nil, false},
		{"LocalRedirect", "https://app.example.test/home", "https://app.example.test/welcome", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DefaultRedirectDetector(mustURL(t, tt.requested), mustURL(t, tt.current), tt.login)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, DefaultRedirectDetector(mustURL(t, "https://a.test/"), nil, nil))
	assert.True(t, DefaultRedirectDetector(nil, mustURL(t, "https://a.test/oauth2/authorize"), nil))
}

func TestFailureError(t *testing.T) {
	f := &Failure{Reason: ReasonLoginFieldNotFound, State: StateAuthenticating, URL: "https://a.test/login", Field: "password", Message: "no fallback selector matched"}
	assert.Equal(t, "LoginFieldNotFound in state Authenticating at https://a.test/login (field password): no fallback selector matched", f.Error())
}
