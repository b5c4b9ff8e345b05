package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/client"
)

func TestLoginEmail(t *testing.T) {
	ta := newTestApp(t, "")

	require.NoError(t, ta.run("login", "email", "--email", "ani@example.com", "--password", "rahasia"))

	output := ta.out.String()
	assert.Contains(t, output, "Selamat datang, Ani Lestari [AL] (admin)")

	state := ta.Store.GetState()
	assert.True(t, state.IsAuthenticated)
	assert.Equal(t, "u1", state.User.ID)
	assert.NotEmpty(t, state.DeviceID)
}

func TestLoginEmail_PasswordFromStdin(t *testing.T) {
	ta := newTestApp(t, "rahasia\n")

	require.NoError(t, ta.run("login", "email", "--email", "ani@example.com"))
	assert.Contains(t, ta.errOut.String(), "Password: ")
	assert.True(t, ta.Store.GetState().IsAuthenticated)
}

func TestLoginEmail_Errors(t *testing.T) {
	ta := newTestApp(t, "")

	err := ta.run("login", "email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email required")

	err = ta.run("login", "email", "--email", "ani@example.com", "--password", "salah")
	require.Error(t, err)
	apiErr := api.ParseError(err)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "Email atau password salah", apiErr.Message)
	assert.NotErrorIs(t, err, client.ErrSessionExpired)
	assert.False(t, ta.Store.GetState().IsAuthenticated)
}

func TestLoginFirebase(t *testing.T) {
	ta := newTestApp(t, "")

	require.Error(t, ta.run("login", "firebase"))
	require.NoError(t, ta.run("login", "firebase", "--token", "firebase:ani@example.com"))
	assert.Equal(t, "u1", ta.Store.GetState().User.ID)
}

func TestExchange(t *testing.T) {
	ta := newTestApp(t, "")

	err := ta.run("exchange")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no SSO token")

	ta.server.AddSSOToken("SSO-EXT", "u1")
	require.NoError(t, ta.run("exchange", "--token", "SSO-EXT"))
	assert.True(t, ta.Store.GetState().IsAuthenticated)
}

func TestStatus(t *testing.T) {
	ta := newTestApp(t, "")

	require.NoError(t, ta.run("status"))
	assert.Contains(t, ta.out.String(), "Belum login")

	ta.login(t)
	require.NoError(t, ta.run("status"))
	output := ta.out.String()
	assert.Contains(t, output, "Pengguna:   Ani Lestari [AL]")
	assert.Contains(t, output, "Role:       admin")
	assert.NotContains(t, output, "Sesi aktif")
}

func TestStatus_TokenExpiry(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.NoError(t, ta.run("status"))
	assert.NotContains(t, ta.out.String(), "Token s.d.")

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	ta.Store.SetTokens(accessToken, "RT")

	ta.out.Reset()
	require.NoError(t, ta.run("status"))
	assert.Contains(t, ta.out.String(), "Token s.d.: "+exp.Format(time.RFC3339))

	ta.out.Reset()
	require.NoError(t, ta.run("status", "--json"))
	var report statusReport
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &report))
	require.NotNil(t, report.ExpiresAt)
	assert.True(t, exp.Equal(*report.ExpiresAt))
}

func TestStatus_Remote(t *testing.T) {
	ta := newTestApp(t, "")
	ta.server.AddApp(api.Application{ApplicationListItem: api.ApplicationListItem{
		ID: "app1", Code: "portal", Name: "Portal", BaseURL: "https://portal.example.com", IsActive: true,
	}})
	ta.server.Assign("u1", "app1")

	err := ta.run("status", "--remote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	ta.login(t)
	require.NoError(t, ta.run("status", "--remote", "--json"))

	var report statusReport
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &report))
	assert.True(t, report.Authenticated)
	assert.Equal(t, "u1", report.User.ID)
	require.Len(t, report.Apps, 1)
	assert.Equal(t, "portal", report.Apps[0].Code)
	assert.Equal(t, 1, report.Sessions)
}

func TestStatus_RemoteSessionExpired(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)
	ta.server.ExpireAccessTokens()
	ta.server.RevokeRefreshTokens()

	err := ta.run("status", "--remote")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.False(t, ta.Store.GetState().IsAuthenticated)

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Contains(t, buf.String(), "Silakan login kembali")
}

func TestSessions(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.NoError(t, ta.run("sessions"))
	output := ta.out.String()
	assert.Contains(t, output, "CLIENT")
	assert.Contains(t, output, "ssoadmin")
	assert.Contains(t, output, ta.Store.GetState().DeviceID+" *")
	assert.Contains(t, output, "Total: 1 sesi di 1 aplikasi")
}

func TestRefresh(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)
	before := ta.Store.AccessToken()

	require.NoError(t, ta.run("refresh"))
	assert.Contains(t, ta.out.String(), "Token diperbarui")
	assert.NotEqual(t, before, ta.Store.AccessToken())
	assert.Equal(t, 1, ta.server.RefreshCalls())
}

func TestLogout(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.NoError(t, ta.run("logout"))
	assert.Contains(t, ta.out.String(), "Logout berhasil")
	assert.False(t, ta.Store.GetState().IsAuthenticated)
	assert.Nil(t, ta.Store.GetState().User)
}

func TestLogout_Client(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.NoError(t, ta.run("logout", "--client", "portal", "--this-device"))
	assert.Contains(t, ta.out.String(), "Logout dari portal berhasil")
	// Logging out of another client keeps this session.
	assert.True(t, ta.Store.GetState().IsAuthenticated)
}
