package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/audit"
	"github.com/platinummonkey/ssoadmin/pkg/config"
	"github.com/platinummonkey/ssoadmin/pkg/ssotest"
)

func TestAudit_Disabled(t *testing.T) {
	ta := newTestApp(t, "")

	err := ta.run("audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSOADMIN_AUDIT_LOG")
}

func TestAudit_RecordsSession(t *testing.T) {
	server := ssotest.New(t)
	server.AddUser(api.User{UserListItem: api.UserListItem{
		ID: "u1", Name: "Ani Lestari", Email: "ani@example.com", Role: api.RoleAdmin,
	}}, "rahasia")

	path := filepath.Join(t.TempDir(), "audit.log")
	ta := newTestAppWith(t, server, "", func(cfg *config.Config) {
		cfg.Observability.AuditLog = path
	})

	require.NoError(t, ta.run("audit"))
	assert.Contains(t, ta.out.String(), "Belum ada aktivitas")

	ta.login(t)
	require.NoError(t, ta.run("refresh"))
	require.NoError(t, ta.run("logout"))
	ta.out.Reset()

	require.NoError(t, ta.run("audit", "--json"))
	var events []audit.Event
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &events))
	require.Len(t, events, 3)
	assert.Equal(t, audit.EventTypeSessionLogin, events[0].EventType)
	assert.Equal(t, audit.EventTypeSessionRefresh, events[1].EventType)
	assert.Equal(t, audit.EventTypeSessionLogout, events[2].EventType)
	assert.Equal(t, "u1", events[2].UserID)

	ta.out.Reset()
	require.NoError(t, ta.run("audit", "--limit", "1"))
	output := ta.out.String()
	assert.Contains(t, output, "session.logout")
	assert.NotContains(t, output, "session.login")
}
