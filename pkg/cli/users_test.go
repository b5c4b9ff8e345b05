package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
)

func TestUsersMe(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.NoError(t, ta.run("users", "me"))
	output := ta.out.String()
	assert.Contains(t, output, "Nama:          Ani Lestari [AL]")
	assert.Contains(t, output, "Tanggal lahir: -")
	assert.Contains(t, output, "Dibuat:        11 Desember 2025")

	ta.out.Reset()
	require.NoError(t, ta.run("users", "me", "--bio", "Admin SSO", "--json"))
	var me api.User
	require.NoError(t, json.Unmarshal(ta.out.Bytes(), &me))
	assert.Equal(t, "Admin SSO", me.Bio)
	assert.Equal(t, "Ani Lestari", me.Name)
}

func TestUsersMe_Avatar(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	avatar := filepath.Join(t.TempDir(), "me.png")
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}
	require.NoError(t, os.WriteFile(avatar, png, 0o644))

	require.NoError(t, ta.run("users", "me", "--avatar", avatar))
	assert.Contains(t, ta.out.String(), "Avatar:        /uploads/avatars/me.png")
}

func TestUsersCRUD(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	require.Error(t, ta.run("users", "create", "--email", "x@example.com"))
	require.NoError(t, ta.run("users", "create", "--name", "Budi Santoso", "--email", "budi@example.com", "--role", "user"))
	assert.Contains(t, ta.out.String(), "Pengguna Budi Santoso dibuat")

	list, err := ta.Users.List(ta.Context(), api.UserFilter{Role: "user"})
	require.NoError(t, err)
	require.Len(t, list.Data, 1)
	id := list.Data[0].ID

	err = ta.run("users", "update", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to update")

	require.NoError(t, ta.run("users", "update", "--status", "suspended", id))
	stored, ok := ta.server.User(id)
	require.True(t, ok)
	assert.Equal(t, api.StatusSuspended, stored.Status)
	assert.Equal(t, "Budi Santoso", stored.Name)

	ta.out.Reset()
	require.NoError(t, ta.run("users", "get", id))
	assert.Contains(t, ta.out.String(), "Nama:          Budi Santoso [BS]")

	require.NoError(t, ta.run("users", "delete", id))
	_, ok = ta.server.User(id)
	assert.False(t, ok)
}

func TestUsersList(t *testing.T) {
	ta := newTestApp(t, "")
	ta.server.AddUser(api.User{UserListItem: api.UserListItem{Name: "Citra", Email: "citra@example.com"}}, "")
	ta.login(t)

	require.NoError(t, ta.run("users", "list", "--role", "admin"))
	output := ta.out.String()
	assert.Contains(t, output, "Ani Lestari")
	assert.NotContains(t, output, "Citra")
	assert.Contains(t, output, "Halaman 1 dari 1 (total 1)")
}

func TestUsersCreate_FieldErrorsArePrinted(t *testing.T) {
	ta := newTestApp(t, "")
	ta.login(t)

	err := ta.run("users", "create", "--name", "Ani Lain", "--email", "ani@example.com")
	require.Error(t, err)

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Equal(t, "Error: Validasi gagal\n  - email: Email sudah terdaftar\n", buf.String())
}

func seedStaff(ta *testApp, n int) {
	for i := 1; i <= n; i++ {
		ta.server.AddUser(api.User{UserListItem: api.UserListItem{
			Name:  fmt.Sprintf("Pegawai %02d", i),
			Email: fmt.Sprintf("pegawai%02d@example.com", i),
		}}, "")
	}
}

func TestUsersSearch(t *testing.T) {
	ta := newTestApp(t, "Pegawai\n:more\n:more\n:pick 2\n:clear\n:quit\nignored\n")
	seedStaff(ta, 60)
	ta.login(t)

	require.NoError(t, ta.run("users", "search", "--debounce", "10ms"))
	output := ta.out.String()

	// Initial list: the admin and the staff, first page.
	assert.Contains(t, output, "(50 dari 61, halaman 1/2, :more untuk memuat lagi)")
	// Term search, then the second page appended.
	assert.Contains(t, output, "(50 dari 60, halaman 1/2, :more untuk memuat lagi)")
	assert.Contains(t, output, "(60 dari 60, halaman 2/2)")
	assert.Contains(t, output, "Tidak ada data lagi")
	assert.Contains(t, output, "Dipilih: Pegawai 02 (")
	assert.Contains(t, output, " 1. Ani Lestari - ani@example.com")
	assert.NotContains(t, output, "ignored")
}

func TestUsersSearch_Select(t *testing.T) {
	ta := newTestApp(t, "")
	seedStaff(ta, 60)
	ta.login(t)

	// Zulkifli is past the first page.
	last := ta.server.AddUser(api.User{UserListItem: api.UserListItem{Name: "Zulkifli"}}, "")

	require.NoError(t, ta.run("users", "search", "--select", last.ID))
	assert.Contains(t, ta.out.String(), "  1. Zulkifli\n")
}
