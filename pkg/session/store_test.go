package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/ssoadmin/pkg/api"
)

func testUser() *api.UserData {
	return &api.UserData{
		ID:    "u1",
		Role:  "user",
		Name:  "Ayu Lestari",
		Email: "a@b.com",
		AllowedApps: []api.AllowedApp{
			{ID: "app-1", Code: "hr", Name: "HR Portal"},
		},
	}
}

func TestStore_SetTokens(t *testing.T) {
	store := NewStore(context.Background())

	store.SetTokens("AT1", "RT1", WithSSOToken("SSO1"), WithDeviceID("dev-1"))

	st := store.GetState()
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "AT1", st.AccessToken)
	assert.Equal(t, "RT1", st.RefreshToken)
	assert.Equal(t, "SSO1", st.SSOToken)
	assert.Equal(t, "dev-1", st.DeviceID)
}

func TestStore_SetTokensPreservesOmittedFields(t *testing.T) {
	store := NewStore(context.Background())
	store.SetTokens("AT1", "RT1", WithSSOToken("SSO1"), WithDeviceID("dev-1"))

	for i, pair := range [][2]string{{"AT2", "RT2"}, {"AT3", "RT3"}, {"AT4", "RT4"}} {
		store.SetTokens(pair[0], pair[1])
		st := store.GetState()
		assert.Equal(t, "SSO1", st.SSOToken, "iteration %d", i)
		assert.Equal(t, "dev-1", st.DeviceID, "iteration %d", i)
		assert.Equal(t, pair[0], st.AccessToken)
	}

	store.SetTokens("AT5", "RT5", WithSSOToken("SSO2"))
	st := store.GetState()
	assert.Equal(t, "SSO2", st.SSOToken)
	assert.Equal(t, "dev-1", st.DeviceID)
}

func TestStore_IsAuthenticatedTracksTokens(t *testing.T) {
	store := NewStore(context.Background())

	store.SetTokens("AT1", "")
	assert.False(t, store.GetState().IsAuthenticated)

	store.SetTokens("AT1", "RT1")
	assert.True(t, store.GetState().IsAuthenticated)
}

func TestStore_ClearAuth(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Store)
	}{
		{"already empty", func(*Store) {}},
		{"tokens only", func(s *Store) { s.SetTokens("AT", "RT") }},
		{"full session", func(s *Store) {
			s.SetTokens("AT", "RT", WithSSOToken("SSO"), WithDeviceID("dev"))
			s.SetUser(testUser())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(context.Background())
			tt.setup(store)

			store.ClearAuth()
			store.ClearAuth()

			st := store.GetState()
			assert.False(t, st.IsAuthenticated)
			assert.Empty(t, st.AccessToken)
			assert.Empty(t, st.RefreshToken)
			assert.Empty(t, st.SSOToken)
			assert.Empty(t, st.DeviceID)
			assert.Nil(t, st.User)
		})
	}
}

func TestStore_SetUserIsVisibleImmediately(t *testing.T) {
	store := NewStore(context.Background())
	store.SetUser(testUser())

	st := store.GetState()
	require.NotNil(t, st.User)
	assert.Equal(t, "u1", st.User.ID)
	assert.False(t, st.IsAdmin())
	assert.Equal(t, []string{"app-1"}, st.AllowedAppIDs())

	admin := testUser()
	admin.Role = "superadmin"
	store.SetUser(admin)
	assert.True(t, store.GetState().IsAdmin())
}

func TestStore_GetStateReturnsCopy(t *testing.T) {
	store := NewStore(context.Background())
	store.SetUser(testUser())

	st := store.GetState()
	st.User.AllowedApps[0].ID = "tampered"

	assert.Equal(t, "app-1", store.GetState().User.AllowedApps[0].ID)
}

func TestStore_Subscribe(t *testing.T) {
	store := NewStore(context.Background())

	var mu sync.Mutex
	var seen []State
	unsubscribe := store.Subscribe(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s)
	})

	store.SetTokens("AT", "RT")
	store.SetTokens("AT", "RT") // unchanged, not broadcast
	store.ClearAuth()
	store.ClearAuth() // unchanged, not broadcast
	unsubscribe()
	store.SetTokens("AT2", "RT2")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsAuthenticated)
	assert.False(t, seen[1].IsAuthenticated)
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()

	store := NewStore(ctx, WithPersister(persister))
	store.SetTokens("AT1", "RT1", WithSSOToken("SSO1"))
	store.SetUser(testUser())

	raw, err := persister.Load(ctx, StateKey)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "AT1", doc["accessToken"])
	assert.Equal(t, "RT1", doc["refreshToken"])
	assert.Equal(t, "SSO1", doc["ssoToken"])
	assert.Equal(t, true, doc["isAuthenticated"])
	assert.Contains(t, doc, "deviceId")
	assert.Contains(t, doc, "user")

	rehydrated := NewStore(ctx, WithPersister(persister))
	assert.Equal(t, store.GetState(), rehydrated.GetState())
}

func TestStore_RehydrateFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
	}{
		{"corrupt json", []byte("{not json")},
		{"wrong shape", []byte(`["a","b"]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persister := NewMemoryPersister()
			require.NoError(t, persister.Save(ctx, StateKey, tt.data))

			store := NewStore(ctx, WithPersister(persister))
			assert.Equal(t, State{}, store.GetState())
		})
	}

	t.Run("missing", func(t *testing.T) {
		store := NewStore(ctx, WithPersister(NewMemoryPersister()))
		assert.Equal(t, State{}, store.GetState())
	})

	t.Run("authenticated flag is recomputed", func(t *testing.T) {
		persister := NewMemoryPersister()
		require.NoError(t, persister.Save(ctx, StateKey, []byte(`{"accessToken":"AT","isAuthenticated":true}`)))

		store := NewStore(ctx, WithPersister(persister))
		assert.False(t, store.GetState().IsAuthenticated)
	})
}

func TestStore_Reload(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	a := NewStore(ctx, WithPersister(persister))
	b := NewStore(ctx, WithPersister(persister))

	notified := 0
	b.Subscribe(func(State) { notified++ })

	a.SetTokens("AT", "RT")
	b.Reload(ctx)
	b.Reload(ctx)

	assert.Equal(t, "AT", b.AccessToken())
	assert.Equal(t, "RT", b.RefreshToken())
	assert.Equal(t, 1, notified)
}

// racingPersister runs onLoad after reading, before returning the bytes.
type racingPersister struct {
	Persister
	onLoad func()
}

func (p *racingPersister) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := p.Persister.Load(ctx, key)
	if p.onLoad != nil {
		hook := p.onLoad
		p.onLoad = nil
		hook()
	}
	return data, err
}

func TestStore_ReloadKeepsNewerDispatch(t *testing.T) {
	ctx := context.Background()
	persister := &racingPersister{Persister: NewMemoryPersister()}
	store := NewStore(ctx, WithPersister(persister))
	store.SetTokens("AT1", "RT1")

	persister.onLoad = func() { store.SetTokens("AT2", "RT2") }
	store.Reload(ctx)

	assert.Equal(t, "AT2", store.AccessToken())
	assert.Equal(t, "RT2", store.RefreshToken())

	reopened := NewStore(ctx, WithPersister(persister))
	assert.Equal(t, "AT2", reopened.AccessToken())
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	ctx := context.Background()
	persister := NewMemoryPersister()
	store := NewStore(ctx, WithPersister(persister))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				store.SetTokens("AT", "RT")
			} else {
				store.SetUser(testUser())
			}
		}(i)
	}
	wg.Wait()

	// The persisted copy matches the final in-memory state.
	rehydrated := NewStore(ctx, WithPersister(persister))
	assert.Equal(t, store.GetState(), rehydrated.GetState())
}

func TestStore_String(t *testing.T) {
	store := NewStore(context.Background())
	store.SetTokens("secret-access", "secret-refresh", WithDeviceID("dev"))
	store.SetUser(testUser())

	s := store.String()
	assert.Contains(t, s, "authenticated=true")
	assert.Contains(t, s, "user=u1")
	assert.NotContains(t, s, "secret")
}
