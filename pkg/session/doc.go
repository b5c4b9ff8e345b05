// Package session holds the authenticated actor of the SSO admin client.
//
// A Store is an explicit, injectable object with GetState, Subscribe and
// Dispatch. Mutations go through actions (SetTokens, SetSSOToken, SetUser,
// ClearAuth); each one is persisted as JSON under the key "arga-sso-auth"
// and broadcast to subscribers. NewStore rehydrates from the persister and
// falls back to the empty state when the data is missing or corrupt.
//
// Persister backends:
//
//	NewMemoryPersister()                      // tests, throwaway sessions
//	NewFilePersister("~/.config/ssoadmin")    // one file per key, fsnotify Watch
//	NewRedisPersister(ctx, RedisConfig{...})  // shared between hosts
//	OpenSQLPersister(ctx, "sqlite3", dsn, "") // or "postgres"
//	NewEncryptedPersister(inner, passphrase)  // seals any of the above
//
// DeviceIDs hands out the stable device UUID stored under
// "arga-sso-device-id", which outlives logouts.
package session
