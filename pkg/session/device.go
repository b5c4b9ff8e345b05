package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"github.com/platinummonkey/ssoadmin/pkg/api"
)

// DeviceIDs hands out the stable per-profile device id. The id is created
// on first use and never changes afterwards, logouts included.
type DeviceIDs struct {
	persister Persister

	mu     sync.Mutex
	cached string
}

// NewDeviceIDs creates a device id source backed by p.
func NewDeviceIDs(p Persister) *DeviceIDs {
	return &DeviceIDs{persister: p}
}

// Get returns the stored device id, generating and persisting one if needed.
func (d *DeviceIDs) Get(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != "" {
		return d.cached, nil
	}

	data, err := d.persister.Load(ctx, DeviceIDKey)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			d.cached = id
			return id, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("failed to load device id: %w", err)
	}

	id := uuid.New().String()
	if err := d.persister.Save(ctx, DeviceIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("failed to save device id: %w", err)
	}
	d.cached = id
	return id, nil
}

// DefaultUserAgent identifies this client to the SSO backend.
func DefaultUserAgent(version string) string {
	return fmt.Sprintf("ssoadmin/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)
}

// DeviceInfo describes the current device for login requests.
func DeviceInfo(deviceID, userAgent string) api.DeviceInfo {
	ua := useragent.New(userAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown"
	}
	osName := ua.OS()
	if osName == "" {
		osName = runtime.GOOS
	}

	return api.DeviceInfo{
		"device_id":  deviceID,
		"browser":    browser,
		"os":         osName,
		"platform":   runtime.GOOS + "/" + runtime.GOARCH,
		"mobile":     ua.Mobile(),
		"language":   language(),
		"user_agent": userAgent,
		"timezone":   time.Local.String(),
	}
}

func language() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			if i := strings.IndexAny(v, ".@"); i > 0 {
				v = v[:i]
			}
			return strings.ReplaceAll(v, "_", "-")
		}
	}
	return "en-US"
}
