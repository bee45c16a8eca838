// Package tokencache persists the token triple a Session carries, namespaced
// per (clientId, username) the same way a browser-based client would
// namespace localStorage keys, so a caller can restore a session across
// process restarts without re-running SRP.
package tokencache

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/nickarocho/cogsrp/pkg/idptoken"
	"github.com/nickarocho/cogsrp/pkg/session"
)

// Storage is the minimal key-value contract the cache persists through.
// Implementations need not be safe for concurrent use unless documented;
// Cache itself does not add its own locking around Storage calls.
type Storage interface {
	GetItem(key string) (string, bool)
	SetItem(key, value string)
	RemoveItem(key string)
	Clear()
}

// MemoryStorage is the in-process fallback Storage: it never touches disk,
// so a Cache backed by it does not survive process restarts, but every
// Pool works out of the box without a caller-supplied Storage.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) GetItem(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok
}

func (m *MemoryStorage) SetItem(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
}

func (m *MemoryStorage) RemoveItem(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
}

func (m *MemoryStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = make(map[string]string)
}

// Cache namespaces a Storage under one clientId, matching the key layout a
// hosted-UI-less client uses: "CognitoIdentityServiceProvider.<clientId>...".
type Cache struct {
	Storage  Storage
	ClientID string
}

// New returns a Cache over storage for one app client. A nil storage falls
// back to a fresh MemoryStorage.
func New(clientID string, storage Storage) *Cache {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &Cache{Storage: storage, ClientID: clientID}
}

const keyPrefix = "CognitoIdentityServiceProvider"

func (c *Cache) userPrefix(username string) string {
	return fmt.Sprintf("%s.%s.%s", keyPrefix, c.ClientID, username)
}

func (c *Cache) lastAuthUserKey() string {
	return fmt.Sprintf("%s.%s.LastAuthUser", keyPrefix, c.ClientID)
}

// Save persists a session's four fields under the caller's username.
func (c *Cache) Save(username string, s session.Session) error {
	prefix := c.userPrefix(username)
	c.Storage.SetItem(prefix+".idToken", s.IDToken.JWT())
	c.Storage.SetItem(prefix+".accessToken", s.AccessToken.JWT())
	c.Storage.SetItem(prefix+".refreshToken", s.RefreshToken.String())
	c.Storage.SetItem(prefix+".clockDrift", strconv.FormatInt(s.ClockDrift, 10))
	c.SetLastAuthUser(username)
	return nil
}

// Load reconstitutes a session previously saved for username. ok is false
// if no cached blob exists for that user (a cache miss is not an error).
func (c *Cache) Load(username string) (session.Session, bool, error) {
	prefix := c.userPrefix(username)

	idRaw, ok := c.Storage.GetItem(prefix + ".idToken")
	if !ok {
		return session.Session{}, false, nil
	}
	accessRaw, ok := c.Storage.GetItem(prefix + ".accessToken")
	if !ok {
		return session.Session{}, false, nil
	}
	refreshRaw, _ := c.Storage.GetItem(prefix + ".refreshToken")
	driftRaw, ok := c.Storage.GetItem(prefix + ".clockDrift")
	if !ok {
		return session.Session{}, false, nil
	}

	drift, err := strconv.ParseInt(driftRaw, 10, 64)
	if err != nil {
		return session.Session{}, false, fmt.Errorf("tokencache: parsing cached clockDrift: %w", err)
	}

	return session.Session{
		IDToken:      idptoken.NewIDToken(idRaw),
		AccessToken:  idptoken.NewAccessToken(accessRaw),
		RefreshToken: idptoken.NewRefreshToken(refreshRaw),
		ClockDrift:   drift,
	}, true, nil
}

// Clear removes username's four cached token fields (spec.md §4.7:
// "signOut() clears in-memory session and the four cache keys"), leaving
// any cached device registration and other users' entries untouched.
func (c *Cache) Clear(username string) {
	prefix := c.userPrefix(username)
	for _, suffix := range []string{
		".idToken", ".accessToken", ".refreshToken", ".clockDrift",
	} {
		c.Storage.RemoveItem(prefix + suffix)
	}
}

// ClearDevice removes username's three cached device-registration fields,
// leaving session tokens untouched. A device is meant to survive sign-out
// so a later sign-in can use DEVICE_SRP_AUTH instead of a fresh device
// confirmation; only an explicit forget-device should call this.
func (c *Cache) ClearDevice(username string) {
	prefix := c.userPrefix(username)
	for _, suffix := range []string{".deviceKey", ".deviceGroupKey", ".randomPasswordKey"} {
		c.Storage.RemoveItem(prefix + suffix)
	}
}

// SetLastAuthUser records username as the pool's most recently authenticated
// user, so a caller can resume a session without asking who signed in last.
func (c *Cache) SetLastAuthUser(username string) {
	c.Storage.SetItem(c.lastAuthUserKey(), username)
}

// LastAuthUser returns the pool's most recently authenticated username, if
// any has been recorded.
func (c *Cache) LastAuthUser() (string, bool) {
	return c.Storage.GetItem(c.lastAuthUserKey())
}

// SaveDevice caches a confirmed device's identity and SRP random password
// for username, so a later sign-in can use device SRP instead of a fresh
// device confirmation.
func (c *Cache) SaveDevice(username string, deviceKey, deviceGroupKey, randomPassword string) {
	prefix := c.userPrefix(username)
	c.Storage.SetItem(prefix+".deviceKey", deviceKey)
	c.Storage.SetItem(prefix+".deviceGroupKey", deviceGroupKey)
	c.Storage.SetItem(prefix+".randomPasswordKey", randomPassword)
}

// LoadDevice returns a previously cached device registration for username.
func (c *Cache) LoadDevice(username string) (deviceKey, deviceGroupKey, randomPassword string, ok bool) {
	prefix := c.userPrefix(username)
	deviceKey, ok = c.Storage.GetItem(prefix + ".deviceKey")
	if !ok {
		return "", "", "", false
	}
	deviceGroupKey, ok = c.Storage.GetItem(prefix + ".deviceGroupKey")
	if !ok {
		return "", "", "", false
	}
	randomPassword, ok = c.Storage.GetItem(prefix + ".randomPasswordKey")
	if !ok {
		return "", "", "", false
	}
	return deviceKey, deviceGroupKey, randomPassword, true
}

// SaveUserAttribute caches a single user attribute value fetched from the
// identity provider, under its own namespaced key.
func (c *Cache) SaveUserAttribute(username, name, value string) {
	c.Storage.SetItem(fmt.Sprintf("%s.userAttributes.%s", c.userPrefix(username), name), value)
}

// UserAttributes returns nothing on its own; attribute keys are not
// enumerable through the Storage interface, so callers that need the full
// set must track attribute names separately and read each with GetItem.
// UserAttributes exists for symmetry with SaveUserAttribute and returns the
// attributes previously saved under the names given.
func (c *Cache) UserAttributes(username string, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := c.Storage.GetItem(fmt.Sprintf("%s.userAttributes.%s", c.userPrefix(username), name)); ok {
			out[name] = v
		}
	}
	return out
}
