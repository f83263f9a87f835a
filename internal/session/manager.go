package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	defaultCookieName = "pdfchat_session"
	ginSessionKey     = "session_id"
	idBytes           = 32
)

// Manager issues session ids and carries them in a signed cookie.
type Manager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
}

// NewManager builds a cookie manager. An empty secret is replaced by a random
// one, which invalidates every cookie on restart.
func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	key := []byte(secret)
	if secret == "" {
		random, err := generateID()
		if err != nil {
			return nil, err
		}
		log.Printf("session secret not configured, using an ephemeral key")
		key = []byte(random)
	}
	return &Manager{secret: key, cookieName: defaultCookieName, ttl: ttl}, nil
}

// CookieName returns the cookie carrying the signed session id.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// GetOrCreate returns the id from a valid session cookie, or mints a new id
// and sets the cookie on the response.
func (m *Manager) GetOrCreate(c *gin.Context) (string, bool, error) {
	if value, err := c.Cookie(m.cookieName); err == nil && value != "" {
		if id, ok := m.verify(value); ok {
			return id, false, nil
		}
	}
	id, err := generateID()
	if err != nil {
		return "", false, err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    m.sign(id),
		MaxAge:   int(m.ttl.Seconds()),
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id, true, nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   gin.Mode() == gin.ReleaseMode,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware resolves the session for every request and exposes the id on
// both the gin context and the request context.
func (m *Manager) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _, err := m.GetOrCreate(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Server error", "details": err.Error()})
			return
		}
		c.Set(ginSessionKey, id)
		c.Request = c.Request.WithContext(WithID(c.Request.Context(), id))
		c.Next()
	}
}

// IDFromGin retrieves the session id stored by Middleware.
func IDFromGin(c *gin.Context) (string, bool) {
	val, ok := c.Get(ginSessionKey)
	if !ok {
		return "", false
	}
	id, ok := val.(string)
	return id, ok && id != ""
}

func (m *Manager) sign(id string) string {
	return id + "." + m.mac(id)
}

func (m *Manager) verify(value string) (string, bool) {
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 {
		return "", false
	}
	id, sig := value[:idx], value[idx+1:]
	if len(id) != idBytes*2 {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac(id))) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))
}

func generateID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
