package rest

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/petmarket/internal/common"
	"github.com/dmitrijs2005/petmarket/internal/server/config"
)

const refreshCookieName = common.RefreshTokenCookieName

// cookieConfig holds the attributes of the refresh-token cookie.
type cookieConfig struct {
	domain   string
	secure   bool
	sameSite http.SameSite
	maxAge   time.Duration
}

func newCookieConfig(cfg *config.Config) cookieConfig {
	c := cookieConfig{
		domain:   cfg.CookieDomain,
		sameSite: http.SameSiteLaxMode,
		maxAge:   cfg.RefreshTokenValidityDuration,
	}
	if cfg.IsProduction() {
		c.secure = true
		c.sameSite = http.SameSiteStrictMode
	}
	return c
}

func (c cookieConfig) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     refreshCookieName,
		Value:    value,
		Path:     "/",
		Domain:   c.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: c.sameSite,
	}
}

func (c cookieConfig) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, c.cookie(token, int(c.maxAge.Seconds())))
}

func (c cookieConfig) clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}
