package delivery

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"signup-service/internal/service"
)

const (
	sessionTokenCookie = "zitadel:session_token"
	expiresAtCookie    = "zitadel:expires_at"
)

// setSessionCookies hands the activated session token to the client.
func setSessionCookies(c *fiber.Ctx, sess service.IssuedSession, secure bool) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge <= 0 {
		return
	}

	// Session token, HTTP only
	c.Cookie(&fiber.Cookie{
		Name:     sessionTokenCookie,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HTTPOnly: true,
		SameSite: "Lax",
	})

	// Readable by the app to schedule a refresh
	c.Cookie(&fiber.Cookie{
		Name:     expiresAtCookie,
		Value:    fmt.Sprintf("%d", sess.ExpiresAt.Unix()),
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HTTPOnly: false,
		SameSite: "Lax",
	})
}
