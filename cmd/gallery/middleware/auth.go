package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ki1r0y/gallery/cmd/gallery/service"
	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/models"
)

// Context keys for the authenticated member.
const (
	memberIDKey = "member_id"
	memberKey   = "member"
)

// BasicAuth authenticates the request's basic-auth credentials against the
// member store. Improper credentials yield 401; a store malfunction is
// surfaced as an error, not a failed login.
func BasicAuth(members *service.MemberService) echo.MiddlewareFunc {
	return echomw.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		idtag, member, err := members.Authenticate(c.Request().Context(), username, password)
		if err != nil {
			if apperr.IsNotFound(err) || apperr.KindOf(err) == apperr.KindForbidden {
				return false, nil
			}
			return false, err
		}
		c.Set(memberIDKey, idtag)
		c.Set(memberKey, member)
		return true, nil
	})
}

// AuthorizeUsernameParam allows the request through only when the
// authenticated member is addressed by the :username path parameter, either
// the current username or any former one, so stale links keep working after
// a rename.
func AuthorizeUsernameParam(members *service.MemberService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idtag := MemberID(c)
			target := c.Param("username")

			ok, err := members.Authorizes(c.Request().Context(), idtag, target)
			if err != nil {
				return err
			}
			if !ok {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "unauthorized for " + target,
				})
			}
			return next(c)
		}
	}
}

// MemberID returns the authenticated member's idtag, or "".
func MemberID(c echo.Context) string {
	if id, ok := c.Get(memberIDKey).(string); ok {
		return id
	}
	return ""
}

// Member returns the authenticated member record, or nil.
func Member(c echo.Context) *models.Member {
	if m, ok := c.Get(memberKey).(*models.Member); ok {
		return m
	}
	return nil
}
