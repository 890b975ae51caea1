package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ki1r0y/gallery/common/config"
	"github.com/ki1r0y/gallery/common/ratelimit"
)

// Pace delays admission of each mutating request and, when a limiter is
// available, enforces the per-member fixed-window cap. The delay bounds how
// fast a single caller can attempt claims and uploads; it coordinates
// nothing between concurrent callers.
func Pace(cfg config.PaceConfig, limiter *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			if err := ratelimit.Sleep(ctx, cfg.Delay); err != nil {
				return err
			}

			if limiter != nil {
				// Anonymous mutations (member signup) are counted together.
				who := MemberID(c)
				if who == "" {
					who = "anonymous"
				}
				result, err := limiter.CheckMemberMutations(ctx, who, cfg.MutationLimit, cfg.WindowSec)
				if err != nil {
					return err
				}
				if !result.Allowed {
					return c.JSON(http.StatusTooManyRequests, map[string]any{
						"error":       "too many requests",
						"retry_after": result.RetryAfterSeconds,
					})
				}
			}

			return next(c)
		}
	}
}
