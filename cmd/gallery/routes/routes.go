package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/ki1r0y/gallery/cmd/gallery/container"
	"github.com/ki1r0y/gallery/cmd/gallery/handlers"
	"github.com/ki1r0y/gallery/cmd/gallery/middleware"
)

// Register wires every gallery route. Reads are open; mutations require
// basic auth, must target the caller's own username, and pass through
// the admission pacer.
func Register(e *echo.Echo, ctr *container.Container) {
	log := ctr.Components.Logger
	members := handlers.NewMemberHandler(ctr.Members, log)
	compositions := handlers.NewCompositionHandler(ctr.Members, ctr.Compositions, log)
	media := handlers.NewMediaHandler(ctr.Components.Blobs, log)

	auth := middleware.BasicAuth(ctr.Members)
	own := middleware.AuthorizeUsernameParam(ctr.Members)
	pace := middleware.Pace(ctr.Components.Config.Pace, ctr.Limiter)

	member := e.Group("/member")
	{
		member.POST("", members.Create, pace)
		member.GET("/:username", members.Get)
		member.PUT("/:username", members.Update, auth, own, pace)
	}

	art := e.Group("/art")
	{
		art.GET("/latest", compositions.Latest)
		art.POST("/:username", compositions.Create, auth, own, pace)
		art.GET("/:username/:nametag", compositions.Get)
		art.PUT("/:username/:nametag", compositions.Update, auth, own, pace)
		art.DELETE("/:username/:nametag", compositions.Delete, auth, own, pace)
		art.GET("/:username/:nametag/next", compositions.Next)
		art.GET("/:username/:nametag/previous", compositions.Previous)
	}

	e.GET("/media/:id", media.Get)
}
