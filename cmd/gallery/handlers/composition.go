package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ki1r0y/gallery/cmd/gallery/middleware"
	"github.com/ki1r0y/gallery/cmd/gallery/service"
	"github.com/ki1r0y/gallery/common/logger"
)

type CompositionHandler struct {
	members      *service.MemberService
	compositions *service.CompositionService
	log          *logger.Logger
}

func NewCompositionHandler(members *service.MemberService, compositions *service.CompositionService, log *logger.Logger) *CompositionHandler {
	return &CompositionHandler{members: members, compositions: compositions, log: log}
}

// resolve walks :username/:nametag down to the composition idtag.
func (h *CompositionHandler) resolve(c echo.Context) (artistID, artistName, idtag string, err error) {
	ctx := c.Request().Context()
	artistName = c.Param("username")
	artistID, _, err = h.members.GetByUsername(ctx, artistName)
	if err != nil {
		return "", "", "", err
	}
	idtag, _, err = h.compositions.GetByNametag(ctx, artistID, c.Param("nametag"))
	if err != nil {
		return "", "", "", err
	}
	return artistID, artistName, idtag, nil
}

// Get returns one composition and counts the view toward its hotness.
func (h *CompositionHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	_, artistName, idtag, err := h.resolve(c)
	if err != nil {
		return fail(c, err)
	}

	if err := h.compositions.RecordView(ctx, idtag, 1); err != nil {
		// A lost view bump should not fail the read.
		h.log.WithComposition(idtag).Warn("view not recorded", "error", err)
	}

	comp, err := h.compositions.Get(ctx, idtag)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK,
		compositionView(idtag, comp, artistName, h.compositions.Hotness(comp)))
}

// Create adds a composition under the authenticated artist.
func (h *CompositionHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	artistID := middleware.MemberID(c)
	artistName := c.Param("username")

	fields, err := formFields(c)
	if err != nil {
		return fail(c, err)
	}
	picture, err := pictureUpload(c)
	if err != nil {
		return fail(c, err)
	}

	idtag, comp, err := h.compositions.Create(ctx, artistID, fields, picture)
	if err != nil {
		return fail(c, err)
	}

	h.log.WithComposition(idtag).Info("composition created",
		"artist", artistID, "nametag", comp.Nametag)
	return c.JSON(http.StatusCreated,
		compositionView(idtag, comp, artistName, h.compositions.Hotness(comp)))
}

// Update edits a composition the caller owns. A "nametag" form field
// renames it, subject to the rename throttle.
func (h *CompositionHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	artistID, artistName, idtag, err := h.resolve(c)
	if err != nil {
		return fail(c, err)
	}

	fields, err := formFields(c)
	if err != nil {
		return fail(c, err)
	}
	picture, err := pictureUpload(c)
	if err != nil {
		return fail(c, err)
	}

	comp, err := h.compositions.Update(ctx, artistID, idtag, fields, picture)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK,
		compositionView(idtag, comp, artistName, h.compositions.Hotness(comp)))
}

// Delete removes a composition the caller owns.
func (h *CompositionHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	artistID, _, idtag, err := h.resolve(c)
	if err != nil {
		return fail(c, err)
	}
	if err := h.compositions.Delete(ctx, artistID, idtag); err != nil {
		return fail(c, err)
	}
	h.log.WithComposition(idtag).Info("composition deleted", "artist", artistID)
	return ok(c)
}

// Next returns the composition after this one in gallery order.
func (h *CompositionHandler) Next(c echo.Context) error {
	return h.neighbor(c, +1)
}

// Previous returns the composition before this one in gallery order.
func (h *CompositionHandler) Previous(c echo.Context) error {
	return h.neighbor(c, -1)
}

func (h *CompositionHandler) neighbor(c echo.Context, direction int) error {
	ctx := c.Request().Context()
	_, _, idtag, err := h.resolve(c)
	if err != nil {
		return fail(c, err)
	}

	nextID, comp, err := h.compositions.Neighbor(ctx, idtag, direction)
	if err != nil {
		return fail(c, err)
	}
	if comp == nil {
		return c.JSON(http.StatusOK, map[string]any{"composition": nil})
	}
	artistName, err := h.artistName(c, comp.Artist)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK,
		compositionView(nextID, comp, artistName, h.compositions.Hotness(comp)))
}

// Latest returns the newest composition in the gallery, or null when the
// gallery is empty.
func (h *CompositionHandler) Latest(c echo.Context) error {
	ctx := c.Request().Context()
	idtag, comp, err := h.compositions.Latest(ctx)
	if err != nil {
		return fail(c, err)
	}
	if comp == nil {
		return c.JSON(http.StatusOK, map[string]any{"composition": nil})
	}
	artistName, err := h.artistName(c, comp.Artist)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK,
		compositionView(idtag, comp, artistName, h.compositions.Hotness(comp)))
}

func (h *CompositionHandler) artistName(c echo.Context, artistID string) (string, error) {
	member, err := h.members.Get(c.Request().Context(), artistID)
	if err != nil {
		return "", err
	}
	return member.Username, nil
}
