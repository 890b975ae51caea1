package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ki1r0y/gallery/cmd/gallery/middleware"
	"github.com/ki1r0y/gallery/cmd/gallery/service"
	"github.com/ki1r0y/gallery/common/logger"
)

type MemberHandler struct {
	members *service.MemberService
	log     *logger.Logger
}

func NewMemberHandler(members *service.MemberService, log *logger.Logger) *MemberHandler {
	return &MemberHandler{members: members, log: log}
}

// Create registers a new member from a multipart form. It is the one
// mutating route that runs unauthenticated, since the caller does not
// have an account yet.
func (h *MemberHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	fields, err := formFields(c)
	if err != nil {
		return fail(c, err)
	}
	picture, err := pictureUpload(c)
	if err != nil {
		return fail(c, err)
	}

	idtag, member, err := h.members.Create(ctx, fields,
		fields["password"], fields["repeatPassword"], picture)
	if err != nil {
		return fail(c, err)
	}

	h.log.WithMember(idtag).Info("member created", "username", member.Username)
	return c.JSON(http.StatusCreated, memberView(idtag, member))
}

// Get returns the public profile for a username.
func (h *MemberHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	idtag, member, err := h.members.GetByUsername(ctx, c.Param("username"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, memberView(idtag, member))
}

// Update edits the authenticated member's own profile. The route is
// guarded by AuthorizeUsernameParam, so the :username here is already
// known to belong to the caller.
func (h *MemberHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	idtag := middleware.MemberID(c)

	fields, err := formFields(c)
	if err != nil {
		return fail(c, err)
	}
	picture, err := pictureUpload(c)
	if err != nil {
		return fail(c, err)
	}

	member, err := h.members.Update(ctx, idtag, fields,
		fields["password"], fields["repeatPassword"], picture)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, memberView(idtag, member))
}
