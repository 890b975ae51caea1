package handlers

import (
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/ki1r0y/gallery/cmd/gallery/service"
	"github.com/ki1r0y/gallery/common/apperr"
	"github.com/ki1r0y/gallery/common/models"
)

// defaultMemberPicture is served for members who never uploaded one.
const defaultMemberPicture = "default-member.gif"

// fail maps a tagged core error to its HTTP status; anything else bubbles
// to echo's 500 handling.
func fail(c echo.Context, err error) error {
	var tagged *apperr.Error
	if errors.As(err, &tagged) {
		return c.JSON(tagged.HTTPStatus(), map[string]string{
			"error": tagged.Message,
		})
	}
	return err
}

// formFields collects the submitted form fields, multipart or urlencoded.
// Only keys actually present in the request appear in the map, so services
// can distinguish "clear this field" from "leave it unchanged".
func formFields(c echo.Context) (map[string]string, error) {
	req := c.Request()
	// Sized like echo's default body limit. ErrNotMultipart means an
	// urlencoded body, already parsed into req.Form; anything else is a
	// genuinely broken body and must not degrade to an empty field map.
	if err := req.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, apperr.BadInput("malformed form body: %v", err)
	}

	fields := make(map[string]string)
	for key, values := range req.Form {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}

// pictureUpload extracts the optional "picture" multipart file. No file is
// not an error: the caller gets nil and treats the edit as picture-less.
func pictureUpload(c echo.Context) (*service.Upload, error) {
	header, err := c.FormFile("picture")
	if err != nil {
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, apperr.Storage(err, "open upload %s", header.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperr.Storage(err, "read upload %s", header.Filename)
	}
	return &service.Upload{
		Data:      data,
		Extension: path.Ext(header.Filename),
		MimeType:  header.Header.Get("Content-Type"),
	}, nil
}

func mediaURL(blobID string) string {
	return "/media/" + blobID
}

// memberView is the public shape of a member record. Credentials never
// leave the service layer.
func memberView(idtag string, m *models.Member) map[string]any {
	picture := defaultMemberPicture
	if m.Picture != "" {
		picture = m.Picture
	}
	return map[string]any{
		"idtag":        idtag,
		"username":     m.Username,
		"title":        m.Title,
		"description":  m.Description,
		"website":      m.Website,
		"pictureUrl":   mediaURL(picture),
		"url":          "/member/" + m.Username,
		"compositions": m.Compositions,
	}
}

// compositionView is the public shape of a composition record.
func compositionView(idtag string, comp *models.Composition, artistUsername string, hotness float64) map[string]any {
	view := map[string]any{
		"idtag":       idtag,
		"nametag":     comp.Nametag,
		"title":       comp.Title,
		"description": comp.Description,
		"price":       comp.Price,
		"dimensions":  comp.Dimensions,
		"medium":      comp.Medium,
		"category":    comp.Category,
		"hotness":     hotness,
		"url":         "/art/" + artistUsername + "/" + comp.Nametag,
	}
	if comp.Picture != "" {
		view["pictureUrl"] = mediaURL(comp.Picture)
	}
	return view
}

func ok(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
