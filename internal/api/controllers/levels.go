package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/datallboy/levelkeep/internal/app"
	"github.com/datallboy/levelkeep/internal/domain"
	"github.com/datallboy/levelkeep/internal/level"
	"github.com/labstack/echo/v5"
)

type LevelController struct {
	App *app.Context
}

// List re-inspects every level and returns them sorted by id
func (ctrl *LevelController) List(c *echo.Context) error {
	recs, err := ctrl.App.Levels.RefreshAll(c.Request().Context())
	if err != nil {
		return ctrl.fail(c, err, nil)
	}

	resp := LevelListResponse{Levels: make([]LevelResponse, 0, len(recs)), Total: len(recs)}
	for _, rec := range recs {
		resp.Levels = append(resp.Levels, newLevelResponse(rec))
	}
	return c.JSON(http.StatusOK, resp)
}

func (ctrl *LevelController) Get(c *echo.Context) error {
	id, ok := levelID(c)
	if !ok {
		return badLevelID(c)
	}

	rec, err := ctrl.App.Levels.Refresh(id)
	if err != nil {
		return ctrl.fail(c, err, nil)
	}
	desc, err := ctrl.App.Levels.Descriptor(id)
	if err != nil {
		return ctrl.fail(c, err, nil)
	}

	return c.JSON(http.StatusOK, LevelDetailResponse{
		LevelResponse: newLevelResponse(rec),
		Descriptor:    desc,
	})
}

// Install runs the level toward Installed. A started download answers 202;
// the install resumes in the background once the archive arrives.
func (ctrl *LevelController) Install(c *echo.Context) error {
	id, ok := levelID(c)
	if !ok {
		return badLevelID(c)
	}

	rec, err := ctrl.App.Levels.Install(c.Request().Context(), id)
	if err != nil {
		return ctrl.fail(c, err, &rec)
	}
	if rec.Downloading {
		return c.JSON(http.StatusAccepted, newLevelResponse(rec))
	}
	return c.JSON(http.StatusOK, newLevelResponse(rec))
}

// Advance performs a single transition
func (ctrl *LevelController) Advance(c *echo.Context) error {
	id, ok := levelID(c)
	if !ok {
		return badLevelID(c)
	}

	rec, err := ctrl.App.Levels.Advance(c.Request().Context(), id)
	if err != nil {
		return ctrl.fail(c, err, &rec)
	}
	if rec.Downloading {
		return c.JSON(http.StatusAccepted, newLevelResponse(rec))
	}
	return c.JSON(http.StatusOK, newLevelResponse(rec))
}

func (ctrl *LevelController) Play(c *echo.Context) error {
	id, ok := levelID(c)
	if !ok {
		return badLevelID(c)
	}

	if err := ctrl.App.Levels.Play(c.Request().Context(), id); err != nil {
		return ctrl.fail(c, err, nil)
	}
	return c.NoContent(http.StatusNoContent)
}

func (ctrl *LevelController) Retry(c *echo.Context) error {
	id, ok := levelID(c)
	if !ok {
		return badLevelID(c)
	}

	rec, err := ctrl.App.Levels.Retry(id)
	if err != nil {
		return ctrl.fail(c, err, nil)
	}
	return c.JSON(http.StatusOK, newLevelResponse(rec))
}

// Clear removes installed content; ?keep_archive=true keeps the download
func (ctrl *LevelController) Clear(c *echo.Context) error {
	id, ok := levelID(c)
	if !ok {
		return badLevelID(c)
	}

	keep := false
	if raw := c.QueryParam("keep_archive"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "keep_archive must be a boolean"})
		}
		keep = parsed
	}

	rec, err := ctrl.App.Levels.Clear(c.Request().Context(), id, keep)
	if err != nil {
		return ctrl.fail(c, err, &rec)
	}
	return c.JSON(http.StatusOK, newLevelResponse(rec))
}

func (ctrl *LevelController) fail(c *echo.Context, err error, rec *domain.Record) error {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		ctrl.App.Logger.Error("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}
	if rec != nil && rec.ID == 0 {
		rec = nil
	}
	return c.JSON(code, ErrorResponse{Error: err.Error(), Record: rec})
}

// statusFor maps level and filesystem errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, level.ErrUnknownLevel):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidDescriptor):
		return http.StatusUnprocessableEntity
	case errors.Is(err, level.ErrDownloadInFlight),
		errors.Is(err, level.ErrNotPlayable),
		errors.Is(err, level.ErrBroken),
		errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func levelID(c *echo.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	return id, err == nil && id > 0
}

func badLevelID(c *echo.Context) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "level id must be a positive integer"})
}
