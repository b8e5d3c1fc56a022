package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jdamiba/sandstone-project/common"
	"github.com/jdamiba/sandstone-project/document"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	maxSearchLen = 100
)

// parseListQuery validates the listing query parameters. Invalid values
// are rejected rather than clamped so callers notice their mistakes.
func parseListQuery(c echo.Context, userID string) (document.ListQuery, error) {
	q := document.ListQuery{
		UserID: userID,
		Limit:  defaultLimit,
		Offset: 0,
	}

	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return q, common.BadRequest("limit must be an integer between 1 and 100").
				WithDetails("limit", raw)
		}
		q.Limit = n
	}

	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, common.BadRequest("offset must be a non-negative integer").
				WithDetails("offset", raw)
		}
		q.Offset = n
	}

	if raw := c.QueryParam("search"); raw != "" {
		if len(raw) > maxSearchLen {
			return q, common.BadRequest("search must be between 1 and 100 characters").
				WithDetails("search", raw)
		}
		q.Search = raw
	}

	// public is a case-sensitive literal, not a loose boolean
	if raw := c.QueryParam("public"); raw != "" {
		switch raw {
		case "true":
			v := true
			q.Public = &v
		case "false":
			v := false
			q.Public = &v
		default:
			return q, common.BadRequest("public must be \"true\" or \"false\"").
				WithDetails("public", raw)
		}
	}

	return q, nil
}

// validateMetadata checks the bounded document attributes shared by
// create and update.
func validateMetadata(title, description *string, tags []string) error {
	if title != nil {
		if *title == "" {
			return common.Validation("title must not be empty")
		}
		if len(*title) > document.MaxTitleLen {
			return common.Validation("title exceeds 255 characters")
		}
	}
	if description != nil && len(*description) > document.MaxDescriptionLen {
		return common.Validation("description exceeds 1000 characters")
	}
	for _, tag := range tags {
		if len(tag) > document.MaxTagLen {
			return common.Validation("tag exceeds 50 characters").WithDetails("tag", tag)
		}
	}
	return nil
}
