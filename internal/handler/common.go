package handler // handler defines http handlers

import (
    "errors"  // errors provides sentinel values used in getUserID
    "strconv" // strconv converts strings to numeric types

    "github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id set by JWTAuth and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
    switch t := c.Get("user_id").(type) {
    case uint64:
        if t != 0 {
            return t, nil
        }
    case float64:
        if t > 0 {
            return uint64(t), nil
        }
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
            return n, nil
        }
    }
    return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// maxPage bounds ?page= so the row offset stays well inside MySQL's range.
const maxPage = 10000

// pageParams reads page and page_size with the defaults used by list
// endpoints.  ok is false when page is above maxPage or not a number.
func pageParams(c echo.Context) (page, size int, ok bool) {
    if v := c.QueryParam("page"); v != "" {
        n, err := strconv.Atoi(v)
        if err != nil || n > maxPage {
            return 0, 0, false
        }
        page = n
    }
    if page < 1 {
        page = 1
    }
    size, _ = strconv.Atoi(c.QueryParam("page_size"))
    if size < 1 {
        size = 20
    }
    if size > 100 {
        size = 100
    }
    return page, size, true
}
