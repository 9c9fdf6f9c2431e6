package middleware

// identity.go holds helpers shared across middleware files for reading the
// authenticated owner that JWTAuth stored in the Echo context.

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// subjectID converts a "sub" claim into an owner ID.  JSON numbers decode
// as float64; string subjects are accepted when they hold a positive
// integer.
func subjectID(v interface{}) (uint64, bool) {
    switch t := v.(type) {
    case float64:
        if t < 1 || t != float64(uint64(t)) {
            return 0, false
        }
        return uint64(t), true
    case string:
        n, err := strconv.ParseUint(t, 10, 64)
        if err != nil || n == 0 {
            return 0, false
        }
        return n, true
    }
    return 0, false
}

// OwnerID returns the authenticated owner stored by JWTAuth.
func OwnerID(c echo.Context) (uint64, bool) {
    id, ok := c.Get("user_id").(uint64)
    return id, ok && id != 0
}

// ownerKey renders the owner for rate-limit keys.  It returns "guest"
// when no owner is authenticated.
func ownerKey(c echo.Context) string {
    if id, ok := OwnerID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
