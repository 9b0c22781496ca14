package middleware

import "errors"

var errMissingBearer = errors.New("missing or malformed Authorization bearer header")
