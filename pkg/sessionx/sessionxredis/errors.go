package sessionxredis

import "github.com/Abraxas-365/docfill/pkg/errx"

var redisErrors = errx.NewRegistry("SESSION_REDIS")

var (
	ErrSave      = redisErrors.Register("SAVE", errx.TypeExternal, 500, "Redis session save failed")
	ErrLoad      = redisErrors.Register("LOAD", errx.TypeExternal, 500, "Redis session load failed")
	ErrDelete    = redisErrors.Register("DELETE", errx.TypeExternal, 500, "Redis session delete failed")
	ErrMarshal   = redisErrors.Register("MARSHAL", errx.TypeInternal, 500, "Failed to marshal session snapshot")
	ErrUnmarshal = redisErrors.Register("UNMARSHAL", errx.TypeInternal, 500, "Failed to unmarshal session snapshot")
)
