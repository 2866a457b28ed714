package utils

import (
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

// ActorID returns the verified user id of the current request.
func ActorID(ctx iris.Context) uint {
	claims := jwt.Get(ctx).(*AccessToken)
	return claims.ID
}
