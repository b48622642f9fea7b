package authtransport

import (
	"context"

	stdjwt "github.com/dgrijalva/jwt-go"
	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/endpoint"
	"github.com/taskdeck/taskdeck/authsvc"
	"github.com/taskdeck/taskdeck/authsvc/inmem"
)

// NewAuthenticater rejects requests whose access token UUID is no longer in
// the live-token store, i.e. sessions that were logged out.
func NewAuthenticater(c inmem.Client) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			claims, ok := ctx.Value(kitjwt.JWTClaimsContextKey).(stdjwt.MapClaims)
			if !ok {
				return nil, authsvc.ErrClaimsMissing
			}

			uuid, ok := claims["uuid"].(string)
			if !ok {
				return nil, authsvc.ErrClaimsInvalid
			}

			if err := c.Get(uuid); err != nil {
				return nil, err
			}

			return next(ctx, request)
		}
	}
}
