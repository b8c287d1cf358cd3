// Package ez registers non-CRUD endpoints in one line each: binding, auth,
// optional transaction and unified error mapping live here so handlers stay
// one function.
package ez

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"parklot/internal/domain"
	resp "parklot/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ { return EZ{g: g} }

// Binding mode for the request payload.
type Binder string

const (
	BindJSON  Binder = "json"  // from the JSON body
	BindQuery Binder = "query" // from ?a=b query params
	BindNone  Binder = "none"  // handler pulls from c.Param itself
)

// AErr pairs an envelope code with a message.
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func BadRequest(msg string) error   { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func Unauthorized(msg string) error { return &AErr{Code: resp.CodeUnauthorized, Msg: msg} }
func Forbidden(msg string) error    { return &AErr{Code: resp.CodeForbidden, Msg: msg} }
func NotFound(msg string) error     { return &AErr{Code: resp.CodeNotFound, Msg: msg} }
func Internal(msg string, err error) error {
	return &AErr{Code: resp.CodeServerError, Msg: msg, Err: err}
}

// codeFor translates service error kinds into envelope codes.
func codeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return resp.CodeBadRequest
	case errors.Is(err, domain.ErrAuth):
		return resp.CodeUnauthorized
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrCapacity):
		return resp.CodeConflict
	case errors.Is(err, domain.ErrNotFound):
		return resp.CodeNotFound
	default:
		return resp.CodeServerError
	}
}

// Action describes one endpoint: I is the bound input, O the payload.
type Action[I any, O any] struct {
	Method  string // "GET" | "POST" | "PUT" | "DELETE"
	Path    string // e.g. "/auth/login", "/lots/:id/delete"
	Binder  Binder
	Auth    bool     // require a logged-in caller (userId present)
	Roles   []string // restrict to these roles (optional)
	UseTx   bool     // run the handler inside one gorm transaction
	Handler func(c *gin.Context, db *gorm.DB, in *I) (O, error)
}

// RegisterAction mounts the action on the group behind e.
func RegisterAction[I any, O any](e EZ, db *gorm.DB, a Action[I, O]) {
	h := func(c *gin.Context) {
		if a.Auth {
			uid := c.GetUint("userId")
			if uid == 0 {
				c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "unauthorized"))
				return
			}
			if len(a.Roles) > 0 {
				role := c.GetString("role")
				ok := false
				for _, r := range a.Roles {
					if role == r {
						ok = true
						break
					}
				}
				if !ok {
					c.JSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
					return
				}
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, bindErr.Error()))
			return
		}

		run := func(tx *gorm.DB) (O, error) { return a.Handler(c, tx, &in) }
		var out O
		var err error
		if a.UseTx {
			err = db.WithContext(c).Transaction(func(tx *gorm.DB) error {
				o, e := run(tx)
				out = o
				return e
			})
		} else {
			out, err = run(db.WithContext(c))
		}

		if err != nil {
			var ae *AErr
			if errors.As(err, &ae) {
				c.JSON(http.StatusOK, resp.Error(ae.Code, ae.Error()))
				return
			}
			c.JSON(http.StatusOK, resp.Error(codeFor(err), err.Error()))
			return
		}
		c.JSON(http.StatusOK, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default:
		e.g.POST(a.Path, h)
	}
}
