package router

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"parklot/internal/core/auth"
	"parklot/internal/core/server"
	"parklot/internal/service"
	httpez "parklot/internal/transport/http/ez"
	mdw "parklot/internal/transport/http/middleware"
)

// Services bundles the core the routers expose.
type Services struct {
	Ident    *service.IdentityService
	Registry *service.RegistryService
	Booking  *service.BookingService
	Stats    *service.StatsService
}

func NewAPIEngine(l *zap.Logger, db *gorm.DB, jwter *auth.JWTer, s Services) *gin.Engine {
	// Browser-facing engine: zap access/recovery logging and CORS come from
	// the server base, the rest is layered here.
	r := server.NewRouter(l)

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")

	// Public read-only surface goes through the module registry.
	registerModules(db, s)
	MountAllAPI(api)

	mountAuthActions(api, db, jwter, s)

	authUser := api.Group("")
	authUser.Use(mdw.AuthJWT(jwter, ""))
	mountUserActions(authUser, db, s)

	return r
}

func pathID(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, httpez.BadRequest("invalid " + name)
	}
	return uint(v), nil
}

func mountAuthActions(api *gin.RouterGroup, db *gorm.DB, jwter *auth.JWTer, s Services) {
	// credential endpoints get a tighter per-IP budget
	authGrp := api.Group("")
	authGrp.Use(mdw.RateLimitPerIP(5, 10))
	ezPublic := httpez.New(authGrp)

	type registerOut struct {
		Token string `json:"token"`
		User  any    `json:"user"`
	}
	httpez.RegisterAction[service.RegisterInput, registerOut](ezPublic, db, httpez.Action[service.RegisterInput, registerOut]{
		Method: http.MethodPost,
		Path:   "/auth/register",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.RegisterInput) (registerOut, error) {
			u, err := s.Ident.Register(*in)
			if err != nil {
				return registerOut{}, err
			}
			tok, err := jwter.Issue(u.ID, u.Role())
			if err != nil {
				return registerOut{}, httpez.Internal("issue token failed", err)
			}
			return registerOut{Token: tok, User: u}, nil
		},
	})

	type loginIn struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	type loginOut struct {
		Token string `json:"token"`
		User  any    `json:"user"`
	}
	httpez.RegisterAction[loginIn, loginOut](ezPublic, db, httpez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, _ *gorm.DB, in *loginIn) (loginOut, error) {
			u, err := s.Ident.Authenticate(in.Email, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			tok, err := jwter.Issue(u.ID, u.Role())
			if err != nil {
				return loginOut{}, httpez.Internal("issue token failed", err)
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})
}

func mountUserActions(authUser *gin.RouterGroup, db *gorm.DB, s Services) {
	ezAuth := httpez.New(authUser)

	type reserveIn struct {
		LotID         uint   `json:"lotId" binding:"required"`
		VehicleNumber string `json:"vehicleNumber" binding:"required"`
	}
	httpez.RegisterAction[reserveIn, any](ezAuth, db, httpez.Action[reserveIn, any]{
		Method: http.MethodPost,
		Path:   "/reserve",
		Binder: httpez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *reserveIn) (any, error) {
			res, err := s.Booking.Reserve(c.GetUint("userId"), in.LotID, in.VehicleNumber)
			if err == nil {
				s.Stats.InvalidateAggregates(c.Request.Context())
			}
			return res, err
		},
	})

	httpez.RegisterAction[struct{}, any](ezAuth, db, httpez.Action[struct{}, any]{
		Method: http.MethodPost,
		Path:   "/release",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			closed, err := s.Booking.Release(c.GetUint("userId"))
			if err == nil {
				s.Stats.InvalidateAggregates(c.Request.Context())
			}
			return closed, err
		},
	})

	httpez.RegisterAction[struct{}, any](ezAuth, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			uid := c.GetUint("userId")
			active, err := s.Booking.Active(uid)
			if err != nil {
				return nil, err
			}
			recent, err := s.Booking.RecentCompleted(uid, 5)
			if err != nil {
				return nil, err
			}
			return gin.H{"active": active, "recent": recent}, nil
		},
	})

	type historyQ struct {
		Page    int `form:"page,default=1"`
		PerPage int `form:"perPage,default=10"`
	}
	httpez.RegisterAction[historyQ, any](ezAuth, db, httpez.Action[historyQ, any]{
		Method: http.MethodGet,
		Path:   "/history",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *historyQ) (any, error) {
			items, total, err := s.Booking.History(c.GetUint("userId"), in.Page, in.PerPage)
			if err != nil {
				return nil, err
			}
			return gin.H{"total": total, "items": items}, nil
		},
	})

	httpez.RegisterAction[struct{}, any](ezAuth, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/summary",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			return s.Stats.UserSummary(c.GetUint("userId"))
		},
	})

	type searchQ struct {
		Query string `form:"query" binding:"required"`
	}
	httpez.RegisterAction[searchQ, any](ezAuth, db, httpez.Action[searchQ, any]{
		Method: http.MethodGet,
		Path:   "/search",
		Binder: httpez.BindQuery,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, in *searchQ) (any, error) {
			return s.Registry.SearchLots(in.Query)
		},
	})

	httpez.RegisterAction[struct{}, any](ezAuth, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/users/:id/stats",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			return s.Stats.UserStats(c.GetUint("userId"), id)
		},
	})
}
