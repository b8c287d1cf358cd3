package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"parklot/internal/core/auth"
	"parklot/internal/service"
	httpez "parklot/internal/transport/http/ez"
	mdw "parklot/internal/transport/http/middleware"
)

// NewAdminEngine serves the management surface. Every route under /admin/v1
// requires an admin token; the role check runs again inside the services.
func NewAdminEngine(l *zap.Logger, db *gorm.DB, jwter *auth.JWTer, s Services) *gin.Engine {
	r := gin.New()

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(50, 100),
		mdw.ConcurrencyLimit(100),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(15*time.Second),
		mdw.SimpleRecovery(),
		mdw.Metrics(),
		mdw.AccessLog(l),
	)

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, "admin"))

	registerModules(db, s)
	MountAllAdmin(admin)

	mountAdminActions(admin, db, s)

	return r
}

func mountAdminActions(admin *gin.RouterGroup, db *gorm.DB, s Services) {
	e := httpez.New(admin)

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/lots",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(_ *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			return s.Registry.ListLotAvailability()
		},
	})

	httpez.RegisterAction[service.LotInput, any](e, db, httpez.Action[service.LotInput, any]{
		Method: http.MethodPost,
		Path:   "/lots",
		Binder: httpez.BindJSON,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.LotInput) (any, error) {
			lot, err := s.Registry.CreateLot(c.GetUint("userId"), *in)
			if err == nil {
				s.Stats.InvalidateAggregates(c.Request.Context())
			}
			return lot, err
		},
	})

	httpez.RegisterAction[service.LotInput, any](e, db, httpez.Action[service.LotInput, any]{
		Method: http.MethodPut,
		Path:   "/lots/:id",
		Binder: httpez.BindJSON,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, in *service.LotInput) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			lot, err := s.Registry.UpdateLot(c.GetUint("userId"), id, *in)
			if err == nil {
				s.Stats.InvalidateAggregates(c.Request.Context())
			}
			return lot, err
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodDelete,
		Path:   "/lots/:id",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			if err := s.Registry.DeleteLot(c.GetUint("userId"), id); err != nil {
				return nil, err
			}
			s.Stats.InvalidateAggregates(c.Request.Context())
			return gin.H{"deleted": id}, nil
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/lots/:id/spots",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			return s.Registry.SpotsWithOccupant(c.GetUint("userId"), id)
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/lots/:id/status",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			return s.Registry.CountByStatus(id)
		},
	})

	type pageQ struct {
		Page    int `form:"page,default=1"`
		PerPage int `form:"perPage,default=20"`
	}
	httpez.RegisterAction[pageQ, any](e, db, httpez.Action[pageQ, any]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindQuery,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, in *pageQ) (any, error) {
			if in.Page < 1 {
				in.Page = 1
			}
			users, total, err := s.Ident.ListUsers(c.GetUint("userId"), (in.Page-1)*in.PerPage, in.PerPage)
			if err != nil {
				return nil, err
			}
			return gin.H{"total": total, "items": users}, nil
		},
	})

	type searchQ struct {
		Query string `form:"query" binding:"required"`
	}
	httpez.RegisterAction[searchQ, any](e, db, httpez.Action[searchQ, any]{
		Method: http.MethodGet,
		Path:   "/search",
		Binder: httpez.BindQuery,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, in *searchQ) (any, error) {
			lots, err := s.Registry.SearchLots(in.Query)
			if err != nil {
				return nil, err
			}
			users, err := s.Ident.SearchUsers(c.GetUint("userId"), in.Query)
			if err != nil {
				return nil, err
			}
			return gin.H{"lots": lots, "users": users}, nil
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/stats/parking",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			return s.Stats.ParkingStats(c.Request.Context(), c.GetUint("userId"))
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/stats/revenue",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			return s.Stats.RevenueStats(c.Request.Context(), c.GetUint("userId"))
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			return s.Ident.GetUser(c.GetUint("userId"), id)
		},
	})

	httpez.RegisterAction[struct{}, any](e, db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/users/:id/stats",
		Binder: httpez.BindNone,
		Auth:   true,
		Roles:  []string{"admin"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			return s.Stats.UserStats(c.GetUint("userId"), id)
		},
	})
}
