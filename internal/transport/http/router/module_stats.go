package router

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	httpez "parklot/internal/transport/http/ez"
)

var modOnce sync.Once

// registerModules wires the shared read-only surface. Both engine
// constructors call it; sync.Once keeps the registry from double-mounting
// when a process builds both.
func registerModules(db *gorm.DB, s Services) {
	modOnce.Do(func() {
		Register(&statsModule{db: db, s: s})
	})
}

// statsModule serves lot availability on the public API and the counter
// dashboard on the admin side.
type statsModule struct {
	db *gorm.DB
	s  Services
}

func (m *statsModule) Priority() int { return 10 }

func (m *statsModule) MountAPI(api *gin.RouterGroup) {
	e := httpez.New(api)

	httpez.RegisterAction[struct{}, any](e, m.db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/lots",
		Binder: httpez.BindNone,
		Handler: func(_ *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			return m.s.Registry.ListLotAvailability()
		},
	})

	httpez.RegisterAction[struct{}, any](e, m.db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/lots/:id/available-spots",
		Binder: httpez.BindNone,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			id, err := pathID(c, "id")
			if err != nil {
				return nil, err
			}
			return m.s.Stats.AvailableSpots(id)
		},
	})
}

func (m *statsModule) MountAdmin(admin *gin.RouterGroup) {
	e := httpez.New(admin)

	httpez.RegisterAction[struct{}, any](e, m.db, httpez.Action[struct{}, any]{
		Method: http.MethodGet,
		Path:   "/dashboard",
		Binder: httpez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (any, error) {
			return m.s.Stats.Dashboard(c.GetUint("userId"))
		},
	})
}
