// Package server assembles the HTTP router from the domain packages.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/admin"
	"github.com/mikepea/budgetshare/pkg/budgetshare/apikeys"
	"github.com/mikepea/budgetshare/pkg/budgetshare/auth"
	"github.com/mikepea/budgetshare/pkg/budgetshare/entries"
	"github.com/mikepea/budgetshare/pkg/budgetshare/groups"
	"github.com/mikepea/budgetshare/pkg/budgetshare/importexport"
	"github.com/mikepea/budgetshare/pkg/budgetshare/invitations"
	"github.com/mikepea/budgetshare/pkg/budgetshare/logging"
	"github.com/mikepea/budgetshare/pkg/budgetshare/metrics"
	"github.com/mikepea/budgetshare/pkg/budgetshare/notify"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

// Deps are the long-lived components the router is built from.
type Deps struct {
	DB         *gorm.DB
	Catalog    *refdata.Catalog
	Dispatcher *notify.Dispatcher
	Logger     *logrus.Logger
	// Location decides which calendar day is "today" for ledger dates.
	Location *time.Location
}

// New builds the router.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}

	r := gin.New()
	r.Use(gin.Recovery(), logging.RequestLogger(d.Logger), metrics.Middleware())

	r.GET("/health", health(d.DB))
	r.GET("/metrics", metrics.Handler())

	policy := access.New(d.DB)
	groupSvc := groups.NewService(d.DB, policy)
	invitationSvc := invitations.NewService(d.DB, policy, d.Dispatcher)
	entrySvc := entries.NewService(d.DB, policy, d.Catalog, d.Location)

	api := r.Group("/api")
	{
		// Auth routes (public apart from refresh and me)
		auth.NewHandler(d.DB, d.Dispatcher).RegisterRoutes(api.Group("/auth"))

		// API keys are managed with a login session only
		apikeys.NewHandler(d.DB).RegisterRoutes(api.Group("", auth.AuthMiddleware(d.DB)))

		// Everything else accepts JWT or API key
		protected := api.Group("", apikeys.CombinedAuthMiddleware(d.DB))
		refdata.NewHandler(d.Catalog).RegisterRoutes(protected)

		groupRoutes := protected.Group("/groups")
		groupsHandler := groups.NewHandler(groupSvc)
		groupsHandler.RegisterRoutes(groupRoutes)
		groupsHandler.RegisterMemberRoutes(groupRoutes)

		invitationsHandler := invitations.NewHandler(invitationSvc)
		invitationsHandler.RegisterRoutes(protected)
		invitationsHandler.RegisterGroupRoutes(groupRoutes)

		entries.NewHandler(entrySvc).RegisterGroupRoutes(groupRoutes)

		importexport.NewHandler(
			importexport.NewExporter(entrySvc, d.Catalog),
			importexport.NewImporter(entrySvc, policy),
		).RegisterGroupRoutes(groupRoutes)

		// System admin routes (JWT only, admin role required)
		adminGroup := api.Group("/admin", auth.AuthMiddleware(d.DB), auth.RequireAdmin())
		admin.NewHandler(d.DB, d.Catalog).RegisterRoutes(adminGroup)
	}

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			logging.FromContext(c).AddData("health_error", err.Error())
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "budgetshare"})
	}
}
