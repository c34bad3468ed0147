package handlers

import (
	"realestate-platform/internal/auth"
	"realestate-platform/internal/models"

	"github.com/gin-gonic/gin"
)

// Handlers bundles every area handler for route registration
type Handlers struct {
	Auth          *AuthHandler
	Notifications *NotificationHandler
	Connections   *ConnectionHandler
	Transactions  *TransactionHandler
	Referrals     *ReferralHandler
	Support       *SupportHandler
	Properties    *PropertyHandler
	Admin         *AdminHandler
}

// RegisterRoutes mounts the API on api, normally the /api group
func RegisterRoutes(api *gin.RouterGroup, authn *auth.Authenticator, h Handlers) {
	required := authn.Required()
	optional := authn.Optional()

	a := api.Group("/auth")
	{
		a.POST("/register", h.Auth.Register)
		a.POST("/login", h.Auth.Login)
		a.POST("/logout", h.Auth.Logout)
		a.GET("/me", required, h.Auth.Me)
	}

	p := api.Group("/properties")
	{
		p.GET("", optional, h.Properties.List)
		p.GET("/search", optional, h.Properties.Search)
		p.GET("/:id", optional, h.Properties.Get)
		p.POST("", required, h.Properties.Create)
		p.PATCH("/:id", required, h.Properties.Update)
		p.DELETE("/:id", required, h.Properties.Delete)
		p.GET("/:id/history", required, h.Properties.History)
		p.GET("/:id/availability", h.Properties.Availability)
		p.POST("/:id/availability", required, h.Properties.AddSlot)
		p.DELETE("/:id/availability/:slotId", required, h.Properties.RemoveSlot)
		p.POST("/:id/favorite", required, h.Properties.ToggleFavorite)
	}

	n := api.Group("/notifications", required)
	{
		n.GET("", h.Notifications.List)
		n.POST("", h.Notifications.Create)
		n.PUT("", h.Notifications.MarkRead)
		n.PUT("/read-all", h.Notifications.MarkAllRead)
		n.DELETE("", h.Notifications.Delete)
	}

	ba := api.Group("/buyer-agent", required)
	{
		ba.POST("/connect", h.Connections.Connect)
		ba.POST("/verify-otp", h.Connections.VerifyOTP)
		ba.POST("/resend-otp", auth.RequireRole(models.RoleAgent, models.RoleAdmin), h.Connections.ResendOTP)
		ba.GET("/connections", h.Connections.Connections)
		ba.GET("/check", h.Connections.Check)
		ba.POST("/schedule-viewing", h.Properties.ScheduleViewing)
	}

	b := api.Group("/buyer", required)
	{
		b.GET("/interested-properties", h.Connections.InterestedProperties)
		b.DELETE("/interested-properties/:propertyId", h.Connections.CancelInterest)
		b.PATCH("/properties/:propertyId/interest", h.Connections.RestoreInterest)
		b.GET("/favorite-properties", h.Properties.Favorites)
		b.PUT("/appointments/:appointmentId/status", h.Properties.UpdateAppointmentStatus)
	}

	api.GET("/viewing-requests", required, h.Properties.MyViewings)

	sel := api.Group("/seller", required)
	{
		sel.GET("/appointments", h.Properties.SellerAppointments)
		sel.PUT("/appointments/:appointmentId/status", h.Properties.UpdateAppointmentStatus)
	}

	t := api.Group("/transactions", required)
	{
		t.GET("/:id", h.Transactions.Get)
		t.GET("/:id/progress", h.Transactions.Progress)
	}

	r := api.Group("/referrals")
	{
		r.GET("/leaderboard", required, h.Referrals.Leaderboard)
		r.GET("/stats", required, h.Referrals.Stats)
		r.POST("/process-registration", authn.RequireInternal(), h.Referrals.ProcessRegistration)
		r.POST("/process-property", required, h.Referrals.ProcessProperty)
		r.POST("/generate-link", required, h.Referrals.GenerateLink)
		r.GET("/user-referral", required, h.Referrals.UserReferral)
	}

	s := api.Group("/support", required)
	{
		s.POST("/tickets", h.Support.CreateTicket)
		s.GET("/tickets", h.Support.ListTickets)
		s.GET("/tickets/:id", h.Support.GetTicket)
		s.PATCH("/tickets/:id", h.Support.UpdateTicket)
		s.GET("/messages", h.Support.Messages)
		s.POST("/messages", h.Support.PostMessage)
	}

	adm := api.Group("/admin", required, auth.RequireRole(models.RoleAdmin))
	{
		adm.GET("/stats", h.Admin.GetStats)
		adm.GET("/activity", h.Admin.GetRecentActivity)
		adm.GET("/stats/locations", h.Admin.GetLocationStats)
		adm.GET("/stats/prices", h.Admin.GetPriceDistribution)
		adm.GET("/jobs", h.Admin.Jobs)
		adm.POST("/jobs/:name/run", h.Admin.RunJob)
		adm.POST("/cleanup", h.Admin.RunCleanup)
		adm.GET("/cleanup/logs", h.Admin.GetPurgeLogs)
		adm.GET("/changes/recent", h.Properties.RecentChanges)
		adm.GET("/appointments", h.Properties.AdminAppointments)
		adm.PUT("/appointments/:appointmentId/status", h.Properties.UpdateAppointmentStatus)
		adm.PUT("/listings/:id/:action", h.Properties.Moderate)
		adm.POST("/referrals/reconcile", h.Admin.Reconcile)
		adm.POST("/search/reindex", h.Admin.Reindex)
		adm.POST("/users/:userId/points", h.Admin.AdjustPoints)
		adm.GET("/transactions", h.Transactions.List)
		adm.PUT("/transactions/:id/stage", h.Transactions.UpdateStage)
	}
}
