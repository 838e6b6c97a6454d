package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func attachRoutes(r *gin.Engine, d Deps, feed *Feed, limiter *RateLimiter) {
	r.Use(cors.New(corsConfig(d.Config.CORSOrigins)))

	h := newHandlers(d)
	secret := []byte(d.Config.JWTSecret)
	authH := NewAuth(d.Redis, secret, d.Logger)

	v1 := r.Group("/v1")
	v1.GET("/health", h.health)

	public := v1.Group("/auth", RateLimitMiddleware(limiter))
	public.POST("/challenge", authH.Challenge)
	public.POST("/verify", authH.Verify)

	v1.GET("/feed", JWTMiddleware(secret), feed.Serve)

	secured := v1.Group("", JWTMiddleware(secret), RateLimitMiddleware(limiter))
	{
		secured.POST("/createMultisig", h.createMultisig)
		secured.POST("/linkMultisig", h.linkMultisig)
		secured.POST("/getMultisigsByAddress", h.getMultisigsByAddress)
		secured.POST("/updateMultisig", h.updateMultisig)
		secured.POST("/disableMultisig", h.disableMultisig)

		secured.POST("/createOrganisation", h.createOrganisation)
		secured.POST("/getOrganisation", h.getOrganisation)
		secured.POST("/addMultisigToOrganisation", h.addMultisigToOrganisation)

		secured.POST("/addToAddressBook_substrate", h.addToAddressBookSubstrate)
		secured.POST("/addToAddressBook_eth", h.addToAddressBookEth)
		secured.POST("/removeFromAddressBook", h.removeFromAddressBook)
		secured.POST("/getAddressBook", h.getAddressBook)

		secured.POST("/prepareTransaction", h.prepareTransaction)
		secured.POST("/submitTransaction", h.submitTransaction)
		secured.POST("/approveTransaction", h.approveTransaction)
		secured.POST("/getPendingTransactions", h.getPendingTransactions)
		secured.POST("/getHistoryTransaction_substrate", h.getHistorySubstrate)
		secured.POST("/getHistoryTransaction_eth", h.getHistoryEth)
		secured.POST("/getOrganisationTransactions", h.getOrganisationTransactions)
		secured.POST("/decodeCallData", h.decodeCallData)

		secured.POST("/getNotificationPreferences", h.getNotificationPreferences)
		secured.POST("/updateNotificationChannelPreferences", h.updateChannelPreferences)
		secured.POST("/verifyNotificationChannel", h.verifyNotificationChannel)
		secured.POST("/updateNotificationTriggerPreferences", h.updateTriggerPreferences)

		secured.POST("/getAssets", h.getAssets)
	}
}
