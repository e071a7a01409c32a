// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/config"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/handlers"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

// SetupRoutes registers every HTTP endpoint of the chatbot service.
// Endpoint paths match the frontend contract and must not change without
// coordinating a frontend release.
func SetupRoutes(router *gin.Engine, store *session.Store, cfg config.Config) {
	router.GET("/health", handlers.HealthCheck(store))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/initialize-chat", handlers.HandleInitializeChat(store, cfg))
	router.POST("/send-message", handlers.HandleSendMessage(store, cfg))
	router.POST("/send-message/sync", handlers.HandleSendMessageSync(store, cfg))
	router.POST("/close-chat", handlers.HandleCloseChat(store))
	router.GET("/session-status/:sessionId", handlers.HandleSessionStatus(store))
}
