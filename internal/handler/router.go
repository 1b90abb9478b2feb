package handler

import (
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Entries *EntryHandler
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/", deps.Entries.Info)
	api.GET("/entries", deps.Entries.List)
	api.GET("/entry", deps.Entries.Get)
	api.GET("/entry/html", deps.Entries.GetHTML)
	api.POST("/scrape", deps.Entries.Scrape)
	api.GET("/search", deps.Entries.Search)
	api.GET("/vector-search", deps.Entries.VectorSearch)
	api.POST("/regenerate-embeddings", deps.Entries.RegenerateEmbeddings)
}
