package handler

import (
	"bytes"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/sepworks/sepd/internal/pkg/response"
	"github.com/sepworks/sepd/internal/seplink"
	"github.com/sepworks/sepd/internal/service"
)

type EntryHandler struct {
	entries  *service.EntryService
	markdown goldmark.Markdown
}

func NewEntryHandler(entries *service.EntryService) *EntryHandler {
	return &EntryHandler{
		entries:  entries,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

func (h *EntryHandler) Info(c *gin.Context) {
	response.Success(c, gin.H{
		"name":        "SEP mirror API",
		"description": "Scrapes Stanford Encyclopedia of Philosophy articles to markdown and serves them with text and semantic search",
		"entry_url":   seplink.EntryPrefix + "{entry_id}/",
	})
}

type entryItem struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (h *EntryHandler) List(c *gin.Context) {
	limit := uintQuery(c, "limit", 100)
	offset := uintQuery(c, "offset", 0)
	entries, count, err := h.entries.List(c.Request.Context(), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	items := make([]entryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entryItem{URL: entry.URL, Title: entry.Title})
	}
	response.Success(c, gin.H{"entries": items, "count": count})
}

func (h *EntryHandler) Get(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "url query parameter is required")
		return
	}
	entry, err := h.entries.Get(c.Request.Context(), url)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, entry)
}

// GetHTML serves the stored markdown of an entry rendered to HTML.
func (h *EntryHandler) GetHTML(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "url query parameter is required")
		return
	}
	markdown, err := h.entries.Markdown(c.Request.Context(), url)
	if err != nil {
		handleError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(markdown), &buf); err != nil {
		handleError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

type scrapeRequest struct {
	URL string `json:"url"`
}

func (h *EntryHandler) Scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	if req.URL == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "url is required")
		return
	}
	entry, err := h.entries.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		handleError(c, err)
		return
	}
	if saved := h.entries.Save(c.Request.Context(), entry); !saved {
		response.Success(c, gin.H{
			"url":     req.URL,
			"title":   entry.Title,
			"success": false,
			"message": "article was scraped but could not be saved",
		})
		return
	}
	response.Success(c, gin.H{
		"url":     req.URL,
		"title":   entry.Title,
		"success": true,
		"message": "article successfully scraped and saved",
	})
}

func (h *EntryHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "query parameter is required")
		return
	}
	limit := intQuery(c, "limit", 10)
	results, err := h.entries.TextSearch(c.Request.Context(), query, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"query": query, "results": results, "count": len(results)})
}

func (h *EntryHandler) VectorSearch(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		response.Error(c, http.StatusBadRequest, "invalid", "query parameter is required")
		return
	}
	searchType := c.DefaultQuery("search_type", "content")
	if searchType != "content" && searchType != "title" {
		response.Error(c, http.StatusBadRequest, "invalid", "search_type must be 'content' or 'title'")
		return
	}
	threshold := 0.3
	if value := c.Query("similarity_threshold"); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(parsed) {
			response.Error(c, http.StatusBadRequest, "invalid", "similarity_threshold must be a number")
			return
		}
		threshold = parsed
	}
	if threshold < 0 || threshold > 1 {
		response.Error(c, http.StatusBadRequest, "invalid", "similarity_threshold must be between 0 and 1")
		return
	}
	limit := intQuery(c, "limit", 10)

	results, err := h.entries.VectorSearch(c.Request.Context(), query, searchType, threshold, limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"query":                query,
		"search_type":          searchType,
		"similarity_threshold": threshold,
		"results":              results,
		"count":                len(results),
	})
}

type regenerateRequest struct {
	Limit  uint `json:"limit"`
	Offset uint `json:"offset"`
}

func (h *EntryHandler) RegenerateEmbeddings(c *gin.Context) {
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid", "invalid request body")
		return
	}
	result, err := h.entries.RegenerateEmbeddings(c.Request.Context(), req.Limit, req.Offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"status": "success", "results": result})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if value := c.Query(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func uintQuery(c *gin.Context, name string, fallback uint) uint {
	if value := c.Query(name); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed >= 0 {
			return uint(parsed)
		}
	}
	return fallback
}
