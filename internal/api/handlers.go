package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/kiliankoe/sketchdash/internal/blob"
	"github.com/kiliankoe/sketchdash/internal/canvas"
	"github.com/kiliankoe/sketchdash/internal/prompts"
	"github.com/kiliankoe/sketchdash/internal/sketches"
)

const qrSize = 320

func (s *Server) dailyPrompt(c *gin.Context) {
	p, err := s.Prompts.Daily(c.Request.Context())
	if errors.Is(err, prompts.ErrNoPrompts) {
		fail(c, http.StatusNotFound, "No prompts available", nil)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch daily prompt", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompt": p})
}

type recognizeRequest struct {
	ImageData  string `json:"imageData"`
	TargetWord string `json:"targetWord"`
}

func (s *Server) recognize(c *gin.Context) {
	var req recognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageData == "" {
		fail(c, http.StatusBadRequest, "Image data is required", nil)
		return
	}
	img, err := canvas.DecodeDataURL(req.ImageData)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid image data", nil)
		return
	}
	preds, err := s.Recognizer.Recognize(c.Request.Context(), img, req.TargetWord)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to process image", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds})
}

func (s *Server) saveSketch(c *gin.Context) {
	var req sketches.SaveInput
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Image data and object are required", nil)
		return
	}
	sk, err := s.Sketches.Save(c.Request.Context(), req)
	switch {
	case errors.Is(err, sketches.ErrInvalidInput):
		fail(c, http.StatusBadRequest, "Image data and object are required", nil)
		return
	case errors.Is(err, sketches.ErrUpload):
		fail(c, http.StatusInternalServerError, "Failed to upload image", err)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to save sketch data", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sketch": sk, "imageUrl": sk.ImageURL})
}

func (s *Server) topTime(c *gin.Context) {
	t, err := s.Sketches.TopTime(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch top time", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topTime": t})
}

func (s *Server) recentSketches(c *gin.Context) {
	rec, err := s.Sketches.Recent(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch sketches", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) gallery(c *gin.Context) {
	rows, err := s.Sketches.Gallery(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch sketches", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sketches": rows})
}

func (s *Server) dailyLeaderboard(c *gin.Context) {
	rows, err := s.Sketches.DailyLeaderboard(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sketches": rows})
}

// shareQR renders the share link as a PNG QR code.
func (s *Server) shareQR(c *gin.Context) {
	target := c.Query("url")
	u, err := url.Parse(target)
	if target == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fail(c, http.StatusBadRequest, "A valid url is required", nil)
		return
	}
	png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, "QR generation failed", err)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) serveSketch(c *gin.Context) {
	obj, err := s.Blobs.Open(c.Param("name"))
	switch {
	case errors.Is(err, blob.ErrNotFound), errors.Is(err, blob.ErrInvalidName):
		fail(c, http.StatusNotFound, "Sketch not found", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to read sketch", err)
		return
	}
	defer obj.Close()
	c.Header("Content-Type", "image/png")
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeContent(c.Writer, c.Request, obj.Name, obj.ModTime, obj)
}

type addPromptRequest struct {
	Word     string `json:"word"`
	Category string `json:"category"`
}

func (s *Server) listPrompts(c *gin.Context) {
	ps, err := s.Prompts.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to list prompts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prompts": ps})
}

func (s *Server) addPrompt(c *gin.Context) {
	var req addPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Word is required", nil)
		return
	}
	p, err := s.Prompts.Add(c.Request.Context(), req.Word, req.Category)
	switch {
	case errors.Is(err, prompts.ErrInvalidInput):
		fail(c, http.StatusBadRequest, "Word is required", nil)
		return
	case errors.Is(err, prompts.ErrDuplicateWord):
		fail(c, http.StatusConflict, "Prompt already exists", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to add prompt", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"prompt": p})
}
