package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/example/face-register/internal/imageprocessor"
	"github.com/example/face-register/internal/repository"
	"github.com/example/face-register/internal/usecase"
)

// MaxUploadSize bounds the registration request body, photo included.
const MaxUploadSize = 10 << 20

// RegistrationService is the use case surface the handlers depend on.
type RegistrationService interface {
	Register(ctx context.Context, in usecase.RegistrationInput) (*repository.User, error)
	GetRegistration(ctx context.Context, registrationID string) (*repository.User, error)
	GetMetricsSummary(ctx context.Context) (*usecase.MetricsSummary, error)
}

type registerRequest struct {
	FullName    string `json:"fullName" binding:"required,max=120"`
	Email       string `json:"email" binding:"required,email,max=120"`
	PhoneNumber string `json:"phoneNumber" binding:"required,max=20"`
	DateOfBirth string `json:"dateOfBirth" binding:"required,datetime=2006-01-02"`
	University  string `json:"university" binding:"required,max=120"`
	Gender      string `json:"gender" binding:"required,max=10"`
	Photo       string `json:"photo"`
}

// CORS allows the registration frontend to call the API from the browser.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = allowedOrigins
	return cors.New(cfg)
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, svc RegistrationService, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/register", func(c *gin.Context) {
		if !strings.HasPrefix(c.ContentType(), "application/json") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be application/json"})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration data: " + err.Error()})
			return
		}

		user, err := svc.Register(c.Request.Context(), usecase.RegistrationInput{
			FullName:    req.FullName,
			Email:       req.Email,
			PhoneNumber: req.PhoneNumber,
			DateOfBirth: req.DateOfBirth,
			University:  req.University,
			Gender:      req.Gender,
			Photo:       req.Photo,
		})
		if err != nil {
			status, message := registrationFailure(err)
			c.JSON(status, gin.H{"error": message})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":        "Registration successful",
			"registrationId": user.RegistrationID,
		})
	})

	authorized := router.Group("/", authMiddleware)

	authorized.GET("/registrations/:id", func(c *gin.Context) {
		user, err := svc.GetRegistration(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load registration"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"registrationId": user.RegistrationID,
			"fullName":       user.FullName,
			"email":          user.Email,
			"phoneNumber":    user.PhoneNumber,
			"dateOfBirth":    user.DateOfBirth,
			"university":     user.University,
			"gender":         user.Gender,
			"photo":          user.Photo,
			"createdAt":      user.CreatedAt,
		})
	})

	authorized.GET("/metrics/summary", func(c *gin.Context) {
		summary, err := svc.GetMetricsSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})
}

func registrationFailure(err error) (int, string) {
	switch {
	case imageprocessor.IsClientError(err):
		return http.StatusBadRequest, imageprocessor.Reason(err)
	case imageprocessor.Reason(err) != "":
		return http.StatusInternalServerError, "unable to process photo"
	case errors.Is(err, repository.ErrDuplicateEmail):
		return http.StatusConflict, repository.ErrDuplicateEmail.Error()
	default:
		return http.StatusInternalServerError, "database error"
	}
}
