package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework

	"core_bank/internal/auth"         // Login
	"core_bank/internal/domain"       // Errors
	"core_bank/internal/middleware"   // Error envelope
	"core_bank/internal/registration" // Client registration
)

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginResponse carries the issued credential
type LoginResponse struct {
	Message string `json:"message"` // Always "Login successful"
	Token   string `json:"token"`   // Bearer credential
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Nombres   string  `json:"nombres"`   // Given names
	Apellidos string  `json:"apellidos"` // Family names
	Direccion *string `json:"direccion"` // Optional address
	Cedula    string  `json:"cedula"`    // National ID
	Celular   string  `json:"celular"`   // Mobile phone
	Username  string  `json:"username"`  // Desired username
	Password  string  `json:"password"`  // Plain password, hashed before storage
	Email     string  `json:"email"`     // Contact email
}

// MessageResponse is a bare confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		token, _, err := svc.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			middleware.AbortWithError(c, err) // 401 for bad credentials
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, LoginResponse{Message: "Login successful", Token: token})
	}
}

// LogoutHandler confirms a valid credential. Credentials are stateless, so
// the client discards the token.
func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, MessageResponse{Message: "Logout successful. Please discard the token."})
	}
}

// RegisterHandler registers a new client with account and credit card
func RegisterHandler(svc *registration.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Field rules are checked by the registration service
		if err := c.ShouldBindJSON(&req); err != nil {
			// Malformed JSON
			middleware.AbortWithError(c, domain.Wrap(domain.ErrInvalidRequest, err))
			return
		}
		_, err := svc.Register(c.Request.Context(), registration.Request{
			FirstNames: req.Nombres,
			LastNames:  req.Apellidos,
			Address:    req.Direccion,
			NationalID: req.Cedula,
			Phone:      req.Celular,
			Username:   req.Username,
			Password:   req.Password,
			Email:      req.Email,
			RemoteIP:   c.ClientIP(),
		})
		if err != nil {
			middleware.AbortWithError(c, err) // 400 validation, 409 duplicate
			return
		}
		// Return success response
		c.JSON(http.StatusCreated, MessageResponse{Message: "Client registered successfully"})
	}
}
