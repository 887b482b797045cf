package server

import (
	"fmt"
	"log/slog"
	"time"

	"peloton/internal/middleware"
	"peloton/internal/models"
	"peloton/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "peloton-api"
	tokenAudience = "peloton-client"
	tokenTTL      = 7 * 24 * time.Hour
	wsTicketTTL   = 30 * time.Second
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	City     string `json:"city"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Signup handles user registration
// @Summary Register a new rider
// @Description Create an account with username, email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body signupRequest true "Signup payload"
// @Success 201 {object} authResponse
// @Failure 400 {object} models.APIResponse
// @Failure 409 {object} models.APIResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Register(c.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		City:     req.City,
	})
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		middleware.Logger.Error("token generation failed", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return models.RespondWithData(c, fiber.StatusCreated, authResponse{Token: token, User: user})
}

// Login handles user authentication
// @Summary Log in
// @Description Authenticate with email and password, returns a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Login payload"
// @Success 200 {object} authResponse
// @Failure 403 {object} models.APIResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Authenticate(c.Context(), req.Email, req.Password)
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		middleware.Logger.Error("token generation failed", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return models.RespondWithData(c, fiber.StatusOK, authResponse{Token: token, User: user})
}

// Refresh rotates the caller's token: a fresh 7-day token is issued and the
// presented one is revoked so old copies cannot accumulate.
func (s *Server) Refresh(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	user, err := s.userService.Get(c.Context(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		middleware.Logger.Error("token generation failed", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	s.blacklistCurrentToken(c)

	return models.RespondWithData(c, fiber.StatusOK, authResponse{Token: token, User: user})
}

// Logout revokes the current token by blacklisting its JTI until expiry.
func (s *Server) Logout(c *fiber.Ctx) error {
	s.blacklistCurrentToken(c)
	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{"message": "Logged out"})
}

// blacklistCurrentToken revokes the bearer token on the request, if any, by
// blacklisting its JTI in Redis until the token would have expired.
func (s *Server) blacklistCurrentToken(c *fiber.Ctx) {
	authHeader := c.Get("Authorization")
	tokenString := ""
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		tokenString = authHeader[7:]
	}
	if tokenString == "" || s.redis == nil {
		return
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return
	}

	jti, _ := claims["jti"].(string)
	exp, _ := claims["exp"].(float64)
	if jti == "" {
		return
	}
	ttl := time.Until(time.Unix(int64(exp), 0))
	if ttl <= 0 {
		return
	}
	if err := s.redis.Set(c.Context(), "blacklist:"+jti, "1", ttl).Err(); err != nil {
		middleware.Logger.Warn("token blacklist write failed",
			slog.String("error", err.Error()))
	}
}

// IssueWSTicket mints a short-lived single-use ticket for the WebSocket
// handshake. Browsers cannot set Authorization headers on WebSocket upgrades,
// so the client exchanges its JWT for a ticket and passes it as a query param.
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	if s.redis == nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(fmt.Errorf("realtime unavailable")))
	}

	ticket := uuid.New().String()
	key := fmt.Sprintf("ws_ticket:%s", ticket)
	if err := s.redis.Set(c.Context(), key, fmt.Sprintf("%d", userID), wsTicketTTL).Err(); err != nil {
		middleware.Logger.Error("ws ticket store failed", slog.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return models.RespondWithData(c, fiber.StatusOK, fiber.Map{
		"ticket":     ticket,
		"expires_in": int(wsTicketTTL.Seconds()),
	})
}

func (s *Server) generateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      fmt.Sprintf("%d", user.ID),
		"username": user.Username,
		"iss":      tokenIssuer,
		"aud":      tokenAudience,
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      generateJTI(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// generateJTI returns a unique token identifier for revocation tracking.
func generateJTI() string {
	return fmt.Sprintf("%d-%s", time.Now().Unix(), uuid.New().String()[:8])
}
