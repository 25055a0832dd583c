package handlers

import (
	"errors"
	"time"

	"newsportal/internal/middleware"
	"newsportal/internal/models"
	"newsportal/internal/services"
	"newsportal/pkg/jwt"
	"newsportal/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	userService *services.UserService
	jwtManager  *jwt.JWTManager
}

func NewAuthHandler(userService *services.UserService, jwtManager *jwt.JWTManager) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtManager:  jwtManager,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=50"`
	Name     string `json:"name" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt int64        `json:"expires_at"`
	User      *models.User `json:"user"`
}

type MeResponse struct {
	User        *models.User `json:"user"`
	Roles       []string     `json:"roles"`
	Permissions []string     `json:"permissions"`
}

// Register 用户注册
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.Name)
	if err != nil {
		respondError(c, err, "注册失败")
		return
	}
	response.SuccessWithMessage(c, "注册成功", user)
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUnauthenticated) {
			response.Unauthorized(c, "用户名或密码错误")
			return
		}
		respondError(c, err, "登录失败")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		respondError(c, err, "生成Token失败")
		return
	}

	response.Success(c, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		User:      user,
	})
}

// Me 当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	principal := middleware.GetPrincipal(c)
	if principal == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), principal.ID)
	if err != nil {
		respondError(c, err, "查询用户失败")
		return
	}
	perms, err := h.userService.ResolvePermissions(c.Request.Context(), principal.ID)
	if err != nil {
		respondError(c, err, "查询权限失败")
		return
	}

	response.Success(c, MeResponse{
		User:        user,
		Roles:       principal.RoleSlugs(),
		Permissions: perms.Slugs(),
	})
}
