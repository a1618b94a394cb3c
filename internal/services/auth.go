package services

import (
	"errors"
	"time"

	"github.com/huangang/ticketflow/backend/internal/config"
	"github.com/huangang/ticketflow/backend/internal/models"
	"github.com/huangang/ticketflow/backend/internal/utils"
	"github.com/huangang/ticketflow/backend/pkg/logger"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{db: db, jwtConfig: jwtCfg}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token    string       `json:"token"`
	User     *models.User `json:"user"`
	ExpireAt time.Time    `json:"expire_at"`
}

// Login authenticates a local user and returns a JWT token
func (s *AuthService) Login(req *LoginRequest) (*LoginResponse, error) {
	var user models.User
	if err := s.db.Where("username = ? AND is_active = ?", req.Username, true).First(&user).Error; err != nil {
		return nil, errors.New("invalid username or password")
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		LogWarning("auth", "login_failed", "invalid password for "+req.Username, nil)
		return nil, errors.New("invalid username or password")
	}

	expireHours := s.jwtConfig.ExpireHour
	if expireHours <= 0 {
		expireHours = 24
	}

	token, err := utils.GenerateToken(user.ID, user.Username, user.Role, expireHours)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Model(&user).Update("last_login", now)

	return &LoginResponse{
		Token:    token,
		User:     &user,
		ExpireAt: now.Add(time.Duration(expireHours) * time.Hour),
	}, nil
}

// GetUserByID returns a user by id.
func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureAdminUser creates the default admin account when no user exists.
func (s *AuthService) EnsureAdminUser() error {
	var count int64
	if err := s.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword("admin123")
	if err != nil {
		return err
	}

	admin := models.User{
		Username: "admin",
		Password: hash,
		Role:     "admin",
		IsActive: true,
	}
	if err := s.db.Create(&admin).Error; err != nil {
		return err
	}

	logger.Warnf("[Auth] Created default admin user with default password, change it immediately")
	return nil
}
