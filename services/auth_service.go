package services

import (
	"errors"
	"strings"
	"time"

	"naval-battle-server/models"
	"naval-battle-server/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService is the identity provider: registration, login and profile
// lookup. The rest of the system only ever consumes the numeric user id the
// middleware extracts from the token.
type AuthService struct {
	DB     *gorm.DB
	secret []byte
	expiry time.Duration
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{
		DB:     db,
		secret: []byte(utils.EnvStr("JWT_SECRET", "")),
		expiry: time.Duration(utils.EnvInt("JWT_EXPIRES_DAYS", 14)) * 24 * time.Hour,
	}
}

// Register creates an account with a bcrypt-hashed password. Username and
// email must both be unused.
func (s *AuthService) Register(username, email, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}

	var existing int64
	if err := s.DB.Model(&models.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&existing).Error; err != nil {
		return nil, infraErr("check existing user", err)
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, infraErr("hash password", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: string(hash),
	}
	if err := s.DB.Create(user).Error; err != nil {
		return nil, infraErr("create user", err)
	}

	log.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// Login verifies the credentials and issues an HS256 session token carrying
// the numeric user id.
func (s *AuthService) Login(email, password string) (string, *models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var user models.User
	if err := s.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, ErrInvalidCreds
		}
		return "", nil, infraErr("load user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, ErrInvalidCreds
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       user.ID,
		"username": user.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.expiry).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", nil, infraErr("sign token", err)
	}
	return signed, &user, nil
}

// Profile returns a user by id.
func (s *AuthService) Profile(userID uint) (*models.User, error) {
	var user models.User
	if err := s.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, infraErr("load user", err)
	}
	return &user, nil
}
