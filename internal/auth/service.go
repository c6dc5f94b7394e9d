// Package auth implements account lifecycle and token handling: admin
// pre-registration, registration completion, login with JWT issuance,
// password changes and the security-question reset flow.
package auth

import (
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/obralens/obralens/internal/conf"
	"github.com/obralens/obralens/internal/datastore"
	"github.com/obralens/obralens/internal/errors"
	"github.com/obralens/obralens/internal/logging"
	"github.com/obralens/obralens/internal/model"
)

// Claims is the JWT payload. The field names are part of the API contract
// with existing clients.
type Claims struct {
	UserID string     `json:"id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service implements authentication against the user store.
type Service struct {
	store         datastore.Interface
	secret        []byte
	tokenDuration time.Duration
	bcryptCost    int
	logger        *slog.Logger
}

// NewService creates an auth service from the security configuration.
func NewService(store datastore.Interface, cfg conf.SecurityConfig) *Service {
	return &Service{
		store:         store,
		secret:        []byte(cfg.JWTSecret),
		tokenDuration: cfg.TokenDuration,
		bcryptCost:    cfg.BcryptCost,
		logger:        logging.ForService("auth"),
	}
}

// Login verifies the credentials and returns a signed token plus the
// sanitized user. Unknown email, incomplete registration and bad password all
// collapse to the same invalid-credentials error.
func (s *Service) Login(email, password string) (string, *model.User, error) {
	user, err := s.store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return "", nil, invalidCredentials()
		}
		return "", nil, err
	}
	if !user.Registered() {
		return "", nil, invalidCredentials()
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", nil, invalidCredentials()
	}

	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	sanitized := user.Sanitized()
	return token, &sanitized, nil
}

// PreRegister creates an account with no password. The user completes
// registration later with CompleteRegistration. Admin-only at the API layer.
func (s *Service) PreRegister(email string, role model.Role) (*model.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, errors.Newf("invalid email address").
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}
	if !role.Valid() {
		return nil, errors.Newf("invalid role %q", role).
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}

	user := model.User{
		ID:    uuid.NewString(),
		Email: email,
		Role:  role,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	s.logger.Info("user pre-registered", "user_id", user.ID, "role", role)
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// CompleteRegistration sets the password and security question on a
// pre-registered account. An account that already has a password cannot be
// re-registered.
func (s *Service) CompleteRegistration(email, password, question, answer string) (*model.User, error) {
	if password == "" || question == "" || answer == "" {
		return nil, errors.Newf("password, security question and answer are required").
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}

	user, err := s.store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user.Registered() {
		return nil, errors.Newf("account already registered").
			Component("auth").
			Category(errors.CategoryConflict).
			Build()
	}

	passwordHash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	answerHash, err := s.hash(normalizeAnswer(answer))
	if err != nil {
		return nil, err
	}

	user.Password = passwordHash
	user.SecurityQuestion = question
	user.SecurityAnswer = answerHash
	if err := s.store.UpdateUser(*user); err != nil {
		return nil, err
	}

	s.logger.Info("registration completed", "user_id", user.ID)
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// ChangePassword verifies the current password and stores the new hash.
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.Newf("new password is required").
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}

	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(oldPassword)) != nil {
		return errors.Newf("current password is incorrect").
			Component("auth").
			Category(errors.CategoryAuth).
			Build()
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	user.Password = hash
	if err := s.store.UpdateUser(*user); err != nil {
		return err
	}

	s.logger.Info("password changed", "user_id", userID)
	return nil
}

// SecurityQuestion returns the user's security question. An unknown email
// returns an empty question with no error so the endpoint cannot be used to
// probe which addresses exist.
func (s *Service) SecurityQuestion(email string) (string, error) {
	user, err := s.store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return user.SecurityQuestion, nil
}

// ResetPassword sets a new password after verifying the security answer.
func (s *Service) ResetPassword(email, answer, newPassword string) error {
	if newPassword == "" {
		return errors.Newf("new password is required").
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}

	user, err := s.store.GetUserByEmail(normalizeEmail(email))
	if err != nil {
		if errors.IsNotFound(err) {
			return invalidSecurityAnswer()
		}
		return err
	}
	if user.SecurityAnswer == "" {
		return invalidSecurityAnswer()
	}
	if bcrypt.CompareHashAndPassword([]byte(user.SecurityAnswer), []byte(normalizeAnswer(answer))) != nil {
		return invalidSecurityAnswer()
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	user.Password = hash
	if err := s.store.UpdateUser(*user); err != nil {
		return err
	}

	s.logger.Info("password reset via security question", "user_id", user.ID)
	return nil
}

// ValidateToken parses and verifies a signed token, returning its claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Newf("invalid token: %w", err).
			Component("auth").
			Category(errors.CategoryAuth).
			Build()
	}
	return claims, nil
}

func (s *Service) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Newf("signing token: %w", err).
			Component("auth").
			Category(errors.CategoryAuth).
			Build()
	}
	return signed, nil
}

func (s *Service) hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), s.bcryptCost)
	if err != nil {
		return "", errors.Newf("hashing password: %w", err).
			Component("auth").
			Category(errors.CategoryGeneric).
			Build()
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeAnswer makes security answers case- and whitespace-insensitive.
func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func invalidCredentials() error {
	return errors.Newf("invalid email or password").
		Component("auth").
		Category(errors.CategoryAuth).
		Build()
}

func invalidSecurityAnswer() error {
	return errors.Newf("security answer verification failed").
		Component("auth").
		Category(errors.CategoryAuth).
		Build()
}
