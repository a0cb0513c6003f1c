package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"barberia-backend/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidUser        = errors.New("invalid user")
	ErrCannotDeleteSelf   = errors.New("cannot delete own user")
)

type LoginResult struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Principal models.Principal `json:"usuario"`
}

type NewUser struct {
	Username    string
	Name        string
	Email       string
	Password    string
	Role        string
	Permissions []string
	Specialist  string
}

type Service struct {
	users    UserRepository
	sessions SessionRepository
	tokens   *Manager
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewService(users UserRepository, sessions SessionRepository, tokens *Manager, ttl time.Duration, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// Login checks the credentials and opens a new session. Unknown users,
// inactive users and wrong passwords all fail with ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = models.NormalizeUsername(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if !user.Active {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := ComparePassword(user.PasswordHash, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	session := models.Session{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Username:    user.Username,
		Name:        user.Name,
		Role:        user.Role,
		Permissions: user.Permissions,
		Specialist:  user.Specialist,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
		Active:      true,
	}
	if err := s.sessions.InsertSession(ctx, session); err != nil {
		return LoginResult{}, err
	}

	token, err := s.tokens.NewSessionToken(session.ID, session.Username, session.Role, now, session.ExpiresAt)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
		Principal: PrincipalOf(session),
	}, nil
}

// Validate resolves a token to its principal. Expired sessions are
// deactivated as a side effect.
func (s *Service) Validate(ctx context.Context, token string) (models.Principal, error) {
	session, err := s.session(ctx, token)
	if err != nil {
		return models.Principal{}, err
	}
	return PrincipalOf(session), nil
}

// Session returns the record behind a valid token.
func (s *Service) Session(ctx context.Context, token string) (models.Session, error) {
	return s.session(ctx, token)
}

func (s *Service) session(ctx context.Context, token string) (models.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Session{}, ErrInvalidToken
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) && claims != nil {
			s.deactivate(ctx, claims.ID)
			return models.Session{}, ErrTokenExpired
		}
		return models.Session{}, ErrInvalidToken
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Session{}, ErrInvalidToken
		}
		return models.Session{}, err
	}
	if !session.Active || session.Username != claims.Subject {
		return models.Session{}, ErrInvalidToken
	}
	if !s.now().Before(session.ExpiresAt) {
		s.deactivate(ctx, session.ID)
		return models.Session{}, ErrTokenExpired
	}
	return session, nil
}

// Logout deactivates the session behind a token. Expired tokens are accepted.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := s.tokens.Parse(strings.TrimSpace(token))
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return ErrInvalidToken
	}
	if claims == nil {
		return ErrInvalidToken
	}
	return s.sessions.DeactivateSession(ctx, claims.ID)
}

// CleanupExpired deletes expired and inactive sessions.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now())
}

func (s *Service) CreateUser(ctx context.Context, req NewUser) (models.User, error) {
	username := models.NormalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		return models.User{}, ErrInvalidUser
	}
	role, ok := models.NormalizeRole(req.Role)
	if req.Role != "" && !ok {
		return models.User{}, ErrInvalidUser
	}
	if !ok {
		role = models.RoleEmployee
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return models.User{}, err
	}

	now := s.now()
	user := models.NormalizeUser(models.User{
		ID:           primitive.NewObjectID().Hex(),
		Username:     username,
		Name:         req.Name,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Role:         role,
		Permissions:  req.Permissions,
		Specialist:   req.Specialist,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err := s.users.InsertUser(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}
	return user, nil
}

// DeleteUser removes a user and every session opened by it.
func (s *Service) DeleteUser(ctx context.Context, actor, username string) error {
	username = models.NormalizeUsername(username)
	if username == "" {
		return ErrUserNotFound
	}
	if username == models.NormalizeUsername(actor) {
		return ErrCannotDeleteSelf
	}
	if _, err := s.users.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}
		return err
	}
	removed, err := s.sessions.DeleteUserSessions(ctx, username)
	if err != nil {
		return err
	}
	s.log.Info("auth delete user: sessions removed", slog.String("username", username), slog.Int64("sessions", removed))
	return nil
}

func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *Service) deactivate(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := s.sessions.DeactivateSession(ctx, id); err != nil {
		s.log.Warn("auth validate: deactivate failed", slog.String("session_id", id), slog.String("error", err.Error()))
	}
}

// PrincipalOf projects a session onto the caller identity exposed to clients.
func PrincipalOf(s models.Session) models.Principal {
	return models.Principal{
		Username:    s.Username,
		Name:        s.Name,
		Role:        s.Role,
		Permissions: s.Permissions,
		Specialist:  s.Specialist,
	}
}
