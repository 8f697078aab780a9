package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/RaviShinde19/StackIt/internal/apperr"
	"github.com/RaviShinde19/StackIt/internal/models"
	"github.com/RaviShinde19/StackIt/internal/store"
	"github.com/RaviShinde19/StackIt/internal/token"
	"github.com/RaviShinde19/StackIt/internal/validate"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	SetProfilePicURL(ctx context.Context, id, url string) error
	SetPassword(ctx context.Context, id, hashed string) error
	UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error)
}

// Sessions is the refresh-session registry.
type Sessions interface {
	Create(ctx context.Context, userID, sid string, ttl time.Duration) error
	Lookup(ctx context.Context, sid string) (string, error)
	RevokeUser(ctx context.Context, userID string) error
}

// FileStore defines the interface for profile picture storage.
type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, string, int64, error)
	Remove(ctx context.Context, key string) error
}

// Upload is an optional profile picture sent with registration.
type Upload struct {
	Reader      io.Reader
	Size        int64
	ContentType string
}

// Service implements account registration and token lifecycle.
type Service struct {
	users    UserStore
	sessions Sessions
	tokens   *token.Service
	files    FileStore
	log      *zap.Logger
	hashCost int
}

func NewService(users UserStore, sessions Sessions, tokens *token.Service, files FileStore, log *zap.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		files:    files,
		log:      log,
		hashCost: bcrypt.DefaultCost,
	}
}

// SetHashCost sets the bcrypt cost used for new password hashes.
func (s *Service) SetHashCost(cost int) {
	s.hashCost = min(max(cost, bcrypt.MinCost), bcrypt.MaxCost)
}

func avatarKey(userID string) string { return "avatars/" + userID }

// AvatarURL is the public path a stored profile picture is served from.
func AvatarURL(userID string) string { return "/api/v1/users/" + userID + "/avatar" }

// Register validates req, creates the user and stores the optional picture.
// A failed picture upload is logged and does not fail the registration.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest, pic *Upload) (*models.User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)

	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if pic != nil && !strings.HasPrefix(pic.ContentType, "image/") {
		return nil, apperr.Validation("profile picture must be an image")
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Username:        req.Username,
		Email:           req.Email,
		Password:        string(hashed),
		Phone:           req.Phone,
		Role:            models.RoleUser,
		IsTermsAccepted: req.IsTermsAccepted,
	})
	if err != nil {
		return nil, userStoreError(err)
	}

	if pic != nil && s.files != nil {
		if err := s.files.Upload(ctx, avatarKey(user.ID), pic.Reader, pic.Size, pic.ContentType); err != nil {
			s.log.Warn("profile picture upload failed", zap.String("user_id", user.ID), zap.Error(err))
		} else if err := s.users.SetProfilePicURL(ctx, user.ID, AvatarURL(user.ID)); err != nil {
			s.log.Warn("profile picture url update failed", zap.String("user_id", user.ID), zap.Error(err))
			if err := s.files.Remove(ctx, avatarKey(user.ID)); err != nil {
				s.log.Warn("orphaned profile picture", zap.String("user_id", user.ID), zap.Error(err))
			}
		} else {
			user.ProfilePicURL = AvatarURL(user.ID)
		}
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login checks credentials and issues a fresh token pair, replacing the
// user's stored refresh token and session.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var (
		user *models.User
		err  error
	)
	if req.Username != "" {
		user, err = s.users.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	} else {
		user, err = s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}
	if user.IsBanned {
		return nil, apperr.Forbidden("account is banned")
	}

	return s.issue(ctx, user)
}

// Refresh rotates the token pair. The presented token must be the user's
// stored refresh token and its session must still be live.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*models.LoginResponse, error) {
	if refreshToken == "" {
		return nil, apperr.Unauthorized("refresh token is required")
	}
	claims, err := s.tokens.Verify(refreshToken, token.Refresh)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.KindUnauthorized, "invalid refresh token")
	}

	user, err := s.users.GetUserByID(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if user.RefreshToken == "" || user.RefreshToken != refreshToken {
		return nil, apperr.Unauthorized("refresh token is expired or used")
	}
	uid, err := s.sessions.Lookup(ctx, claims.SessionID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if uid != user.ID {
		return nil, apperr.Unauthorized("refresh token is expired or used")
	}
	if user.IsBanned {
		return nil, apperr.Forbidden("account is banned")
	}

	return s.issue(ctx, user)
}

func (s *Service) issue(ctx context.Context, user *models.User) (*models.LoginResponse, error) {
	pair, err := s.tokens.Issue(token.Identity{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		Role:     user.Role,
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, apperr.Internal(fmt.Errorf("store refresh token: %w", err))
	}
	if err := s.sessions.Create(ctx, user.ID, pair.SessionID, s.tokens.RefreshTTL()); err != nil {
		return nil, apperr.Internal(fmt.Errorf("create session: %w", err))
	}
	user.RefreshToken = pair.RefreshToken
	return &models.LoginResponse{User: user, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}, nil
}

// Logout revokes the user's refresh token. Access tokens stay valid until
// they expire.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil && !errors.Is(err, store.ErrNotFound) {
		return apperr.Internal(err)
	}
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	for _, f := range []*string{req.FirstName, req.LastName, req.Phone} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	user, err := s.users.UpdateProfile(ctx, userID, req)
	if err != nil {
		return nil, userStoreError(err)
	}
	return user, nil
}

// userStoreError maps credential store failures on user writes.
func userStoreError(err error) error {
	var dup *store.DuplicateError
	switch {
	case errors.As(err, &dup):
		return apperr.Wrap(err, apperr.KindConflict, dup.Field+" is already in use")
	case errors.Is(err, store.ErrValueTooLong):
		return apperr.Wrap(err, apperr.KindValidation, "a field exceeds its maximum length")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("user not found")
	default:
		return apperr.Internal(err)
	}
}

func (s *Service) hash(password string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Wrap(err, apperr.KindValidation, "password must be at most 72 bytes")
	}
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	return hashed, nil
}

// ChangePassword replaces the password and logs the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		return apperr.Unauthorized("old password is incorrect")
	}
	hashed, err := s.hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, userID, string(hashed)); err != nil {
		return apperr.Internal(err)
	}
	return s.Logout(ctx, userID)
}

// Avatar opens the stored profile picture of userID.
func (s *Service) Avatar(ctx context.Context, userID string) (io.ReadCloser, string, int64, error) {
	user, err := s.Me(ctx, userID)
	if err != nil {
		return nil, "", 0, err
	}
	if user.ProfilePicURL == "" || s.files == nil {
		return nil, "", 0, apperr.NotFound("no profile picture")
	}
	rc, ct, size, err := s.files.Open(ctx, avatarKey(userID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", 0, apperr.NotFound("no profile picture")
	}
	if err != nil {
		return nil, "", 0, apperr.Internal(err)
	}
	return rc, ct, size, nil
}
