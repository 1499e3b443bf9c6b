package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/wenwu/saas-platform/odoo-admin-service/internal/errors"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/logger"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/models"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/policy"
	"github.com/wenwu/saas-platform/odoo-admin-service/internal/repository"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, f models.UserFilter) ([]*models.User, error)
	UpdateProfile(ctx context.Context, p *models.UserProfile) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

type ActivityStore interface {
	ActivityRecorder
	List(ctx context.Context, f models.ActivityLogFilter) ([]*models.ActivityLog, error)
}

var errBadCredentials = apperrors.NewUnauthorizedError("用户名或密码错误")

// UserService handles operator accounts, login and the activity trail
type UserService struct {
	tx        TxRunner
	repo      UserStore
	activity  ActivityStore
	jwtSecret []byte
	tokenTTL  time.Duration
	now       Clock
	log       *slog.Logger
}

func NewUserService(tx TxRunner, repo UserStore, activity ActivityStore, jwtSecret string, tokenTTL time.Duration) *UserService {
	return &UserService{
		tx:        tx,
		repo:      repo,
		activity:  activity,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
		log:       logger.WithComponent("user"),
	}
}

// Login checks credentials and issues a signed session token
func (s *UserService) Login(ctx context.Context, req *models.LoginRequest, meta models.RequestMeta) (*models.LoginResponse, error) {
	u, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, errBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Info("login rejected", "username", req.Username, "ip", meta.IPAddress)
		return nil, errBadCredentials
	}

	now := s.now()
	token, expiresAt, err := s.issueToken(u.ID, now)
	if err != nil {
		return nil, err
	}

	meta.UserID = u.ID
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateLastLogin(ctx, u.ID, now); err != nil {
			return err
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityLogin, "User", u.ID, "用户登录")
	})
	if err != nil {
		return nil, err
	}
	u.LastLogin = &now

	return &models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      models.NewCurrentUserResponse(u),
	}, nil
}

// issueToken signs an HS256 token carrying uid/sub claims
func (s *UserService) issueToken(userID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"uid": userID,
		"sub": userID,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expiresAt, nil
}

// Logout only records the event; tokens expire on their own.
func (s *UserService) Logout(ctx context.Context, meta models.RequestMeta) error {
	return recordActivity(ctx, s.activity, meta, models.ActivityLogout, "User", meta.UserID, "用户登出")
}

// Authenticate loads the account behind a verified token
func (s *UserService) Authenticate(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorizedError("invalid token")
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, apperrors.NewUnauthorizedError("account disabled")
	}
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "用户不存在")
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context, f models.UserFilter) ([]*models.User, error) {
	return s.repo.List(ctx, f)
}

// Create adds an operator account with its profile
func (s *UserService) Create(ctx context.Context, req *models.UserCreateRequest, meta models.RequestMeta) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		IsActive:     true,
		IsSuperuser:  req.IsSuperuser,
	}
	req.Profile.Apply(&u.Profile)

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, u); err != nil {
			if apperrors.IsUniqueViolation(err) {
				return apperrors.NewConflictError("用户名已存在", "username")
			}
			return err
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityCreateUser,
			"User", u.ID, fmt.Sprintf("创建用户: %s", u.Username))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user created", "id", u.ID, "username", u.Username, "role", u.Profile.Role)
	return u, nil
}

// UpdateProfile edits the profile of targetID. Admins may edit anyone; other
// users may edit their own contact fields but not their role or flags.
func (s *UserService) UpdateProfile(ctx context.Context, actor policy.Actor, targetID string, req *models.ProfileRequest, meta models.RequestMeta) (*models.User, error) {
	if !actor.IsAdmin() && actor.UserID != targetID {
		return nil, apperrors.NewForbiddenError("没有权限修改此用户资料")
	}

	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && privilegesChanged(u.Profile, req) {
		return nil, apperrors.NewForbiddenError("没有权限修改角色或权限")
	}

	req.Apply(&u.Profile)
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateProfile(ctx, &u.Profile); err != nil {
			return notFound(err, "用户不存在")
		}
		return recordActivity(ctx, s.activity, meta, models.ActivityUpdateProfile,
			"User", u.ID, fmt.Sprintf("更新用户资料: %s", u.Username))
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func privilegesChanged(p models.UserProfile, req *models.ProfileRequest) bool {
	return p.Role != req.Role ||
		p.CanManageCustomers != req.CanManageCustomers ||
		p.CanManageEnvironments != req.CanManageEnvironments ||
		p.CanViewLogs != req.CanViewLogs ||
		p.CanGenerateLicenses != req.CanGenerateLicenses
}

func (s *UserService) ListActivity(ctx context.Context, f models.ActivityLogFilter) ([]*models.ActivityLog, error) {
	return s.activity.List(ctx, f)
}

// EnsureAdmin creates a superuser account when the username is free. It
// reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	_, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	req := models.NewUserCreateRequest()
	req.Username = username
	req.Email = email
	req.Password = password
	req.IsSuperuser = true
	req.Profile.Role = models.RoleAdmin
	req.Profile.CanManageCustomers = true
	req.Profile.CanManageEnvironments = true
	req.Profile.CanGenerateLicenses = true

	if _, err := s.Create(ctx, &req, models.RequestMeta{}); err != nil {
		return false, err
	}
	return true, nil
}
