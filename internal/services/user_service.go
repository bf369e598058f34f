package services

import (
	"context"
	"database/sql"

	"usmleapp/internal/config"
	"usmleapp/internal/models"
	"usmleapp/internal/observability"
	contextutils "usmleapp/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	CreateUser(ctx context.Context, username, email, password string, isAdmin bool) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int, password string) error
	UpdateLastActive(ctx context.Context, userID int) error
	EnsureAdminUser(ctx context.Context) error
}

// UserService provides account lookup and credential verification. The full
// auth stack (magic links, SSO) lives outside this service; it only needs to
// back the session login.
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

// NewUserService creates a new user service
func NewUserService(db *sql.DB, cfg *config.Config, logger *observability.Logger) *UserService {
	return &UserService{db: db, cfg: cfg, logger: logger}
}

const userSelectFields = "id, username, email, password_hash, is_admin, last_active, created_at, updated_at"

func (s *UserService) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.LastActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to scan user")
	}
	return user, nil
}

// GetUserByID retrieves a user by id, nil when absent
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userSelectFields+" FROM users WHERE id = $1", id))
}

// GetUserByUsername retrieves a user by username, nil when absent
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username",
		attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userSelectFields+" FROM users WHERE username = $1", username))
}

// GetAllUsers returns every account ordered by id. Used by the admin CLI.
func (s *UserService) GetAllUsers(ctx context.Context) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_all_users")
	defer observability.FinishSpan(span, &err)

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userSelectFields+" FROM users ORDER BY id")
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to query users")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var users []models.User
	for rows.Next() {
		var user models.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.IsAdmin,
			&user.LastActive,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, contextutils.WrapError(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapError(err, "failed to iterate users")
	}
	return users, nil
}

// AuthenticateUser verifies the username/password pair. Failures all map to
// ErrInvalidCredentials so the response does not leak which part was wrong.
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user",
		attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)); err != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	return user, nil
}

// CreateUser inserts a new account with a bcrypt password hash
func (s *UserService) CreateUser(ctx context.Context, username, email, password string, isAdmin bool) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "create_user",
		attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	if username == "" || password == "" {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeMissingRequired, contextutils.SeverityWarn,
			"Username and password are required", "")
	}
	if email != "" && !contextutils.IsValidEmail(email) {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeInvalidFormat, contextutils.SeverityWarn,
			"Invalid email address", email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to hash password")
	}

	user := &models.User{Username: username, IsAdmin: isAdmin}
	var emailArg interface{}
	if email != "" {
		emailArg = email
		user.Email = sql.NullString{String: email, Valid: true}
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password_hash, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		username, emailArg, string(hash), isAdmin,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to insert user")
	}

	s.logger.Info(ctx, "User created", map[string]interface{}{
		"user_id":  user.ID,
		"username": username,
		"is_admin": isAdmin,
	})
	return user, nil
}

// UpdatePassword replaces the stored password hash
func (s *UserService) UpdatePassword(ctx context.Context, userID int, password string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_password",
		observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return contextutils.WrapError(err, "failed to hash password")
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2",
		string(hash), userID,
	)
	if err != nil {
		return contextutils.WrapError(err, "failed to update password")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return contextutils.WrapError(err, "failed to read rows affected")
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// UpdateLastActive stamps the user's last activity time
func (s *UserService) UpdateLastActive(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_last_active",
		observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		"UPDATE users SET last_active = NOW() WHERE id = $1", userID)
	if err != nil {
		return contextutils.WrapError(err, "failed to update last active")
	}
	return nil
}

// EnsureAdminUser creates the configured admin account if it does not exist
func (s *UserService) EnsureAdminUser(ctx context.Context) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "ensure_admin_user")
	defer observability.FinishSpan(span, &err)

	username := s.cfg.Server.AdminUsername
	password := s.cfg.Server.AdminPassword
	if username == "" || password == "" {
		s.logger.Warn(ctx, "Admin credentials not configured, skipping admin bootstrap")
		return nil
	}

	existing, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	_, err = s.CreateUser(ctx, username, "", password, true)
	return err
}
