package pubhost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const userColumns = `id, email, name, password_hash, customer_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (User, error) {
	var u User
	var created int64
	if err := r.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CustomerID, &created); err != nil {
		return User{}, err
	}
	u.CreatedAt = fromUnixNano(created)
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, name, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:           newID(),
		Email:        normalizeEmail(email),
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.CustomerID, unixNano(u.CreatedAt))
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser returns a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return User{}, notFound("get user", err)
	}
	return u, nil
}

// GetUserByEmail returns a user by email (case-insensitive).
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
	if err != nil {
		return User{}, notFound("get user by email", err)
	}
	return u, nil
}

// GetUserByCustomerID returns the user linked to a payment provider customer.
func (s *Store) GetUserByCustomerID(ctx context.Context, customerID string) (User, error) {
	if customerID == "" {
		return User{}, ErrNotFound
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = ?`, customerID))
	if err != nil {
		return User{}, notFound("get user by customer", err)
	}
	return u, nil
}

// Authenticate checks email and password. Unknown emails and wrong
// passwords both return ErrInvalidCredentials.
func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

// SetCustomerID links a user to a payment provider customer.
func (s *Store) SetCustomerID(ctx context.Context, userID, customerID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET customer_id = ? WHERE id = ?`, customerID, userID)
	if err != nil {
		return fmt.Errorf("update customer id: %w", err)
	}
	return requireAffected(res)
}

// UpsertSubscription stores the latest known state of a user's subscription.
func (s *Store) UpsertSubscription(ctx context.Context, sub Subscription) error {
	sub.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO subscriptions
		(id, user_id, status, plan_id, interval, current_period_start, current_period_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			id = excluded.id,
			status = excluded.status,
			plan_id = excluded.plan_id,
			interval = excluded.interval,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			updated_at = excluded.updated_at`,
		sub.ID, sub.UserID, sub.Status, sub.PlanID, sub.Interval,
		unixNano(sub.CurrentPeriodStart), unixNano(sub.CurrentPeriodEnd), unixNano(sub.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription returns the subscription of a user, or ErrNotFound.
func (s *Store) GetSubscription(ctx context.Context, userID string) (*Subscription, error) {
	var sub Subscription
	var start, end, updated int64
	err := s.db.QueryRowContext(ctx, `SELECT id, user_id, status, plan_id, interval,
		current_period_start, current_period_end, updated_at FROM subscriptions WHERE user_id = ?`, userID).
		Scan(&sub.ID, &sub.UserID, &sub.Status, &sub.PlanID, &sub.Interval, &start, &end, &updated)
	if err != nil {
		return nil, notFound("get subscription", err)
	}
	sub.CurrentPeriodStart = fromUnixNano(start)
	sub.CurrentPeriodEnd = fromUnixNano(end)
	sub.UpdatedAt = fromUnixNano(updated)
	return &sub, nil
}
