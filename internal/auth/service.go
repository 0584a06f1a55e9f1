package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"core_bank/internal/domain"
	"core_bank/internal/metrics"
	"core_bank/internal/store"
)

// Service authenticates users against the store.
type Service struct {
	store  store.Store
	tokens *Tokens
	log    logrus.FieldLogger
	dummy  []byte // Compared against when the username is unknown
}

// NewService builds a Service.
func NewService(s store.Store, tokens *Tokens, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return &Service{store: s, tokens: tokens, log: log, dummy: dummy}
}

// Tokens returns the credential issuer the service signs with.
func (s *Service) Tokens() *Tokens { return s.tokens }

// Login checks username and password and issues a credential. Unknown
// usernames and wrong passwords both yield domain.ErrInvalidCredentials after
// a full bcrypt comparison.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues(domain.ErrInvalidRequest.Code).Inc()
		return "", nil, domain.ErrInvalidRequest
	}

	user, err := s.store.UserByUsername(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		CheckPassword(s.dummy, password)
		return "", nil, s.fail(username, domain.ErrInvalidCredentials)
	case err != nil:
		return "", nil, s.fail(username, domain.Internal(err))
	}
	if !CheckPassword(user.Password, password) {
		return "", nil, s.fail(username, domain.ErrInvalidCredentials)
	}

	token, err := s.tokens.Issue(user.ID, user.Role, user.Username)
	if err != nil {
		return "", nil, s.fail(username, err)
	}
	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	s.log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"role":     user.Role,
	}).Info("User logged in")
	return token, user, nil
}

func (s *Service) fail(username string, err error) error {
	metrics.LoginsTotal.WithLabelValues(metrics.Result(err)).Inc()
	entry := s.log.WithField("username", username).WithError(err)
	if domain.KindOf(err) == domain.KindInternal {
		entry.Error("Login failed")
	} else {
		entry.Warn("Login rejected")
	}
	return err
}
