// Package registration creates new cliente users. Input is fully validated
// before the store is touched, and the user, client profile, account and
// credit card rows are inserted in one transaction.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"core_bank/internal/auth"
	"core_bank/internal/domain"
	"core_bank/internal/metrics"
	"core_bank/internal/store"
	"core_bank/internal/validation"
)

// DefaultCreditLimit is the credit line granted at registration.
var DefaultCreditLimit = decimal.NewFromInt(500)

// Request is a client registration.
type Request struct {
	FirstNames string  `validate:"required,max=255"`       // nombres
	LastNames  string  `validate:"required,max=255"`       // apellidos
	Address    *string `validate:"omitempty,max=255"`      // direccion, optional
	NationalID string  `validate:"required"`               // cedula
	Phone      string  `validate:"required"`               // celular
	Username   string  `validate:"required,max=64"`        // Login name
	Password   string  `validate:"required"`               // Byte limit checked with the policy
	Email      string  `validate:"required,email,max=255"` // Contact email
	RemoteIP   string  `validate:"max=45"`                 // Source address
}

// Service registers clients.
type Service struct {
	store       store.Store
	creditLimit decimal.Decimal
	validate    *validator.Validate
	log         logrus.FieldLogger
}

// NewService builds a Service. A non-positive creditLimit falls back to
// DefaultCreditLimit.
func NewService(s store.Store, creditLimit decimal.Decimal, log logrus.FieldLogger) *Service {
	if !creditLimit.IsPositive() {
		creditLimit = DefaultCreditLimit
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: s, creditLimit: creditLimit, validate: validator.New(), log: log}
}

// Register validates req and creates the user with a zero-balance account and
// a credit card at the default limit.
func (s *Service) Register(ctx context.Context, req Request) (*domain.User, error) {
	req = normalize(req)
	if err := s.check(req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues(metrics.Result(err)).Inc()
		s.log.WithFields(logrus.Fields{
			"username": req.Username,
			"cedula":   req.NationalID,
			"celular":  req.Phone,
		}).WithError(err).Warn("Registration rejected")
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, s.fail(req, err)
	}

	user := &domain.User{
		Username: req.Username,
		Password: hash,
		Role:     domain.RoleClient,
		FullName: req.FirstNames + " " + req.LastNames,
		Email:    req.Email,
	}
	err = s.store.Transact(ctx, func(tx store.Tx) error {
		if err := tx.CreateUser(user); err != nil {
			return err
		}
		if err := tx.CreateClient(&domain.Client{
			UserID:         user.ID,
			FirstNames:     req.FirstNames,
			LastNames:      req.LastNames,
			Address:        req.Address,
			NationalID:     req.NationalID,
			Phone:          req.Phone,
			RegistrationIP: req.RemoteIP,
		}); err != nil {
			return err
		}
		if err := tx.CreateAccount(&domain.Account{UserID: user.ID, Balance: decimal.Zero}); err != nil {
			return err
		}
		return tx.CreateCreditCard(&domain.CreditCard{UserID: user.ID, Limit: s.creditLimit, Debt: decimal.Zero})
	})
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, s.fail(req, domain.Wrap(domain.ErrDuplicateUser, err))
	case err != nil:
		return nil, s.fail(req, domain.Internal(err))
	}

	metrics.RegistrationsTotal.WithLabelValues("ok").Inc()
	s.log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
		"cedula":   req.NationalID,
	}).Info("Client registered")
	return user, nil
}

// check runs the shape checks, then the identity rules in the order a
// caller would fix them.
func (s *Service) check(req Request) error {
	if err := s.validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return domain.Wrap(domain.ErrInvalidRequest, err)
		}
		msgs := make([]string, 0, len(ve))
		for _, fe := range ve {
			msgs = append(msgs, fieldError(fe))
		}
		e := domain.Wrap(domain.ErrInvalidRequest, err)
		e.Message = strings.Join(msgs, "; ")
		return e
	}
	switch {
	case !validation.NationalID(req.NationalID):
		return domain.ErrInvalidNationalID
	case !validation.Phone(req.Phone):
		return domain.ErrInvalidPhone
	case !validation.Username(req.Username, req.FirstNames, req.LastNames):
		return domain.ErrInvalidUsername
	case len(req.Password) > auth.MaxPasswordBytes,
		!validation.Password(req.Password, req.FirstNames, req.LastNames, req.NationalID):
		return domain.ErrWeakPassword
	}
	return nil
}

func (s *Service) fail(req Request, err error) error {
	metrics.RegistrationsTotal.WithLabelValues(metrics.Result(err)).Inc()
	entry := s.log.WithField("username", req.Username).WithError(err)
	if domain.KindOf(err) == domain.KindInternal {
		entry.Error("Registration failed")
	} else {
		entry.Warn("Registration rejected")
	}
	return err
}

func normalize(req Request) Request {
	req.FirstNames = strings.TrimSpace(req.FirstNames)
	req.LastNames = strings.TrimSpace(req.LastNames)
	req.NationalID = strings.TrimSpace(req.NationalID)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Address != nil {
		addr := strings.TrimSpace(*req.Address)
		if addr == "" {
			req.Address = nil
		} else {
			req.Address = &addr
		}
	}
	return req
}

// fieldError renders one validation failure for the caller.
func fieldError(fe validator.FieldError) string {
	field := jsonNames[fe.Field()]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

var jsonNames = map[string]string{
	"FirstNames": "nombres",
	"LastNames":  "apellidos",
	"Address":    "direccion",
	"NationalID": "cedula",
	"Phone":      "celular",
	"Username":   "username",
	"Password":   "password",
	"Email":      "email",
	"RemoteIP":   "ip",
}
