// Package reservation is the reservation lifecycle engine: borrow, return and
// renewal state machines, interval conflict detection, and the transactional
// rules keeping request state and device status consistent.
package reservation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service is the façade the HTTP layer and any other client call.
type Service struct {
	coord    *Coordinator
	notifier Notifier
	auditor  Auditor
	log      *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	hooksMu sync.Mutex
	closed  bool
	hooks   sync.WaitGroup
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithAuditor(a Auditor) Option   { return func(s *Service) { s.auditor = a } }
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now, which decides "today" for date checks.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(coord *Coordinator, opts ...Option) *Service {
	s := &Service{
		coord:    coord,
		notifier: nopNotifier,
		auditor:  nopAuditor,
		log:      slog.Default(),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) today() time.Time { return DateOf(s.now()) }

func (s *Service) check(cmd any) error {
	err := s.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return validationErr("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		return validationErr("%s failed %s", fe.Field(), fe.Tag())
	}
	return validationErr("%v", err)
}

func newID() string { return uuid.NewString() }

func ptr[T any](v T) *T { return &v }

func dateString(t time.Time) string { return t.Format(time.DateOnly) }

func describe(format string, args ...any) string { return fmt.Sprintf(format, args...) }
