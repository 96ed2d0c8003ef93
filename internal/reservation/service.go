package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"foyer-backend/internal/metrics"
	"foyer-backend/internal/model"
	"foyer-backend/internal/store"
)

// Repository is the data access the engine needs. Lookups report a missing
// record with store.ErrNotFound; SaveReservation reports a lost optimistic
// update with store.ErrConflict and an existing identifier with
// store.ErrDuplicateKey.
type Repository interface {
	FindBlocByID(ctx context.Context, blocID int64) (*model.Bloc, error)
	FindStudentByCIN(ctx context.Context, cin string) (*model.Student, error)
	FindReservationForBloc(ctx context.Context, blocID int64, year int) (*model.Reservation, error)
	FindReservationForStudentAndYear(ctx context.Context, cin string, year int) (*model.Reservation, error)
	FindRoomForReservation(ctx context.Context, reservationID string) (*model.Room, error)
	FindAvailableRoomForBloc(ctx context.Context, blocID int64, year int) (*model.Room, error)
	SaveReservation(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id string) error
}

// Dispatcher is told about blocs where a place was released.
type Dispatcher interface {
	Dispatch(blocID int64)
}

// Option configures a Service.
type Option func(*Service)

// WithPolicy replaces the default CapacityPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMaxAttempts bounds how many times an operation is run after losing an
// update race, and how many identifier suffixes are tried.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithDispatcher registers the receiver of place-released events.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) { s.dispatcher = d }
}

// Service allocates students to reservations and cancels them.
type Service struct {
	repo        Repository
	policy      Policy
	maxAttempts int
	dispatcher  Dispatcher
	log         *zap.Logger
}

// NewService creates a reservation engine over repo.
func NewService(repo Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		policy:      CapacityPolicy,
		maxAttempts: 3,
		log:         log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate places the student in the open reservation of the bloc for the
// academic year of asOf, creating one on a free room when none is open.
func (s *Service) Allocate(ctx context.Context, blocID int64, cin string, asOf time.Time) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.withRetry(ctx, "allocate", func() error {
		var err error
		res, err = s.allocate(ctx, blocID, cin, asOf)
		return err
	})
	metrics.Allocations.WithLabelValues(Outcome(err)).Inc()
	if err != nil {
		s.log.Info("allocation refused",
			zap.Int64("bloc_id", blocID),
			zap.String("cin", cin),
			zap.String("outcome", Outcome(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("student allocated",
		zap.String("reservation_id", res.ID),
		zap.Int64("bloc_id", blocID),
		zap.String("cin", cin),
		zap.Int("occupants", res.Occupants()),
		zap.Bool("valid", res.Valid),
	)
	return res, nil
}

func (s *Service) allocate(ctx context.Context, blocID int64, cin string, asOf time.Time) (*model.Reservation, error) {
	year := asOf.Year()

	bloc, err := s.repo.FindBlocByID(ctx, blocID)
	if err != nil {
		return nil, notFound("bloc", blocID, err)
	}
	student, err := s.repo.FindStudentByCIN(ctx, cin)
	if err != nil {
		return nil, notFound("student", cin, err)
	}

	open, err := s.repo.FindReservationForBloc(ctx, bloc.ID, year)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	held, err := s.repo.FindReservationForStudentAndYear(ctx, cin, year)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, err
	case open == nil || held.ID != open.ID:
		return nil, fmt.Errorf("student %q holds %q: %w", cin, held.ID, ErrAlreadyReserved)
	}

	if open != nil {
		return s.join(ctx, open, student)
	}
	return s.open(ctx, bloc, student, asOf)
}

// join adds the student to an existing open reservation.
func (s *Service) join(ctx context.Context, res *model.Reservation, student *model.Student) (*model.Reservation, error) {
	room, err := s.repo.FindRoomForReservation(ctx, res.ID)
	if err != nil {
		return nil, notFound("room of reservation", res.ID, err)
	}

	if !res.HasStudent(student.CIN) {
		if c, ok := Capacity(room.Type); ok && res.Occupants() >= c {
			return nil, fmt.Errorf("reservation %q holds %d of %d: %w", res.ID, res.Occupants(), c, ErrCapacityExceeded)
		}
		res.AddStudent(*student)
	}
	res.Valid = s.policy.Joined(room.Type, res.Occupants(), res.Valid)

	if err := s.repo.SaveReservation(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// open starts a new booking cycle on a free room of the bloc.
func (s *Service) open(ctx context.Context, bloc *model.Bloc, student *model.Student, asOf time.Time) (*model.Reservation, error) {
	room, err := s.repo.FindAvailableRoomForBloc(ctx, bloc.ID, asOf.Year())
	if err != nil {
		return nil, notFound("free room in bloc", bloc.ID, err)
	}

	res := &model.Reservation{
		RoomID:   room.ID,
		Students: []model.Student{*student},
	}
	res.SetAcademicYear(asOf)
	res.Valid = s.policy.Opened(room.Type, res.Occupants())

	base := GenerateID(room.ID, bloc.Name, asOf.Year())
	for attempt := 1; ; attempt++ {
		res.ID = withSuffix(base, attempt)
		err := s.repo.SaveReservation(ctx, res)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return nil, err
		}

		// When the id belongs to this very room a concurrent allocation
		// opened it first: start over so the student joins it. A vanished
		// owner means the id was deleted meanwhile, which also warrants a
		// fresh read.
		owner, ownerErr := s.repo.FindRoomForReservation(ctx, res.ID)
		switch {
		case errors.Is(ownerErr, store.ErrNotFound):
			return nil, fmt.Errorf("reservation %q vanished while opening room %d: %w", res.ID, room.ID, store.ErrConflict)
		case ownerErr != nil:
			return nil, fmt.Errorf("owner of reservation %q: %w", res.ID, ownerErr)
		case owner.ID == room.ID:
			return nil, fmt.Errorf("room %d opened concurrently as %q: %w", room.ID, res.ID, store.ErrConflict)
		}

		if attempt >= s.maxAttempts {
			return nil, err
		}
		metrics.Retries.WithLabelValues("duplicate_id").Inc()
		s.log.Warn("reservation id taken by another room, retrying with suffix",
			zap.String("reservation_id", res.ID),
			zap.Int64("room_id", room.ID),
			zap.Int64("owner_room_id", owner.ID),
		)
	}
}

// Cancel removes the student from the reservation they hold for the
// academic year of asOf.
func (s *Service) Cancel(ctx context.Context, cin string, asOf time.Time) (*model.Reservation, error) {
	var (
		res      *model.Reservation
		reopened bool
		blocID   int64
	)
	err := s.withRetry(ctx, "cancel", func() error {
		var err error
		res, reopened, blocID, err = s.cancel(ctx, cin, asOf)
		return err
	})
	metrics.Cancellations.WithLabelValues(Outcome(err)).Inc()
	if err != nil {
		s.log.Info("cancellation refused",
			zap.String("cin", cin),
			zap.String("outcome", Outcome(err)),
			zap.Error(err),
		)
		return nil, err
	}

	s.log.Info("reservation cancelled",
		zap.String("reservation_id", res.ID),
		zap.String("cin", cin),
		zap.Int("occupants", res.Occupants()),
		zap.Bool("valid", res.Valid),
	)
	if reopened && s.dispatcher != nil {
		s.dispatcher.Dispatch(blocID)
	}
	return res, nil
}

func (s *Service) cancel(ctx context.Context, cin string, asOf time.Time) (*model.Reservation, bool, int64, error) {
	student, err := s.repo.FindStudentByCIN(ctx, cin)
	if err != nil {
		return nil, false, 0, notFound("student", cin, err)
	}
	res, err := s.repo.FindReservationForStudentAndYear(ctx, student.CIN, asOf.Year())
	if err != nil {
		return nil, false, 0, notFound("reservation of student", cin, err)
	}
	room, err := s.repo.FindRoomForReservation(ctx, res.ID)
	if err != nil {
		return nil, false, 0, notFound("room of reservation", res.ID, err)
	}

	wasValid := res.Valid
	res.RemoveStudent(student.CIN)
	res.Valid = s.policy.Left(room.Type, res.Occupants())

	if err := s.repo.SaveReservation(ctx, res); err != nil {
		return nil, false, 0, err
	}
	return res, !wasValid && res.Valid, room.BlocID, nil
}

// Delete removes a reservation outright.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteReservation(ctx, id); err != nil {
		return notFound("reservation", id, err)
	}
	s.log.Info("reservation deleted", zap.String("reservation_id", id))
	return nil
}

// withRetry runs fn again while it loses optimistic update races.
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
		metrics.Retries.WithLabelValues("conflict").Inc()
		s.log.Warn("lost update race, retrying", zap.String("op", op), zap.Int("attempt", attempt))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return fmt.Errorf("%s: %w: %w", op, ErrConcurrentModification, err)
}
