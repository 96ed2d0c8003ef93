package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"foyer-backend/internal/model"
	"foyer-backend/internal/store"
)

var asOf = time.Date(2024, time.October, 1, 9, 0, 0, 0, time.UTC)

func newEngine(repo Repository, opts ...Option) *Service {
	return NewService(repo, zap.NewNop(), opts...)
}

func cinsOf(r model.Reservation) []string {
	out := make([]string, 0, len(r.Students))
	for _, s := range r.Students {
		out = append(out, s.CIN)
	}
	return out
}

// campus is bloc 1 "B1" with a Triple room 5, and bloc 2 "B2" with Simple
// rooms 7 and 8.
func campus() *fakeRepo {
	repo := newFakeRepo()
	repo.addBloc(1, "B1")
	repo.addBloc(2, "B2")
	repo.addRoom(5, 1, model.RoomTriple)
	repo.addRoom(7, 2, model.RoomSimple)
	repo.addRoom(8, 2, model.RoomSimple)
	repo.addStudents("S1", "S2", "S3", "S4")
	return repo
}

func TestService_TripleRoomLifecycle(t *testing.T) {
	repo := campus()
	dispatcher := &recordingDispatcher{}
	svc := newEngine(repo, WithDispatcher(dispatcher))
	ctx := context.Background()

	steps := []struct {
		cin          string
		wantStudents []string
		wantValid    bool
	}{
		{"S1", []string{"S1"}, true},
		{"S2", []string{"S1", "S2"}, true},
		{"S3", []string{"S1", "S2", "S3"}, false},
	}
	for _, step := range steps {
		res, err := svc.Allocate(ctx, 1, step.cin, asOf)
		require.NoError(t, err, step.cin)
		assert.Equal(t, "5B12024", res.ID)
		assert.ElementsMatch(t, step.wantStudents, cinsOf(*res))
		assert.Equal(t, step.wantValid, res.Valid)

		stored := repo.stored("5B12024")
		assert.ElementsMatch(t, step.wantStudents, cinsOf(stored))
		assert.Equal(t, step.wantValid, stored.Valid)
	}

	stored := repo.stored("5B12024")
	assert.Equal(t, asOf, stored.AcademicYear)
	assert.Equal(t, 2024, stored.Year)
	assert.Equal(t, int64(3), stored.Version)

	res, err := svc.Cancel(ctx, "S2", asOf)
	require.NoError(t, err)
	assert.Equal(t, "5B12024", res.ID)
	assert.ElementsMatch(t, []string{"S1", "S3"}, cinsOf(*res))
	assert.True(t, res.Valid)
	assert.True(t, repo.stored("5B12024").Valid)
	assert.Equal(t, []int64{1}, dispatcher.blocs)

	// The freed place is offered again.
	res, err = svc.Allocate(ctx, 1, "S4", asOf)
	require.NoError(t, err)
	assert.Equal(t, "5B12024", res.ID)
	assert.ElementsMatch(t, []string{"S1", "S3", "S4"}, cinsOf(*res))
	assert.False(t, res.Valid)
}

func TestService_SimpleRoomsCloseOnFirstStudent(t *testing.T) {
	repo := campus()
	svc := newEngine(repo)
	ctx := context.Background()

	first, err := svc.Allocate(ctx, 2, "S1", asOf)
	require.NoError(t, err)
	assert.Equal(t, "7B22024", first.ID)
	assert.False(t, first.Valid)

	second, err := svc.Allocate(ctx, 2, "S2", asOf)
	require.NoError(t, err)
	assert.Equal(t, "8B22024", second.ID)
	assert.False(t, second.Valid)
	assert.Equal(t, []string{"S2"}, cinsOf(*second))

	_, err = svc.Allocate(ctx, 2, "S3", asOf)
	require.ErrorIs(t, err, store.ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "free room in bloc", nf.Entity)
	assert.Equal(t, int64(2), nf.Key)
}

func TestService_AllocateIsIdempotentForTheSameStudent(t *testing.T) {
	repo := campus()
	svc := newEngine(repo)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, 1, "S1", asOf)
	require.NoError(t, err)
	res, err := svc.Allocate(ctx, 1, "S1", asOf)
	require.NoError(t, err)

	assert.Equal(t, "5B12024", res.ID)
	assert.Equal(t, []string{"S1"}, cinsOf(*res))
	assert.True(t, res.Valid)
	assert.Len(t, repo.reservations, 1)
}

func TestService_AllocateFailsBeforeWriting(t *testing.T) {
	testCases := []struct {
		name    string
		setup   func(repo *fakeRepo)
		blocID  int64
		cin     string
		wantErr error
		entity  string
	}{
		{
			name:    "unknown bloc",
			blocID:  42,
			cin:     "S1",
			wantErr: store.ErrNotFound,
			entity:  "bloc",
		},
		{
			name:    "unknown student",
			blocID:  1,
			cin:     "ghost",
			wantErr: store.ErrNotFound,
			entity:  "student",
		},
		{
			name: "bloc without rooms",
			setup: func(repo *fakeRepo) {
				repo.addBloc(3, "B3")
			},
			blocID:  3,
			cin:     "S1",
			wantErr: store.ErrNotFound,
			entity:  "free room in bloc",
		},
		{
			name: "open reservation already at capacity",
			setup: func(repo *fakeRepo) {
				repo.addRoom(6, 3, model.RoomDouble)
				repo.addBloc(3, "B3")
				repo.put(model.Reservation{
					ID:           "6B32024",
					RoomID:       6,
					AcademicYear: asOf,
					Valid:        true,
					Students:     []model.Student{{CIN: "S1"}, {CIN: "S2"}},
				})
			},
			blocID:  3,
			cin:     "S3",
			wantErr: ErrCapacityExceeded,
		},
		{
			name: "student holds a reservation elsewhere",
			setup: func(repo *fakeRepo) {
				repo.put(model.Reservation{
					ID:           "7B22024",
					RoomID:       7,
					AcademicYear: asOf,
					Students:     []model.Student{{CIN: "S1"}},
				})
			},
			blocID:  1,
			cin:     "S1",
			wantErr: ErrAlreadyReserved,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := campus()
			if tc.setup != nil {
				tc.setup(repo)
			}
			before := len(repo.reservations)
			svc := newEngine(repo)

			res, err := svc.Allocate(context.Background(), tc.blocID, tc.cin, asOf)
			require.ErrorIs(t, err, tc.wantErr)
			assert.Nil(t, res)
			assert.Zero(t, repo.saves)
			assert.Len(t, repo.reservations, before)

			if tc.entity != "" {
				var nf *NotFoundError
				require.True(t, errors.As(err, &nf))
				assert.Equal(t, tc.entity, nf.Entity)
			}
		})
	}
}

func TestService_AllocateInAnotherYear(t *testing.T) {
	repo := campus()
	svc := newEngine(repo)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, 1, "S1", asOf)
	require.NoError(t, err)

	next, err := svc.Allocate(ctx, 1, "S1", asOf.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "5B12025", next.ID)
	assert.Equal(t, 2025, next.Year)
	assert.Len(t, repo.reservations, 2)
}

func TestService_RetriesLostUpdates(t *testing.T) {
	repo := campus()
	svc := newEngine(repo, WithMaxAttempts(3))
	ctx := context.Background()

	_, err := svc.Allocate(ctx, 1, "S1", asOf)
	require.NoError(t, err)

	repo.conflicts = 2
	res, err := svc.Allocate(ctx, 1, "S2", asOf)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"S1", "S2"}, cinsOf(*res))
	assert.ElementsMatch(t, []string{"S1", "S2"}, cinsOf(repo.stored("5B12024")))
}

func TestService_GivesUpAfterMaxAttempts(t *testing.T) {
	repo := campus()
	svc := newEngine(repo, WithMaxAttempts(3))
	ctx := context.Background()

	_, err := svc.Allocate(ctx, 1, "S1", asOf)
	require.NoError(t, err)
	saves := repo.saves

	repo.conflicts = 10
	_, err = svc.Allocate(ctx, 1, "S2", asOf)
	require.ErrorIs(t, err, ErrConcurrentModification)
	assert.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, "conflict", Outcome(err))
	assert.Equal(t, saves+3, repo.saves)
	assert.Equal(t, []string{"S1"}, cinsOf(repo.stored("5B12024")))

	repo.conflicts = 10
	_, err = svc.Cancel(ctx, "S1", asOf)
	require.ErrorIs(t, err, ErrConcurrentModification)
}

func TestService_SuffixesTakenIdentifiers(t *testing.T) {
	repo := campus()
	repo.addRoom(9, 2, model.RoomDouble)
	repo.put(model.Reservation{ID: "5B12024", RoomID: 9, AcademicYear: asOf, Students: []model.Student{{CIN: "S4"}}})
	svc := newEngine(repo)

	res, err := svc.Allocate(context.Background(), 1, "S1", asOf)
	require.NoError(t, err)
	assert.Equal(t, "5B12024-2", res.ID)
	assert.Equal(t, int64(5), repo.stored("5B12024-2").RoomID)
	assert.Equal(t, []string{"S4"}, cinsOf(repo.stored("5B12024")))
}

func TestService_SuffixesIdentifiersSharedAcrossBlocs(t *testing.T) {
	// Room 1 in bloc "1B" and room 11 in bloc "B" both generate "11B2024".
	repo := newFakeRepo()
	repo.addBloc(3, "1B")
	repo.addBloc(4, "B")
	repo.addRoom(1, 3, model.RoomSimple)
	repo.addRoom(11, 4, model.RoomDouble)
	repo.addStudents("S1", "S2")
	svc := newEngine(repo)
	ctx := context.Background()

	first, err := svc.Allocate(ctx, 3, "S1", asOf)
	require.NoError(t, err)
	assert.Equal(t, "11B2024", first.ID)

	second, err := svc.Allocate(ctx, 4, "S2", asOf)
	require.NoError(t, err)
	assert.Equal(t, "11B2024-2", second.ID)
	assert.Equal(t, int64(11), repo.stored("11B2024-2").RoomID)
	assert.Equal(t, int64(1), repo.stored("11B2024").RoomID)
}

func TestService_JoinsRoomOpenedConcurrently(t *testing.T) {
	repo := campus()
	// Another allocation opens room 5 for S2 after S1 picked it as free.
	repo.beforeCreate = func() {
		repo.put(model.Reservation{
			ID:           "5B12024",
			RoomID:       5,
			AcademicYear: asOf,
			Valid:        true,
			Students:     []model.Student{{CIN: "S2"}},
		})
	}
	svc := newEngine(repo)

	res, err := svc.Allocate(context.Background(), 1, "S1", asOf)
	require.NoError(t, err)
	assert.Equal(t, "5B12024", res.ID)
	assert.ElementsMatch(t, []string{"S1", "S2"}, cinsOf(*res))
	assert.True(t, res.Valid)

	require.Len(t, repo.reservations, 1)
	assert.ElementsMatch(t, []string{"S1", "S2"}, cinsOf(repo.stored("5B12024")))
}

func TestService_SuffixAttemptsAreBounded(t *testing.T) {
	repo := campus()
	repo.addRoom(9, 2, model.RoomDouble)
	for _, id := range []string{"5B12024", "5B12024-2"} {
		repo.put(model.Reservation{ID: id, RoomID: 9, AcademicYear: asOf})
	}
	svc := newEngine(repo, WithMaxAttempts(2))

	_, err := svc.Allocate(context.Background(), 1, "S1", asOf)
	require.ErrorIs(t, err, store.ErrDuplicateKey)
	assert.Equal(t, "error", Outcome(err))
}

func TestService_Cancel(t *testing.T) {
	t.Run("last student leaves", func(t *testing.T) {
		repo := campus()
		dispatcher := &recordingDispatcher{}
		svc := newEngine(repo, WithDispatcher(dispatcher))
		ctx := context.Background()

		_, err := svc.Allocate(ctx, 1, "S1", asOf)
		require.NoError(t, err)

		res, err := svc.Cancel(ctx, "S1", asOf)
		require.NoError(t, err)
		assert.Empty(t, res.Students)
		assert.True(t, res.Valid)
		assert.Empty(t, repo.stored("5B12024").Students)
		assert.Empty(t, dispatcher.blocs, "the reservation was never full")
	})

	t.Run("simple room reopens", func(t *testing.T) {
		repo := campus()
		dispatcher := &recordingDispatcher{}
		svc := newEngine(repo, WithDispatcher(dispatcher))
		ctx := context.Background()

		_, err := svc.Allocate(ctx, 2, "S1", asOf)
		require.NoError(t, err)
		res, err := svc.Cancel(ctx, "S1", asOf)
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, []int64{2}, dispatcher.blocs)

		again, err := svc.Allocate(ctx, 2, "S2", asOf)
		require.NoError(t, err)
		assert.Equal(t, "7B22024", again.ID)
	})

	testCases := []struct {
		name   string
		cin    string
		at     time.Time
		entity string
	}{
		{"unknown student", "ghost", asOf, "student"},
		{"student without reservation", "S2", asOf, "reservation of student"},
		{"reservation from another year", "S1", asOf.AddDate(1, 0, 0), "reservation of student"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := campus()
			svc := newEngine(repo)
			_, err := svc.Allocate(context.Background(), 1, "S1", asOf)
			require.NoError(t, err)
			saves := repo.saves

			_, err = svc.Cancel(context.Background(), tc.cin, tc.at)
			require.ErrorIs(t, err, store.ErrNotFound)
			var nf *NotFoundError
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, tc.entity, nf.Entity)
			assert.Equal(t, saves, repo.saves)
		})
	}
}

func TestService_LegacyPolicy(t *testing.T) {
	repo := campus()
	repo.addBloc(3, "B3")
	repo.addRoom(6, 3, model.RoomDouble)
	dispatcher := &recordingDispatcher{}
	svc := newEngine(repo, WithPolicy(LegacyPolicy), WithDispatcher(dispatcher))
	ctx := context.Background()

	simple, err := svc.Allocate(ctx, 2, "S1", asOf)
	require.NoError(t, err)
	assert.False(t, simple.Valid)

	double, err := svc.Allocate(ctx, 3, "S2", asOf)
	require.NoError(t, err)
	assert.True(t, double.Valid)

	double, err = svc.Allocate(ctx, 3, "S3", asOf)
	require.NoError(t, err)
	assert.False(t, double.Valid)

	double, err = svc.Cancel(ctx, "S3", asOf)
	require.NoError(t, err)
	assert.True(t, double.Valid)
	assert.Equal(t, []int64{3}, dispatcher.blocs)

	// Leaving always reopens, even a room with no one left in it.
	double, err = svc.Cancel(ctx, "S2", asOf)
	require.NoError(t, err)
	assert.True(t, double.Valid)
	assert.Empty(t, double.Students)
}

func TestService_Delete(t *testing.T) {
	repo := campus()
	svc := newEngine(repo)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, 1, "S1", asOf)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "5B12024"))
	assert.Empty(t, repo.reservations)

	err = svc.Delete(ctx, "5B12024")
	require.ErrorIs(t, err, store.ErrNotFound)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "reservation 5B12024 not found", nf.Error())
}

func TestOutcome(t *testing.T) {
	testCases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&NotFoundError{Entity: "bloc", Key: 1, Err: store.ErrNotFound}, "not_found"},
		{ErrCapacityExceeded, "capacity_exceeded"},
		{ErrAlreadyReserved, "already_reserved"},
		{ErrConcurrentModification, "conflict"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, Outcome(tc.err))
	}
}
