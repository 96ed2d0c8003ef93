package reservation

import (
	"context"
	"fmt"
	"sort"

	"foyer-backend/internal/model"
	"foyer-backend/internal/store"
)

// fakeRepo is an in-memory Repository with the same lookup rules as the
// gorm store. Reservations are copied on the way in and out so the engine
// never mutates stored state without saving.
type fakeRepo struct {
	blocs        map[int64]model.Bloc
	students     map[string]model.Student
	rooms        map[int64]model.Room
	reservations map[string]model.Reservation
	order        []string

	// conflicts makes the next n updates fail as if another writer won.
	conflicts int
	saves     int

	// beforeCreate runs once ahead of the next insert, letting a test
	// commit a competing write in between lookup and save.
	beforeCreate func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		blocs:        map[int64]model.Bloc{},
		students:     map[string]model.Student{},
		rooms:        map[int64]model.Room{},
		reservations: map[string]model.Reservation{},
	}
}

func (f *fakeRepo) addBloc(id int64, name string) {
	f.blocs[id] = model.Bloc{ID: id, Name: name}
}

func (f *fakeRepo) addRoom(id, blocID int64, t model.RoomType) {
	f.rooms[id] = model.Room{ID: id, BlocID: blocID, Type: t}
}

func (f *fakeRepo) addStudents(cins ...string) {
	for _, cin := range cins {
		f.students[cin] = model.Student{CIN: cin}
	}
}

// put stores r as it would be after a successful save.
func (f *fakeRepo) put(r model.Reservation) {
	r.Year = r.AcademicYear.Year()
	if r.Version == 0 {
		r.Version = 1
	}
	if _, ok := f.reservations[r.ID]; !ok {
		f.order = append(f.order, r.ID)
	}
	f.reservations[r.ID] = clone(r)
}

func (f *fakeRepo) stored(id string) model.Reservation {
	return f.reservations[id]
}

func clone(r model.Reservation) model.Reservation {
	r.Students = append([]model.Student(nil), r.Students...)
	return r
}

func (f *fakeRepo) FindBlocByID(_ context.Context, blocID int64) (*model.Bloc, error) {
	b, ok := f.blocs[blocID]
	if !ok {
		return nil, fmt.Errorf("bloc %d: %w", blocID, store.ErrNotFound)
	}
	return &b, nil
}

func (f *fakeRepo) FindStudentByCIN(_ context.Context, cin string) (*model.Student, error) {
	s, ok := f.students[cin]
	if !ok {
		return nil, fmt.Errorf("student %q: %w", cin, store.ErrNotFound)
	}
	return &s, nil
}

func (f *fakeRepo) FindReservationForBloc(_ context.Context, blocID int64, year int) (*model.Reservation, error) {
	for _, id := range f.order {
		r := f.reservations[id]
		if r.Year == year && r.Valid && f.rooms[r.RoomID].BlocID == blocID {
			c := clone(r)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("open reservation in bloc %d: %w", blocID, store.ErrNotFound)
}

func (f *fakeRepo) FindReservationForStudentAndYear(_ context.Context, cin string, year int) (*model.Reservation, error) {
	for _, id := range f.order {
		r := f.reservations[id]
		if r.Year == year && r.HasStudent(cin) {
			c := clone(r)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("reservation of %q: %w", cin, store.ErrNotFound)
}

func (f *fakeRepo) FindRoomForReservation(_ context.Context, reservationID string) (*model.Room, error) {
	r, ok := f.reservations[reservationID]
	if !ok {
		return nil, fmt.Errorf("reservation %q: %w", reservationID, store.ErrNotFound)
	}
	room, ok := f.rooms[r.RoomID]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", r.RoomID, store.ErrNotFound)
	}
	return &room, nil
}

func (f *fakeRepo) FindAvailableRoomForBloc(_ context.Context, blocID int64, year int) (*model.Room, error) {
	var ids []int64
	for id, room := range f.rooms {
		if room.BlocID == blocID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

next:
	for _, id := range ids {
		for _, r := range f.reservations {
			if r.RoomID == id && r.Year == year {
				continue next
			}
		}
		room := f.rooms[id]
		return &room, nil
	}
	return nil, fmt.Errorf("free room in bloc %d: %w", blocID, store.ErrNotFound)
}

func (f *fakeRepo) SaveReservation(_ context.Context, r *model.Reservation) error {
	f.saves++
	r.Year = r.AcademicYear.Year()

	if r.Version == 0 {
		if hook := f.beforeCreate; hook != nil {
			f.beforeCreate = nil
			hook()
		}
		if _, ok := f.reservations[r.ID]; ok {
			return fmt.Errorf("reservation %q: %w", r.ID, store.ErrDuplicateKey)
		}
		r.Version = 1
		f.put(*r)
		return nil
	}

	if f.conflicts > 0 {
		f.conflicts--
		return fmt.Errorf("reservation %q: %w", r.ID, store.ErrConflict)
	}
	current, ok := f.reservations[r.ID]
	if !ok || current.Version != r.Version {
		return fmt.Errorf("reservation %q: %w", r.ID, store.ErrConflict)
	}
	r.Version++
	f.reservations[r.ID] = clone(*r)
	return nil
}

func (f *fakeRepo) DeleteReservation(_ context.Context, id string) error {
	if _, ok := f.reservations[id]; !ok {
		return fmt.Errorf("reservation %q: %w", id, store.ErrNotFound)
	}
	delete(f.reservations, id)
	for i, o := range f.order {
		if o == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

type recordingDispatcher struct {
	blocs []int64
}

func (d *recordingDispatcher) Dispatch(blocID int64) {
	d.blocs = append(d.blocs, blocID)
}
