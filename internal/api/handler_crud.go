package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foyer-backend/internal/model"
	"foyer-backend/internal/store"
)

// resource adapts a store.Repository to the REST routes of one entity.
type resource[T any] struct {
	repo *store.Repository[T]
	// parseKey converts the :id path segment.
	parseKey func(string) (any, error)
	// setKey stamps the path key on a decoded body before an update.
	setKey   func(*T, any)
	validate func(*T) error
	// checkNew runs on create only, for entities with natural keys.
	checkNew func(*T) error
}

func int64Key(s string) (any, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New("invalid id")
	}
	return id, nil
}

func stringKey(s string) (any, error) {
	if s == "" {
		return nil, errors.New("invalid id")
	}
	return s, nil
}

func (r resource[T]) register(g *gin.RouterGroup, path string, h *Handler) {
	g.GET(path, r.list(h))
	g.GET(path+"/:id", r.get(h))
	g.POST(path, r.create(h))
	g.PUT(path+"/:id", r.update(h))
	g.DELETE(path+"/:id", r.delete(h))
}

func (r resource[T]) key(c *gin.Context) (any, bool) {
	key, err := r.parseKey(c.Param("id"))
	if err != nil {
		badRequest(c, err.Error())
		return nil, false
	}
	return key, true
}

func (r resource[T]) bind(c *gin.Context) (*T, bool) {
	var v T
	if err := c.ShouldBindJSON(&v); err != nil {
		badRequest(c, "invalid request")
		return nil, false
	}
	if r.validate != nil {
		if err := r.validate(&v); err != nil {
			badRequest(c, err.Error())
			return nil, false
		}
	}
	return &v, true
}

func (r resource[T]) list(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := r.repo.List(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func (r resource[T]) get(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := r.key(c)
		if !ok {
			return
		}
		v, err := r.repo.Get(c.Request.Context(), key)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

func (r resource[T]) create(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := r.bind(c)
		if !ok {
			return
		}
		if r.checkNew != nil {
			if err := r.checkNew(v); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		if err := r.repo.Create(c.Request.Context(), v); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

func (r resource[T]) update(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := r.key(c)
		if !ok {
			return
		}
		v, ok := r.bind(c)
		if !ok {
			return
		}
		r.setKey(v, key)
		if err := r.repo.Update(c.Request.Context(), key, v); err != nil {
			h.fail(c, err)
			return
		}
		saved, err := r.repo.Get(c.Request.Context(), key)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, saved)
	}
}

func (r resource[T]) delete(h *Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, ok := r.key(c)
		if !ok {
			return
		}
		if err := r.repo.Delete(c.Request.Context(), key); err != nil {
			h.fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func universities(h *Handler) resource[model.University] {
	return resource[model.University]{
		repo:     store.NewRepository[model.University](h.db, "id", "Foyer"),
		parseKey: int64Key,
		setKey:   func(u *model.University, key any) { u.ID = key.(int64) },
		validate: func(u *model.University) error {
			if u.Name == "" {
				return errors.New("name is required")
			}
			return nil
		},
	}
}

func foyers(h *Handler) resource[model.Foyer] {
	return resource[model.Foyer]{
		repo:     store.NewRepository[model.Foyer](h.db, "id"),
		parseKey: int64Key,
		setKey:   func(f *model.Foyer, key any) { f.ID = key.(int64) },
		validate: func(f *model.Foyer) error {
			if f.Name == "" {
				return errors.New("name is required")
			}
			if f.Capacity < 0 {
				return errors.New("capacity must not be negative")
			}
			return nil
		},
	}
}

func blocs(h *Handler) resource[model.Bloc] {
	return resource[model.Bloc]{
		repo:     store.NewRepository[model.Bloc](h.db, "id"),
		parseKey: int64Key,
		setKey:   func(b *model.Bloc, key any) { b.ID = key.(int64) },
		validate: func(b *model.Bloc) error {
			if b.Name == "" {
				return errors.New("name is required")
			}
			if b.FoyerID <= 0 {
				return errors.New("foyerId is required")
			}
			return nil
		},
	}
}

func rooms(h *Handler) resource[model.Room] {
	return resource[model.Room]{
		repo:     store.NewRepository[model.Room](h.db, "id"),
		parseKey: int64Key,
		setKey:   func(r *model.Room, key any) { r.ID = key.(int64) },
		validate: func(r *model.Room) error {
			t, err := model.ParseRoomType(string(r.Type))
			if err != nil {
				return err
			}
			r.Type = t
			if r.BlocID <= 0 {
				return errors.New("blocId is required")
			}
			return nil
		},
	}
}

func students(h *Handler) resource[model.Student] {
	return resource[model.Student]{
		repo:     store.NewRepository[model.Student](h.db, "cin"),
		parseKey: stringKey,
		setKey:   func(s *model.Student, key any) { s.CIN = key.(string) },
		validate: func(s *model.Student) error {
			if s.FirstName == "" || s.LastName == "" {
				return errors.New("firstName and lastName are required")
			}
			return nil
		},
		checkNew: func(s *model.Student) error {
			if s.CIN == "" {
				return errors.New("cin is required")
			}
			return nil
		},
	}
}
