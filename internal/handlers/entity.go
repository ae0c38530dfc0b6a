package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/cashbackmart/internal/handlers/render"
	"github.com/nkiryanov/cashbackmart/internal/logger"
	"github.com/nkiryanov/cashbackmart/internal/models"
)

func handleRegisterEntity(s entityService, l logger.Logger) http.Handler {
	type request struct {
		Kind      string `json:"kind" validate:"required,oneof=merchant institution"`
		LegalName string `json:"legal_name" validate:"required,max=200"`
		Document  string `json:"document" validate:"required,document"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		e, err := s.Register(r.Context(), actor, data.Kind, data.LegalName, data.Document)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSONWithStatus(w, newEntityResponse(e), http.StatusCreated)
	})
}

func handleListEntities(s entityService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		entities, err := s.List(r.Context(), actor, q.Get("kind"), q.Get("status"))
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, mapSlice(entities, newEntityResponse))
	})
}

// Public list of institutions accepting donations
func handleListInstitutions(s entityService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entities, err := s.ListPublic(r.Context(), models.EntityInstitution)
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, mapSlice(entities, newEntityResponse))
	})
}

func handleApproveEntity(s entityService, l logger.Logger) http.Handler {
	return handleEntityAction(l, func(r *http.Request, actor models.Actor, e entityRef) (models.Entity, error) {
		return s.Approve(r.Context(), actor, e.id)
	})
}

func handleRejectEntity(s entityService, l logger.Logger) http.Handler {
	return handleEntityAction(l, func(r *http.Request, actor models.Actor, e entityRef) (models.Entity, error) {
		return s.Reject(r.Context(), actor, e.id, e.reason)
	})
}

func handleDeactivateEntity(s entityService, l logger.Logger) http.Handler {
	return handleEntityAction(l, func(r *http.Request, actor models.Actor, e entityRef) (models.Entity, error) {
		return s.Deactivate(r.Context(), actor, e.id)
	})
}

type entityRef struct {
	id     uuid.UUID
	reason string
}

func handleEntityAction(l logger.Logger, action func(r *http.Request, actor models.Actor, e entityRef) (models.Entity, error)) http.Handler {
	type request struct {
		Reason string `json:"reason" validate:"max=500"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFrom(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		data, err := render.BindOptional[request](w, r)
		if err != nil {
			return
		}

		e, err := action(r, actor, entityRef{id: id, reason: data.Reason})
		if err != nil {
			render.AppError(w, l, err)
			return
		}

		render.JSON(w, newEntityResponse(e))
	})
}
