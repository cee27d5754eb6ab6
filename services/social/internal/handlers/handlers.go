// Package handlers exposes the comment and reaction stores over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/storycraft/social-interaction/internal/platform/api"
	"github.com/storycraft/social-interaction/internal/platform/auth"
	"github.com/storycraft/social-interaction/internal/platform/events"
	"github.com/storycraft/social-interaction/internal/platform/httpserver"
	"github.com/storycraft/social-interaction/internal/platform/metrics"
	"github.com/storycraft/social-interaction/services/social/internal/store"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100

	maxContentLen = 10000
)

// Service holds the dependencies shared by every handler. Events and
// Metrics may be nil.
type Service struct {
	Comments  store.CommentStore
	Reactions store.ReactionStore
	Events    *events.Publisher
	Metrics   *metrics.Collector
}

// Routes mounts the public read routes and the authenticated write routes.
func (s *Service) Routes(r chi.Router, verifier auth.JWTVerifier) {
	r.Get("/comments", s.ListComments)
	r.Get("/comments/count", s.CountComments)
	r.Get("/comments/{comment_id}", s.GetComment)
	r.Get("/comments/{comment_id}/replies", s.ListReplies)
	r.Get("/users/{user_id}/comments", s.ListUserComments)
	r.Get("/reactions/count", s.CountReactions)
	r.Get("/users/{user_id}/reactions", s.ListUserReactions)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/comments", s.CreateComment)
		r.Put("/comments/{comment_id}", s.UpdateComment)
		r.Delete("/comments/{comment_id}", s.DeleteComment)

		r.Post("/reactions", s.CreateReaction)
		r.Get("/reactions/{content_type}/{content_id}/{reaction_type}", s.GetReaction)
		r.Delete("/reactions/{content_type}/{content_id}/{reaction_type}", s.DeleteReaction)
	})
}

// fail logs err with the request id and answers with the generic envelope.
func fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	httpserver.LoggerFromContext(r.Context()).Error(msg, zap.Error(err))
	if errors.Is(err, store.ErrReactionConflict) {
		api.WriteError(w, http.StatusConflict, "REACTION_CONFLICT", "reaction changed concurrently, retry", rid, nil)
		return
	}
	api.Internal(w, rid)
}

func badRequest(w http.ResponseWriter, r *http.Request, code, msg string) {
	api.BadRequest(w, code, msg, httpserver.RequestIDFromContext(r.Context()), nil)
}

func notFound(w http.ResponseWriter, r *http.Request, msg string) {
	api.NotFound(w, msg, httpserver.RequestIDFromContext(r.Context()))
}

// callerID returns the authenticated user in canonical UUID form. Subjects
// that are not UUIDs are rejected since user ids are stored as UUIDs.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		api.Unauthorized(w, httpserver.RequestIDFromContext(r.Context()))
		return "", false
	}
	userID, ok := store.ParseID(raw)
	if !ok {
		api.Unauthorized(w, httpserver.RequestIDFromContext(r.Context()))
		return "", false
	}
	return userID, true
}

// uuidParam reads a chi URL parameter that must be a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v, ok := store.ParseID(chi.URLParam(r, name))
	if !ok {
		badRequest(w, r, "INVALID_ID", name+" must be a UUID")
		return "", false
	}
	return v, true
}

// target validates a content_type/content_id pair.
func target(w http.ResponseWriter, r *http.Request, contentType, contentID string) (store.Target, bool) {
	ct, ok := store.ParseKind(contentType)
	if !ok {
		badRequest(w, r, "INVALID_CONTENT_TYPE", "content_type is required and must match [a-z0-9_-]")
		return store.Target{}, false
	}
	id, ok := store.ParseID(contentID)
	if !ok {
		badRequest(w, r, "INVALID_ID", "content_id must be a UUID")
		return store.Target{}, false
	}
	return store.Target{ContentType: ct, ContentID: id}, true
}

func reactionType(w http.ResponseWriter, r *http.Request, raw string) (string, bool) {
	rt, ok := store.ParseKind(raw)
	if !ok {
		badRequest(w, r, "INVALID_REACTION_TYPE", "reaction_type is required and must match [a-z0-9_-]")
		return "", false
	}
	return rt, true
}

// page parses limit and offset. limit defaults to DefaultLimit and is capped
// at MaxLimit.
func page(w http.ResponseWriter, r *http.Request) (store.Page, bool) {
	p := store.Page{Limit: DefaultLimit}
	q := r.URL.Query()
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, r, "INVALID_LIMIT", "limit must be a positive integer")
			return p, false
		}
		p.Limit = min(n, MaxLimit)
	}
	if raw := strings.TrimSpace(q.Get("offset")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, r, "INVALID_OFFSET", "offset must be a non-negative integer")
			return p, false
		}
		p.Offset = n
	}
	return p, true
}
