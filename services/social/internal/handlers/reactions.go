package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storycraft/social-interaction/internal/platform/api"
	"github.com/storycraft/social-interaction/internal/platform/events"
	"github.com/storycraft/social-interaction/services/social/internal/store"
)

type reactionRef struct {
	ContentType  string `json:"content_type"`
	ContentID    string `json:"content_id"`
	ReactionType string `json:"reaction_type"`
}

type reactionListResponse struct {
	Reactions []store.Reaction `json:"reactions"`
}

// CreateReaction handles POST /reactions. Repeating the call is harmless:
// 201 when the reaction was created, 200 with the existing row otherwise.
func (s *Service) CreateReaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req reactionRef
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "INVALID_JSON", "invalid JSON")
		return
	}
	t, ok := target(w, r, req.ContentType, req.ContentID)
	if !ok {
		return
	}
	rt, ok := reactionType(w, r, req.ReactionType)
	if !ok {
		return
	}

	reaction, created, err := s.Reactions.Create(r.Context(), store.ReactionKey{UserID: userID, Target: t, ReactionType: rt})
	if err != nil {
		s.Metrics.ReactionWrite("create", "error")
		fail(w, r, "create reaction", err)
		return
	}
	if !created {
		s.Metrics.ReactionWrite("create", "existing")
		api.WriteJSON(w, http.StatusOK, reaction)
		return
	}
	s.Metrics.ReactionWrite("create", "created")
	s.Events.Publish(events.SubjectReactionCreated, userID, reaction)
	api.WriteJSON(w, http.StatusCreated, reaction)
}

// pathKey builds the caller's ReactionKey from
// /reactions/{content_type}/{content_id}/{reaction_type}.
func pathKey(w http.ResponseWriter, r *http.Request) (store.ReactionKey, bool) {
	userID, ok := callerID(w, r)
	if !ok {
		return store.ReactionKey{}, false
	}
	t, ok := target(w, r, chi.URLParam(r, "content_type"), chi.URLParam(r, "content_id"))
	if !ok {
		return store.ReactionKey{}, false
	}
	rt, ok := reactionType(w, r, chi.URLParam(r, "reaction_type"))
	if !ok {
		return store.ReactionKey{}, false
	}
	return store.ReactionKey{UserID: userID, Target: t, ReactionType: rt}, true
}

// GetReaction handles GET /reactions/{content_type}/{content_id}/{reaction_type}
// for the caller's own reaction.
func (s *Service) GetReaction(w http.ResponseWriter, r *http.Request) {
	k, ok := pathKey(w, r)
	if !ok {
		return
	}
	reaction, found, err := s.Reactions.Get(r.Context(), k)
	if err != nil {
		fail(w, r, "get reaction", err)
		return
	}
	if !found {
		notFound(w, r, "reaction not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, reaction)
}

// DeleteReaction handles DELETE /reactions/{content_type}/{content_id}/{reaction_type}.
func (s *Service) DeleteReaction(w http.ResponseWriter, r *http.Request) {
	k, ok := pathKey(w, r)
	if !ok {
		return
	}
	deleted, err := s.Reactions.Delete(r.Context(), k)
	if err != nil {
		s.Metrics.ReactionWrite("delete", "error")
		fail(w, r, "delete reaction", err)
		return
	}
	if !deleted {
		s.Metrics.ReactionWrite("delete", "absent")
		notFound(w, r, "reaction not found")
		return
	}
	s.Metrics.ReactionWrite("delete", "deleted")
	s.Events.Publish(events.SubjectReactionDeleted, k.UserID, reactionRef{
		ContentType:  k.Target.ContentType,
		ContentID:    k.Target.ContentID,
		ReactionType: k.ReactionType,
	})
	w.WriteHeader(http.StatusNoContent)
}

// CountReactions handles GET /reactions/count?content_type=&content_id=&reaction_type=.
func (s *Service) CountReactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, ok := target(w, r, q.Get("content_type"), q.Get("content_id"))
	if !ok {
		return
	}
	rt, ok := reactionType(w, r, q.Get("reaction_type"))
	if !ok {
		return
	}
	n, err := s.Reactions.Count(r.Context(), t, rt)
	if err != nil {
		fail(w, r, "count reactions", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, countResponse{
		ContentType:  t.ContentType,
		ContentID:    t.ContentID,
		ReactionType: rt,
		Count:        n,
	})
}

// ListUserReactions handles GET /users/{user_id}/reactions. reaction_type is
// an optional filter.
func (s *Service) ListUserReactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "user_id")
	if !ok {
		return
	}
	rt := ""
	if raw := r.URL.Query().Get("reaction_type"); raw != "" {
		if rt, ok = reactionType(w, r, raw); !ok {
			return
		}
	}
	reactions, err := s.Reactions.ListByUser(r.Context(), userID, rt)
	if err != nil {
		fail(w, r, "list user reactions", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, reactionListResponse{Reactions: reactions})
}
