package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/storycraft/social-interaction/internal/platform/api"
	"github.com/storycraft/social-interaction/internal/platform/auth"
	"github.com/storycraft/social-interaction/internal/platform/events"
	"github.com/storycraft/social-interaction/internal/platform/httpserver"
	"github.com/storycraft/social-interaction/services/social/internal/store"
)

type createCommentRequest struct {
	ContentType string  `json:"content_type"`
	ContentID   string  `json:"content_id"`
	Content     string  `json:"content"`
	ParentID    *string `json:"parent_id,omitempty"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

type commentListResponse struct {
	Comments []store.Comment `json:"comments"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset"`
}

type countResponse struct {
	ContentType  string `json:"content_type"`
	ContentID    string `json:"content_id"`
	ReactionType string `json:"reaction_type,omitempty"`
	Count        int64  `json:"count"`
}

type commentDeletedEvent struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
}

func validContent(w http.ResponseWriter, r *http.Request, content string) (string, bool) {
	if strings.TrimSpace(content) == "" {
		badRequest(w, r, "EMPTY_CONTENT", "content must not be empty")
		return "", false
	}
	if utf8.RuneCountInString(content) > maxContentLen {
		badRequest(w, r, "CONTENT_TOO_LONG", "content exceeds "+strconv.Itoa(maxContentLen)+" characters")
		return "", false
	}
	return content, true
}

// CreateComment handles POST /comments. A reply must name a parent on the
// same content target.
func (s *Service) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "INVALID_JSON", "invalid JSON")
		return
	}
	t, ok := target(w, r, req.ContentType, req.ContentID)
	if !ok {
		return
	}
	content, ok := validContent(w, r, req.Content)
	if !ok {
		return
	}

	var parentID *string
	if req.ParentID != nil {
		pid, ok := store.ParseID(*req.ParentID)
		if !ok {
			badRequest(w, r, "INVALID_ID", "parent_id must be a UUID")
			return
		}
		parent, found, err := s.Comments.GetByID(r.Context(), pid)
		if err != nil {
			fail(w, r, "load parent comment", err)
			return
		}
		if !found || parent.Target() != t {
			badRequest(w, r, "INVALID_PARENT", "parent comment not found on this content")
			return
		}
		parentID = &pid
	}

	c, err := s.Comments.Create(r.Context(), store.NewComment{
		UserID:   userID,
		Target:   t,
		Content:  content,
		ParentID: parentID,
	})
	if err != nil {
		fail(w, r, "create comment", err)
		return
	}
	s.Events.Publish(events.SubjectCommentCreated, userID, c)
	api.WriteJSON(w, http.StatusCreated, c)
}

// GetComment handles GET /comments/{comment_id}.
func (s *Service) GetComment(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "comment_id")
	if !ok {
		return
	}
	c, found, err := s.Comments.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, "get comment", err)
		return
	}
	if !found {
		notFound(w, r, "comment not found")
		return
	}
	api.WriteJSON(w, http.StatusOK, c)
}

// UpdateComment handles PUT /comments/{comment_id}. Only the author may edit.
func (s *Service) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "comment_id")
	if !ok {
		return
	}
	var req updateCommentRequest
	if err := api.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, r, "INVALID_JSON", "invalid JSON")
		return
	}
	content, ok := validContent(w, r, req.Content)
	if !ok {
		return
	}

	existing, found, err := s.Comments.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, "get comment", err)
		return
	}
	if !found {
		notFound(w, r, "comment not found")
		return
	}
	if existing.UserID != userID {
		api.Forbidden(w, "NOT_AUTHOR", "only the author can edit this comment", httpserver.RequestIDFromContext(r.Context()))
		return
	}

	updated, found, err := s.Comments.Update(r.Context(), id, content)
	if err != nil {
		fail(w, r, "update comment", err)
		return
	}
	if !found {
		notFound(w, r, "comment not found")
		return
	}
	s.Events.Publish(events.SubjectCommentUpdated, userID, updated)
	api.WriteJSON(w, http.StatusOK, updated)
}

// DeleteComment handles DELETE /comments/{comment_id}. The author or an admin
// may delete; replies go with their parent.
func (s *Service) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "comment_id")
	if !ok {
		return
	}
	existing, found, err := s.Comments.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, "get comment", err)
		return
	}
	if !found {
		notFound(w, r, "comment not found")
		return
	}
	if existing.UserID != userID && !auth.IsAdmin(r.Context()) {
		api.Forbidden(w, "NOT_AUTHOR", "only the author can delete this comment", httpserver.RequestIDFromContext(r.Context()))
		return
	}

	deleted, err := s.Comments.Delete(r.Context(), id)
	if err != nil {
		fail(w, r, "delete comment", err)
		return
	}
	if !deleted {
		notFound(w, r, "comment not found")
		return
	}
	s.Events.Publish(events.SubjectCommentDeleted, userID, commentDeletedEvent{
		ID:          id,
		ContentType: existing.ContentType,
		ContentID:   existing.ContentID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// ListComments handles GET /comments?content_type=&content_id=.
func (s *Service) ListComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, ok := target(w, r, q.Get("content_type"), q.Get("content_id"))
	if !ok {
		return
	}
	p, ok := page(w, r)
	if !ok {
		return
	}
	includeReplies := false
	if raw := strings.TrimSpace(q.Get("include_replies")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(w, r, "INVALID_FLAG", "include_replies must be a boolean")
			return
		}
		includeReplies = v
	}

	comments, err := s.Comments.ListForContent(r.Context(), store.ContentFilter{
		Target:         t,
		Page:           p,
		IncludeReplies: includeReplies,
	})
	if err != nil {
		fail(w, r, "list comments", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, commentListResponse{Comments: comments, Limit: p.Limit, Offset: p.Offset})
}

// CountComments handles GET /comments/count. Replies are counted.
func (s *Service) CountComments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	t, ok := target(w, r, q.Get("content_type"), q.Get("content_id"))
	if !ok {
		return
	}
	n, err := s.Comments.Count(r.Context(), t)
	if err != nil {
		fail(w, r, "count comments", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, countResponse{ContentType: t.ContentType, ContentID: t.ContentID, Count: n})
}

// ListReplies handles GET /comments/{comment_id}/replies, oldest first.
func (s *Service) ListReplies(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "comment_id")
	if !ok {
		return
	}
	replies, err := s.Comments.Replies(r.Context(), id)
	if err != nil {
		fail(w, r, "list replies", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, commentListResponse{Comments: replies})
}

// ListUserComments handles GET /users/{user_id}/comments.
func (s *Service) ListUserComments(w http.ResponseWriter, r *http.Request) {
	userID, ok := uuidParam(w, r, "user_id")
	if !ok {
		return
	}
	p, ok := page(w, r)
	if !ok {
		return
	}
	comments, err := s.Comments.ListByUser(r.Context(), userID, p)
	if err != nil {
		fail(w, r, "list user comments", err)
		return
	}
	api.WriteJSON(w, http.StatusOK, commentListResponse{Comments: comments, Limit: p.Limit, Offset: p.Offset})
}
