package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storycraft/social-interaction/internal/platform/api"
	"github.com/storycraft/social-interaction/internal/platform/auth"
	"github.com/storycraft/social-interaction/internal/platform/metrics"
	"github.com/storycraft/social-interaction/services/social/internal/store"
)

var verifier = auth.JWTVerifier{Secret: []byte("handlers-test-secret")}

type testEnv struct {
	router    chi.Router
	comments  *store.InMemoryCommentStore
	reactions *store.InMemoryReactionStore
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		comments:  store.NewInMemoryCommentStore(),
		reactions: store.NewInMemoryReactionStore(),
	}
	svc := &Service{
		Comments:  env.comments,
		Reactions: env.reactions,
		Metrics:   metrics.New("social_test"),
	}
	r := chi.NewRouter()
	svc.Routes(r, verifier)
	env.router = r
	return env
}

func token(t *testing.T, userID, role string) string {
	t.Helper()
	tok, err := verifier.Sign(userID, role, time.Hour)
	require.NoError(t, err)
	return tok
}

// do sends a request; tok may be empty for anonymous calls.
func (e *testEnv) do(t *testing.T, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[api.ErrorResponse](t, rr).Error.Code
}

var (
	alice   = uuid.NewString()
	bob     = uuid.NewString()
	storyID = uuid.NewString()
)

func postComment(t *testing.T, e *testEnv, user, content string, parentID *string) store.Comment {
	t.Helper()
	body := map[string]any{"content_type": "story", "content_id": storyID, "content": content}
	if parentID != nil {
		body["parent_id"] = *parentID
	}
	rr := e.do(t, http.MethodPost, "/comments", token(t, user, "user"), body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[store.Comment](t, rr)
}

func TestCreateComment(t *testing.T) {
	e := newEnv(t)
	c := postComment(t, e, alice, "hello world", nil)
	assert.Equal(t, "hello world", c.Content)
	assert.Equal(t, alice, c.UserID)
	assert.Equal(t, "story", c.ContentType)
	assert.Nil(t, c.ParentID)
}

func TestCreateComment_Unauthorized(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodPost, "/comments", "", map[string]string{"content_type": "story", "content_id": storyID, "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateComment_NonUUIDSubject(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodPost, "/comments", token(t, "user-a", "user"),
		map[string]string{"content_type": "story", "content_id": storyID, "content": "x"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateComment_Validation(t *testing.T) {
	e := newEnv(t)
	tok := token(t, alice, "user")
	cases := map[string]struct {
		body any
		code string
	}{
		"empty content":   {map[string]string{"content_type": "story", "content_id": storyID, "content": "   "}, "EMPTY_CONTENT"},
		"bad content id":  {map[string]string{"content_type": "story", "content_id": "42", "content": "x"}, "INVALID_ID"},
		"no content type": {map[string]string{"content_id": storyID, "content": "x"}, "INVALID_CONTENT_TYPE"},
		"unknown field":   {map[string]string{"content_type": "story", "content_id": storyID, "content": "x", "body": "y"}, "INVALID_JSON"},
		"bad parent id":   {map[string]string{"content_type": "story", "content_id": storyID, "content": "x", "parent_id": "nope"}, "INVALID_ID"},
		"missing parent":  {map[string]string{"content_type": "story", "content_id": storyID, "content": "x", "parent_id": uuid.NewString()}, "INVALID_PARENT"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := e.do(t, http.MethodPost, "/comments", tok, tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tc.code, errorCode(t, rr))
		})
	}
}

func TestCreateComment_ParentOnOtherContentRejected(t *testing.T) {
	e := newEnv(t)
	parent := postComment(t, e, alice, "root", nil)
	rr := e.do(t, http.MethodPost, "/comments", token(t, bob, "user"), map[string]string{
		"content_type": "chapter", "content_id": storyID, "content": "reply", "parent_id": parent.ID,
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_PARENT", errorCode(t, rr))
}

func TestThreadScenario(t *testing.T) {
	e := newEnv(t)
	c1 := postComment(t, e, alice, "root", nil)
	r1 := postComment(t, e, bob, "reply", &c1.ID)
	require.NotNil(t, r1.ParentID)
	assert.Equal(t, c1.ID, *r1.ParentID)

	rr := e.do(t, http.MethodGet, "/comments?content_type=story&content_id="+storyID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	top := decode[commentListResponse](t, rr)
	require.Len(t, top.Comments, 1)
	assert.Equal(t, c1.ID, top.Comments[0].ID)
	assert.Equal(t, DefaultLimit, top.Limit)

	rr = e.do(t, http.MethodGet, "/comments?content_type=story&content_id="+storyID+"&include_replies=true", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[commentListResponse](t, rr).Comments, 2)

	rr = e.do(t, http.MethodGet, "/comments/"+c1.ID+"/replies", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	replies := decode[commentListResponse](t, rr)
	require.Len(t, replies.Comments, 1)
	assert.Equal(t, r1.ID, replies.Comments[0].ID)

	rr = e.do(t, http.MethodGet, "/comments/count?content_type=story&content_id="+storyID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(2), decode[countResponse](t, rr).Count)
}

func TestListComments_Pagination(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 3; i++ {
		postComment(t, e, alice, "c", nil)
	}

	rr := e.do(t, http.MethodGet, "/comments?content_type=story&content_id="+storyID+"&limit=1000&offset=2", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[commentListResponse](t, rr)
	assert.Equal(t, MaxLimit, resp.Limit)
	assert.Equal(t, 2, resp.Offset)
	assert.Len(t, resp.Comments, 1)

	for _, q := range []string{"limit=0", "limit=abc", "offset=-1", "include_replies=maybe"} {
		rr = e.do(t, http.MethodGet, "/comments?content_type=story&content_id="+storyID+"&"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestListComments_EmptyIsArray(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/comments?content_type=story&content_id="+storyID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"comments":[]`)
}

func TestGetComment(t *testing.T) {
	e := newEnv(t)
	c := postComment(t, e, alice, "hi", nil)

	rr := e.do(t, http.MethodGet, "/comments/"+c.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, c.ID, decode[store.Comment](t, rr).ID)

	rr = e.do(t, http.MethodGet, "/comments/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = e.do(t, http.MethodGet, "/comments/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateComment_AuthorOnly(t *testing.T) {
	e := newEnv(t)
	c := postComment(t, e, alice, "original", nil)

	rr := e.do(t, http.MethodPut, "/comments/"+c.ID, token(t, bob, "user"), map[string]string{"content": "hacked"})
	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "NOT_AUTHOR", errorCode(t, rr))

	rr = e.do(t, http.MethodPut, "/comments/"+c.ID, token(t, bob, auth.RoleAdmin), map[string]string{"content": "admin edit"})
	assert.Equal(t, http.StatusForbidden, rr.Code, "admins may delete but not edit")

	rr = e.do(t, http.MethodPut, "/comments/"+c.ID, token(t, alice, "user"), map[string]string{"content": "edited"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[store.Comment](t, rr)
	assert.Equal(t, "edited", updated.Content)
	assert.Equal(t, c.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(c.UpdatedAt))

	rr = e.do(t, http.MethodPut, "/comments/"+uuid.NewString(), token(t, alice, "user"), map[string]string{"content": "x"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteComment(t *testing.T) {
	e := newEnv(t)
	c := postComment(t, e, alice, "root", nil)
	postComment(t, e, bob, "reply", &c.ID)

	rr := e.do(t, http.MethodDelete, "/comments/"+c.ID, token(t, bob, "user"), nil)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(t, http.MethodDelete, "/comments/"+c.ID, token(t, alice, "user"), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = e.do(t, http.MethodDelete, "/comments/"+c.ID, token(t, alice, "user"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	n, err := e.comments.Count(context.Background(), store.Target{ContentType: "story", ContentID: storyID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "replies are removed with their parent")
}

func TestDeleteComment_Admin(t *testing.T) {
	e := newEnv(t)
	c := postComment(t, e, alice, "spam", nil)

	rr := e.do(t, http.MethodDelete, "/comments/"+c.ID, token(t, bob, auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestListUserComments(t *testing.T) {
	e := newEnv(t)
	postComment(t, e, alice, "one", nil)
	postComment(t, e, alice, "two", nil)
	postComment(t, e, bob, "other", nil)

	rr := e.do(t, http.MethodGet, "/users/"+alice+"/comments?limit=1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[commentListResponse](t, rr)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, "two", resp.Comments[0].Content)
}

func reactionBody(rt string) map[string]string {
	return map[string]string{"content_type": "story", "content_id": storyID, "reaction_type": rt}
}

func TestCreateReaction_Idempotent(t *testing.T) {
	e := newEnv(t)
	tok := token(t, alice, "user")

	rr := e.do(t, http.MethodPost, "/reactions", tok, reactionBody("like"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[store.Reaction](t, rr)

	rr = e.do(t, http.MethodPost, "/reactions", tok, reactionBody("LIKE"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first.ID, decode[store.Reaction](t, rr).ID)

	rr = e.do(t, http.MethodGet, "/reactions/count?content_type=story&content_id="+storyID+"&reaction_type=like", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	count := decode[countResponse](t, rr)
	assert.Equal(t, int64(1), count.Count)
	assert.Equal(t, "like", count.ReactionType)
}

func TestCreateReaction_Validation(t *testing.T) {
	e := newEnv(t)
	tok := token(t, alice, "user")

	rr := e.do(t, http.MethodPost, "/reactions", tok, reactionBody(""))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_REACTION_TYPE", errorCode(t, rr))

	rr = e.do(t, http.MethodPost, "/reactions", "", reactionBody("like"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReactionGetAndDelete(t *testing.T) {
	e := newEnv(t)
	tok := token(t, alice, "user")
	path := "/reactions/story/" + storyID + "/like"

	rr := e.do(t, http.MethodGet, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	e.do(t, http.MethodPost, "/reactions", tok, reactionBody("like"))

	rr = e.do(t, http.MethodGet, path, tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, alice, decode[store.Reaction](t, rr).UserID)

	rr = e.do(t, http.MethodGet, path, token(t, bob, "user"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "lookups are scoped to the caller")

	rr = e.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = e.do(t, http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListUserReactions(t *testing.T) {
	e := newEnv(t)
	tok := token(t, alice, "user")
	e.do(t, http.MethodPost, "/reactions", tok, reactionBody("like"))
	e.do(t, http.MethodPost, "/reactions", tok, reactionBody("bookmark"))

	rr := e.do(t, http.MethodGet, "/users/"+alice+"/reactions", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[reactionListResponse](t, rr).Reactions, 2)

	rr = e.do(t, http.MethodGet, "/users/"+alice+"/reactions?reaction_type=bookmark", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[reactionListResponse](t, rr).Reactions
	require.Len(t, list, 1)
	assert.Equal(t, "bookmark", list[0].ReactionType)

	rr = e.do(t, http.MethodGet, "/users/"+bob+"/reactions", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"reactions":[]`)
}

type failingComments struct {
	store.CommentStore
	err error
}

func (f failingComments) Count(context.Context, store.Target) (int64, error) { return 0, f.err }

type failingReactions struct {
	store.ReactionStore
	err error
}

func (f failingReactions) Create(context.Context, store.ReactionKey) (store.Reaction, bool, error) {
	return store.Reaction{}, false, f.err
}

func TestStoreErrorsMapToEnvelopes(t *testing.T) {
	svc := &Service{
		Comments:  failingComments{err: errors.New("db: connection pool not initialized")},
		Reactions: failingReactions{err: store.ErrReactionConflict},
	}
	r := chi.NewRouter()
	svc.Routes(r, verifier)
	e := &testEnv{router: r}

	rr := e.do(t, http.MethodGet, "/comments/count?content_type=story&content_id="+storyID, "", nil)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL", errorCode(t, rr))

	rr = e.do(t, http.MethodPost, "/reactions", token(t, alice, "user"), reactionBody("like"))
	require.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "REACTION_CONFLICT", errorCode(t, rr))
}

func TestCreateReaction_UUIDSpellingsShareOneRow(t *testing.T) {
	e := newEnv(t)
	tok := token(t, strings.ToUpper(alice), "user")

	body := reactionBody("like")
	body["content_id"] = strings.ToUpper(storyID)
	rr := e.do(t, http.MethodPost, "/reactions", tok, body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[store.Reaction](t, rr)
	assert.Equal(t, storyID, first.ContentID)
	assert.Equal(t, alice, first.UserID)

	body["content_id"] = "{" + storyID + "}"
	rr = e.do(t, http.MethodPost, "/reactions", token(t, alice, "user"), body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, first.ID, decode[store.Reaction](t, rr).ID)

	rr = e.do(t, http.MethodGet, "/reactions/story/"+strings.ToUpper(storyID)+"/like", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	n, err := e.reactions.Count(context.Background(), store.Target{ContentType: "story", ContentID: storyID}, "like")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestUpdateComment_UppercaseSubjectIsAuthor(t *testing.T) {
	e := newEnv(t)
	c := postComment(t, e, alice, "original", nil)

	rr := e.do(t, http.MethodPut, "/comments/"+strings.ToUpper(c.ID), token(t, strings.ToUpper(alice), "user"),
		map[string]string{"content": "edited"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "edited", decode[store.Comment](t, rr).Content)
}

func TestCreateComment_ReplyWithOtherUUIDSpelling(t *testing.T) {
	e := newEnv(t)
	parent := postComment(t, e, alice, "root", nil)
	rr := e.do(t, http.MethodPost, "/comments", token(t, bob, "user"), map[string]string{
		"content_type": "Story", "content_id": strings.ToUpper(storyID), "content": "reply",
		"parent_id": strings.ReplaceAll(parent.ID, "-", ""),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reply := decode[store.Comment](t, rr)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, parent.ID, *reply.ParentID)
	assert.Equal(t, storyID, reply.ContentID)
}
