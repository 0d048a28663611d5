package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"instapurr/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fetchFeed decodes a feed listing response.
func fetchFeed(t *testing.T, app *fiber.App, path, token string) (int, models.FeedResponse) {
	t.Helper()

	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var feed models.FeedResponse
	json.NewDecoder(resp.Body).Decode(&feed)
	return resp.StatusCode, feed
}

func postIDs(posts []models.PostView) []uint {
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestFeedPagination(t *testing.T) {
	app, _ := newTestApp(t)
	_, token := registerUser(t, app, "feed_cat", "secret1")

	const totalPosts = 25
	for i := 0; i < totalPosts; i++ {
		createPost(t, app, token, fmt.Sprintf("/uploads/cat%02d.jpg", i), fmt.Sprintf("cat %d", i))
	}

	status, page1 := fetchFeed(t, app, "/api/posts?page=1&limit=10", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, page1.Posts, 10)
	assert.Equal(t, int64(totalPosts), page1.Pagination.Total)
	assert.Equal(t, 1, page1.Pagination.Page)
	assert.Equal(t, 10, page1.Pagination.Limit)
	assert.Equal(t, 3, page1.Pagination.TotalPages)
	assert.True(t, page1.Pagination.HasMore)

	status, page2 := fetchFeed(t, app, "/api/posts?page=2&limit=10", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, page2.Posts, 10)

	// Pages are disjoint and together equal the first twenty posts
	seen := map[uint]bool{}
	for _, id := range postIDs(page1.Posts) {
		seen[id] = true
	}
	for _, id := range postIDs(page2.Posts) {
		assert.False(t, seen[id], "post %d appeared on both pages", id)
	}

	status, wide := fetchFeed(t, app, "/api/posts?page=1&limit=20", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, append(postIDs(page1.Posts), postIDs(page2.Posts)...), postIDs(wide.Posts))

	status, last := fetchFeed(t, app, "/api/posts?page=3&limit=10", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, last.Posts, 5)
	assert.False(t, last.Pagination.HasMore)

	// Newest posts come first
	require.NotEmpty(t, page1.Posts)
	for i := 1; i < len(page1.Posts); i++ {
		prev, cur := page1.Posts[i-1], page1.Posts[i]
		if prev.CreatedAt.Equal(cur.CreatedAt) {
			assert.Greater(t, prev.ID, cur.ID)
		} else {
			assert.True(t, prev.CreatedAt.After(cur.CreatedAt))
		}
	}
}

func TestFeedParameterClamping(t *testing.T) {
	app, _ := newTestApp(t)
	_, token := registerUser(t, app, "clamp_cat", "secret1")
	createPost(t, app, token, "/uploads/one.jpg", "only post")

	tests := []struct {
		name          string
		query         string
		expectedPage  int
		expectedLimit int
	}{
		{"Zero page", "?page=0&limit=10", 1, 10},
		{"Negative page", "?page=-3", 1, 10},
		{"Zero limit", "?limit=0", 1, 10},
		{"Negative limit", "?limit=-1", 1, 10},
		{"Oversized limit", "?limit=500", 1, 50},
		{"Non-numeric values", "?page=abc&limit=xyz", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, feed := fetchFeed(t, app, "/api/posts"+tt.query, "")
			require.Equal(t, fiber.StatusOK, status)
			assert.Equal(t, tt.expectedPage, feed.Pagination.Page)
			assert.Equal(t, tt.expectedLimit, feed.Pagination.Limit)
		})
	}
}

func TestFeedViewerLikeStatus(t *testing.T) {
	app, _ := newTestApp(t)
	likerID, likerToken := registerUser(t, app, "liker_cat", "secret1")
	_, posterToken := registerUser(t, app, "poster_cat", "secret1")

	postID := createPost(t, app, posterToken, "/uploads/liked.jpg", "like me")
	createPost(t, app, posterToken, "/uploads/ignored.jpg", "ignore me")

	status, _ := doJSON(t, app, "POST", "/api/likes/add", likerToken, map[string]uint{
		"postId": postID,
	})
	require.Equal(t, fiber.StatusOK, status)

	// Authenticated viewer sees their own like flag
	status, feed := fetchFeed(t, app, "/api/posts", likerToken)
	require.Equal(t, fiber.StatusOK, status)
	for _, p := range feed.Posts {
		if p.ID == postID {
			assert.True(t, p.IsLiked)
			assert.Equal(t, int64(1), p.LikesCount)
		} else {
			assert.False(t, p.IsLiked)
		}
	}

	// Anonymous viewer never sees is_liked set
	status, feed = fetchFeed(t, app, "/api/posts", "")
	require.Equal(t, fiber.StatusOK, status)
	for _, p := range feed.Posts {
		assert.False(t, p.IsLiked)
	}

	// The userId query parameter resolves the viewer without a token
	status, feed = fetchFeed(t, app, fmt.Sprintf("/api/posts?userId=%d", likerID), "")
	require.Equal(t, fiber.StatusOK, status)
	var found bool
	for _, p := range feed.Posts {
		if p.ID == postID {
			found = true
			assert.True(t, p.IsLiked)
		}
	}
	assert.True(t, found)
}

func TestUserAndLikedFeeds(t *testing.T) {
	app, _ := newTestApp(t)
	aliceID, aliceToken := registerUser(t, app, "alice_cat", "secret1")
	bobID, bobToken := registerUser(t, app, "bob_cat", "secret1")

	alicePost := createPost(t, app, aliceToken, "/uploads/a.jpg", "alice's cat")
	bobPost := createPost(t, app, bobToken, "/uploads/b.jpg", "bob's cat")

	status, _ := doJSON(t, app, "POST", "/api/likes/add", aliceToken, map[string]uint{
		"postId": bobPost,
	})
	require.Equal(t, fiber.StatusOK, status)

	status, feed := fetchFeed(t, app, fmt.Sprintf("/api/posts/user/%d", aliceID), "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, alicePost, feed.Posts[0].ID)
	assert.Equal(t, "alice_cat", feed.Posts[0].Author.Username)

	status, feed = fetchFeed(t, app, fmt.Sprintf("/api/posts/liked/%d", aliceID), "")
	require.Equal(t, fiber.StatusOK, status)
	require.Len(t, feed.Posts, 1)
	assert.Equal(t, bobPost, feed.Posts[0].ID)

	status, feed = fetchFeed(t, app, fmt.Sprintf("/api/posts/liked/%d", bobID), "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, feed.Posts)
	assert.Equal(t, int64(0), feed.Pagination.Total)
}

func TestCreatePost(t *testing.T) {
	app, _ := newTestApp(t)
	id, token := registerUser(t, app, "creator_cat", "secret1")

	status, body := doJSON(t, app, "POST", "/api/posts", token, map[string]any{
		"imagePath": "/uploads/new.jpg",
		"caption":   "fresh cat content",
	})
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, "/uploads/new.jpg", body["image_path"])
	assert.Equal(t, "fresh cat content", body["caption"])
	assert.Equal(t, float64(0), body["likes_count"])

	author := body["author"].(map[string]any)
	assert.Equal(t, "creator_cat", author["username"])

	// imagePath is mandatory
	status, _ = doJSON(t, app, "POST", "/api/posts", token, map[string]any{
		"caption": "no image",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)

	// Posting on behalf of another user is rejected
	status, _ = doJSON(t, app, "POST", "/api/posts", token, map[string]any{
		"userId":    id + 1,
		"imagePath": "/uploads/x.jpg",
	})
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestDeletePost(t *testing.T) {
	app, _ := newTestApp(t)
	_, ownerToken := registerUser(t, app, "owner_cat", "secret1")
	_, otherToken := registerUser(t, app, "envious_cat", "secret1")

	postID := createPost(t, app, ownerToken, "/uploads/gone.jpg", "short lived")
	path := fmt.Sprintf("/api/posts/%d", postID)

	status, _ := doJSON(t, app, "DELETE", path, otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = doJSON(t, app, "DELETE", path, ownerToken, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = doJSON(t, app, "GET", path, "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = doJSON(t, app, "DELETE", "/api/posts/9999", ownerToken, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

// uploadRequest builds a multipart body with a single "image" part.
func uploadRequest(t *testing.T, filename, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return &buf, writer.FormDataContentType()
}

// Leading bytes that http.DetectContentType identifies as each format.
func imageBytes(magic string, size int) []byte {
	payload := make([]byte, size)
	copy(payload, magic)
	return payload
}

const (
	jpegMagic = "\xff\xd8\xff\xe0"
	pngMagic  = "\x89PNG\r\n\x1a\n"
	gifMagic  = "GIF89a"
	webpMagic = "RIFF\x00\x00\x00\x00WEBPVP8 "
)

func TestUploadImage(t *testing.T) {
	app, srv := newTestApp(t)
	_, token := registerUser(t, app, "upload_cat", "secret1")

	tests := []struct {
		name           string
		filename       string
		contentType    string
		payload        []byte
		expectedStatus int
		expectedExt    string
	}{
		{"JPEG accepted", "cat.jpg", "image/jpeg", imageBytes(jpegMagic, 64), fiber.StatusCreated, ".jpg"},
		{"PNG accepted", "cat.png", "image/png", imageBytes(pngMagic, 64), fiber.StatusCreated, ".png"},
		{"GIF accepted", "cat.gif", "image/gif", imageBytes(gifMagic, 64), fiber.StatusCreated, ".gif"},
		{"WebP accepted", "cat.webp", "image/webp", imageBytes(webpMagic, 64), fiber.StatusCreated, ".webp"},
		{"Extension follows content not filename", "cat.html", "image/png", imageBytes(pngMagic, 64), fiber.StatusCreated, ".png"},
		{"HTML declared as JPEG rejected", "cat.jpg", "image/jpeg", []byte("<html><script>alert(1)</script></html>"), fiber.StatusBadRequest, ""},
		{"PDF rejected", "cat.pdf", "application/pdf", []byte("%PDF-1.4"), fiber.StatusBadRequest, ""},
		{"Plain text rejected", "cat.txt", "text/plain", []byte("hello"), fiber.StatusBadRequest, ""},
		{"Oversized file rejected", "big.jpg", "image/jpeg", imageBytes(jpegMagic, maxUploadBytes+1), fiber.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, formContentType := uploadRequest(t, tt.filename, tt.contentType, tt.payload)

			req := httptest.NewRequest("POST", "/api/posts/upload", body)
			req.Header.Set("Content-Type", formContentType)
			req.Header.Set("Authorization", "Bearer "+token)

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == fiber.StatusCreated {
				var decoded map[string]any
				json.NewDecoder(resp.Body).Decode(&decoded)

				filePath, ok := decoded["file_path"].(string)
				require.True(t, ok)
				assert.True(t, strings.HasPrefix(filePath, "/uploads/"))
				assert.Equal(t, tt.expectedExt, filepath.Ext(filePath))

				// The file landed in the configured upload directory
				stored := filepath.Join(srv.config.UploadDir, strings.TrimPrefix(filePath, "/uploads/"))
				info, err := os.Stat(stored)
				require.NoError(t, err)
				assert.Equal(t, int64(len(tt.payload)), info.Size())
			}
		})
	}

	// No file at all
	req := httptest.NewRequest("POST", "/api/posts/upload", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetPost(t *testing.T) {
	app, _ := newTestApp(t)
	_, token := registerUser(t, app, "single_cat", "secret1")
	postID := createPost(t, app, token, "/uploads/solo.jpg", "one cat")

	status, body := doJSON(t, app, "GET", fmt.Sprintf("/api/posts/%d", postID), "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, float64(postID), body["id"])
	assert.Equal(t, "/uploads/solo.jpg", body["image_path"])

	status, _ = doJSON(t, app, "GET", "/api/posts/9999", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}
