package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/ebook-converter/internal/converter/formats"
	"github.com/romariotrain/ebook-converter/internal/converter/models"
	"github.com/romariotrain/ebook-converter/internal/converter/repository"
	"github.com/romariotrain/ebook-converter/internal/converter/service"
)

type testClient struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newTestClient(t *testing.T, maxUpload int64) *testClient {
	t.Helper()

	svc, err := service.New(service.Config{
		Repo:   repository.NewMemoryRepository(),
		Blobs:  repository.NewMemoryBlobStore(),
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	h := New(svc, maxUpload, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(h, RouterConfig{Logger: zerolog.Nop()}))
	t.Cleanup(func() {
		srv.Close()
		svc.Wait()
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testClient{
		t:   t,
		srv: srv,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *testClient) do(method, path string, body io.Reader, contentType string, jsonAccept bool) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if jsonAccept {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *testClient) upload(name, mediaType string, content []byte) *http.Response {
	c.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+name+`"`)
	if mediaType != "" {
		hdr.Set("Content-Type", mediaType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(c.t, err)
	_, err = part.Write(content)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())

	return c.do(http.MethodPost, "/file", &buf, mw.FormDataContentType(), true)
}

func (c *testClient) status() SessionResponse {
	c.t.Helper()
	resp := c.do(http.MethodGet, "/status", nil, "", true)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	return decode[SessionResponse](c.t, resp)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.do(http.MethodGet, "/health", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))

	resp = c.do(http.MethodPost, "/health", nil, "", false)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestFormats_List(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.do(http.MethodGet, "/formats", nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[[]formats.Format](t, resp)
	assert.Equal(t, formats.Catalog(), got)
}

func TestPage_RendersIdleSession(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.do(http.MethodGet, "/", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var found bool
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie {
			found = true
			assert.True(t, ck.HttpOnly)
		}
	}
	assert.True(t, found, "session cookie not set")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(body)
	assert.Contains(t, html, "E-book Format Converter")
	assert.Contains(t, html, "Convert Now")
	assert.Contains(t, html, `<button type="submit" disabled>`)
	assert.NotContains(t, html, `class="status`)

	resp = c.do(http.MethodGet, "/nope", nil, "", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSession_IsStickyAcrossRequests(t *testing.T) {
	c := newTestClient(t, 1<<20)

	first := c.status()
	second := c.status()
	assert.Equal(t, first.ID, second.ID)
}

func TestConvert_WithoutFileIsNoop(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.do(http.MethodPost, "/convert", nil, "", true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	st := c.status()
	assert.Equal(t, models.IdleStatus, st.Status)
	assert.Nil(t, st.Artifact)
	assert.Empty(t, st.Error)
	assert.False(t, st.View.Visible)
	assert.False(t, st.CanStart)

	// Browsers are sent back to the page.
	resp = c.do(http.MethodPost, "/convert", nil, "", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestSelectFile_Rejections(t *testing.T) {
	c := newTestClient(t, 16)

	resp := c.upload("photo.jpg", "image/jpeg", []byte("x"))
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp = c.upload("big.txt", "text/plain", bytes.Repeat([]byte("a"), 100))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)

	resp = c.do(http.MethodPost, "/file", strings.NewReader("plain"), "text/plain", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Nil(t, c.status().File)
}

func TestSetFormats(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.do(http.MethodPost, "/formats", strings.NewReader(`{"source":"pdf","target":"pdf"}`), "application/json", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[SessionResponse](t, resp)
	assert.Equal(t, "pdf", got.SourceFormat)
	assert.Equal(t, "pdf", got.TargetFormat)

	resp = c.do(http.MethodPost, "/formats", strings.NewReader(`{"target":"docx"}`), "application/json", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = c.do(http.MethodPost, "/formats", strings.NewReader(`{}`), "application/json", true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	form := url.Values{"target": {"mobi"}}
	resp = c.do(http.MethodPost, "/formats", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "mobi", c.status().TargetFormat)
}

func TestDownload_BeforeSuccess(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.do(http.MethodGet, "/download", nil, "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestClearFile(t *testing.T) {
	c := newTestClient(t, 1<<20)

	resp := c.upload("a.epub", "application/epub+zip", []byte("zip"))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/file/clear", nil, "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := decode[SessionResponse](t, resp)
	assert.Nil(t, st.File)
	assert.False(t, st.CanStart)
}

func TestEndToEnd_StoryTXT(t *testing.T) {
	c := newTestClient(t, 1<<20)
	content := []byte("It was a dark and stormy night.")

	resp := c.upload("story.TXT", "text/plain", content)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sel := decode[SessionResponse](t, resp)
	require.NotNil(t, sel.File)
	assert.Equal(t, "txt", sel.SourceFormat)
	assert.Equal(t, "txt", sel.File.DetectedAs)
	assert.True(t, sel.CanStart)

	resp = c.do(http.MethodPost, "/formats", strings.NewReader(`{"target":"fb2"}`), "application/json", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodPost, "/convert", nil, "", true)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	started := decode[SessionResponse](t, resp)
	assert.Equal(t, models.ConvertingStatus, started.Status)
	assert.False(t, started.CanStart)
	assert.Equal(t, "Converting your file...", started.View.Message)

	require.Eventually(t, func() bool {
		return c.status().Status == models.SuccessStatus
	}, 2*time.Second, 10*time.Millisecond)

	st := c.status()
	require.NotNil(t, st.Artifact)
	assert.Equal(t, "application/fb2", st.Artifact.MediaType)
	assert.Equal(t, int64(len(content)), st.Artifact.Size)
	assert.True(t, st.View.CanDownload)

	resp = c.do(http.MethodGet, "/download", nil, "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/fb2", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename=story.fb2`, resp.Header.Get("Content-Disposition"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, body)

	page := c.do(http.MethodGet, "/", nil, "", false)
	html, err := io.ReadAll(page.Body)
	require.NoError(t, err)
	assert.Contains(t, string(html), `href="/download"`)
	assert.Contains(t, string(html), "Conversion completed successfully!")
}

func TestRecovery(t *testing.T) {
	h := Recovery(zerolog.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{models.ErrUnsupportedFile, http.StatusUnsupportedMediaType},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{models.ErrUnknownFormat, http.StatusBadRequest},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrNoArtifact, http.StatusNotFound},
		{models.ErrNoFile, http.StatusConflict},
		{models.ErrConversionInProgress, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got, _ := errorStatus(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}
