package util

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sia_backend/internal/model"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "a@example.com"}
	user.ID = "user-1"

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestParseJWTRejects(t *testing.T) {
	user := &model.User{}
	user.ID = "user-1"

	expired, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ParseJWT(foreign, "secret")
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	noUser, err := GenerateJWT(&model.User{}, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(noUser, "secret")
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ErrActivityNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", ErrActivityItemNotFound), http.StatusNotFound},
		{errors.Join(ErrInvalidAnswer, errors.New("missing text")), http.StatusBadRequest},
		{ErrItemTerminated, http.StatusBadRequest},
		{ErrPermissionDenied, http.StatusForbidden},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrEmailRegistered, http.StatusConflict},
		{ErrGenerationLimit, http.StatusTooManyRequests},
		{errors.Join(ErrUpstreamFailure, errors.New("503")), http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestHandleErrorHidesServerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	HandleError(c, errors.Join(ErrItemTerminated, errors.New("row 42")))

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, ErrItemTerminated.Error(), resp.Message)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	HandleError(c, errors.Join(ErrStorageFailure, errors.New("dsn=postgres://secret")))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestSniffRecordingType(t *testing.T) {
	wav := append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 64)...)
	r := bytes.NewReader(wav)
	mimeType, err := SniffRecordingType(r)
	require.NoError(t, err)
	assert.Contains(t, mimeType, "audio/")
	pos, _ := r.Seek(0, 1)
	assert.Zero(t, pos)

	_, err = SniffRecordingType(bytes.NewReader([]byte("just some text")))
	assert.ErrorIs(t, err, ErrInvalidRecording)
}

func TestParseProbeOutput(t *testing.T) {
	out := `{
		"streams": [
			{"codec_type": "video", "codec_name": "vp8"},
			{"codec_type": "audio", "codec_name": "opus", "sample_rate": "48000", "channels": 1}
		],
		"format": {"duration": "3.250000", "format_name": "matroska,webm"}
	}`
	info, err := parseProbeOutput(out)
	require.NoError(t, err)
	assert.Equal(t, "opus", info.Codec)
	assert.Equal(t, 48000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	assert.InDelta(t, 3.25, info.Duration, 1e-9)
	assert.Equal(t, "matroska", info.Format)

	_, err = parseProbeOutput(`{"streams": [{"codec_type": "video"}], "format": {}}`)
	assert.Error(t, err)
}
