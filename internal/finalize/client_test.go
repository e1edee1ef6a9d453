package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deedwizard/internal/platform/logger"
	"deedwizard/pkg/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{WithClientLogger(logger.Discard())}, opts...)
	return NewClient(srv.URL, 2*time.Second, opts...)
}

func TestCreateDeedRequest(t *testing.T) {
	var got Payload
	var header http.Header
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/deeds", r.URL.Path)
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"deed-1"}`))
	}, WithTokenSource(StaticToken("secret")))

	meta := Meta{Source: "wizard-classic", ClientFlow: "classic", UIComponent: "finalize-button", BuildSHA: "abc", RequestID: "req-9"}
	ref, err := client.CreateDeed(context.Background(), Payload{DocumentType: domain.DocumentGrantDeed, GrantorName: "JOHN DOE", Source: "wizard-classic"}, meta)
	require.NoError(t, err)

	assert.Equal(t, domain.DeedID("deed-1"), ref.ID)
	assert.Equal(t, domain.DocumentGrantDeed, ref.DocumentType)
	assert.Equal(t, "JOHN DOE", got.GrantorName)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "Bearer secret", header.Get("Authorization"))
	assert.Equal(t, "classic", header.Get(HeaderClientFlow))
	assert.Equal(t, "finalize-button", header.Get(HeaderUIComponent))
	assert.Equal(t, "abc", header.Get(HeaderBuildSHA))
	assert.Equal(t, "req-9", header.Get(HeaderRequestID))
}

func TestCreateDeedWithoutTokenOmitsAuthorization(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"deed-1"}`))
	}, WithTokenSource(StaticToken("")))

	_, err := client.CreateDeed(context.Background(), Payload{}, Meta{})
	require.NoError(t, err)
}

func TestCreateDeedIDAliases(t *testing.T) {
	bodies := map[string]string{
		"id":          `{"id":"d-1"}`,
		"deedId":      `{"deedId":"d-1"}`,
		"deed_id":     `{"deed_id":"d-1"}`,
		"data.id":     `{"data":{"id":"d-1"}}`,
		"numeric id":  `{"id":17}`,
		"blank first": `{"id":"","deedId":"d-1"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			ref, err := client.CreateDeed(context.Background(), Payload{}, Meta{})
			require.NoError(t, err)
			assert.NotEmpty(t, ref.ID)
		})
	}

	t.Run("no id is an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		_, err := client.CreateDeed(context.Background(), Payload{}, Meta{})
		require.Error(t, err)
	})
}

func TestCreateDeedFailureIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"validation_error","message":"County not served"}`))
	})

	_, err := client.CreateDeed(context.Background(), Payload{}, Meta{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "County not served", se.Message)
	assert.False(t, se.ServerError())
	assert.Equal(t, int32(1), calls.Load())
}

func TestBackendMessage(t *testing.T) {
	assert.Equal(t, "bad apn", backendMessage([]byte(`{"error_description":"bad apn"}`)))
	assert.Equal(t, "plain text failure", backendMessage([]byte("  plain text failure\n")))
	assert.Equal(t, "", backendMessage(nil))
}

func TestGenerateDocument(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/deeds/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	})

	doc, err := client.GenerateDocument(context.Background(), Payload{}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, []byte("%PDF-1.7"), doc.Body)
}
