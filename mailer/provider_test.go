package mailer

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conecte/models"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func batchMessages(n int) []Message {
	msgs := make([]Message, n)
	for i := range msgs {
		msgs[i] = Message{
			LogID:   fmt.Sprintf("log-%d", i),
			To:      fmt.Sprintf("lead%d@example.com", i),
			Subject: "Hi",
			HTML:    "<p>Hi</p>",
		}
	}
	return msgs
}

func newProvider(endpoint string) *ProviderTransport {
	return NewProviderTransport(models.Config{
		Method:            models.MethodProvider,
		ProviderAPIKey:    "test-key",
		ProviderEndpoint:  endpoint,
		ProviderFromEmail: "news@example.com",
		SenderName:        "News",
	}, testLogger())
}

func TestProviderSendAssignsIDsByPosition(t *testing.T) {
	var gotAuth string
	var gotPayload []providerEmail
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/emails/batch", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		ids := make([]map[string]string, len(gotPayload))
		for i := range ids {
			ids[i] = map[string]string{"id": fmt.Sprintf("prov-%d", i)}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": ids})
	}))
	defer srv.Close()

	msgs := batchMessages(3)
	results := newProvider(srv.URL).Send(msgs)

	assert.Equal(t, "Bearer test-key", gotAuth)
	require.Len(t, gotPayload, 3)
	assert.Equal(t, "News <news@example.com>", gotPayload[0].From)
	assert.Equal(t, []string{"lead0@example.com"}, gotPayload[0].To)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.NoError(t, res.Err)
		assert.Equal(t, msgs[i].LogID, res.LogID)
		assert.Equal(t, fmt.Sprintf("prov-%d", i), res.ProviderID)
	}
}

func TestProviderSendFailsWholeBatchOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	results := newProvider(srv.URL).Send(batchMessages(2))

	require.Len(t, results, 2)
	for _, res := range results {
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "401")
		assert.Empty(t, res.ProviderID)
	}
}

func TestProviderSendDegradesOnShortResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// One id for two messages: correlation is dropped, sends still count.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"id": "only-one"}},
		})
	}))
	defer srv.Close()

	results := newProvider(srv.URL).Send(batchMessages(2))

	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Empty(t, res.ProviderID)
	}
}

func TestProviderSendDegradesOnMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	results := newProvider(srv.URL).Send(batchMessages(1))

	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Empty(t, results[0].ProviderID)
}

func TestProviderSendUnreachableEndpoint(t *testing.T) {
	results := newProvider("http://127.0.0.1:1").Send(batchMessages(2))

	require.Len(t, results, 2)
	for _, res := range results {
		assert.Error(t, res.Err)
	}
}

func TestProviderBatchSize(t *testing.T) {
	assert.Equal(t, 100, newProvider("").BatchSize())
}

func TestForConfigSelectsTransport(t *testing.T) {
	smtp, err := ForConfig(models.Config{Method: models.MethodSMTP}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "smtp", smtp.Name())
	assert.Equal(t, 1, smtp.BatchSize())

	provider, err := ForConfig(models.Config{Method: models.MethodProvider}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "provider", provider.Name())

	_, err = ForConfig(models.Config{Method: "carrier-pigeon"}, testLogger())
	assert.Error(t, err)
}
