package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/songgate/internal/models"
	"github.com/javajoker/songgate/internal/services"
)

func TestClientReportSendsSelectorAndCaller(t *testing.T) {
	caller := uuid.New()
	buyer := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, caller.String(), r.Header.Get(CallerListingHeader))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a1b2c3d4", body["selector"])
		assert.Equal(t, buyer.String(), body["buyer"])
		assert.Equal(t, "10", body["value"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":{"content_name":"Song","amount":"10"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret", time.Second, nil)
	receipt, err := client.Report(context.Background(), services.ReportCall{
		Caller: caller,
		Buyer:  buyer,
		Value:  models.NewAmount(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "Song", receipt.ContentName)
	assert.True(t, receipt.Amount.Equal(models.NewAmount(10)))
}

func TestClientReportFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non 2xx",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "success false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"success":false,"error":{"code":"FULL","message":"no room"}}`))
			},
		},
		{
			name: "garbage body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				time.Sleep(200 * time.Millisecond)
				w.Write([]byte(`{"success":true}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			client := NewClient(srv.URL, "", 50*time.Millisecond, nil)
			_, err := client.Report(context.Background(), services.ReportCall{
				Caller: uuid.New(),
				Buyer:  uuid.New(),
				Value:  models.NewAmount(1),
			})
			assert.Error(t, err)
		})
	}
}

func TestClientReportRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(srv.URL, "", time.Second, nil)
	_, err := client.Report(ctx, services.ReportCall{Caller: uuid.New(), Buyer: uuid.New()})
	assert.Error(t, err)
}
