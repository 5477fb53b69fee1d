package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	bidding "auction-house/internal/biddingService"
	"auction-house/internal/identity"
	model "auction-house/internal/models"
	"auction-house/internal/notify"
	"auction-house/internal/repository"
	"auction-house/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type testStore interface {
	repository.AuctionDB
	repository.Seeder
}

// storeFactories lists every backend that runs without external services
var storeFactories = map[string]func(t *testing.T) testStore{
	"memory": func(t *testing.T) testStore { return repository.NewMemoryRepo() },
	"sqlite": func(t *testing.T) testStore {
		repo, err := repository.OpenSQLite(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	},
}

// testApp is a fully wired application around one store
type testApp struct {
	router *gin.Engine
	store  testStore
	hub    *notify.Hub
	fanout *notify.Fanout
}

// Demo sessions: "Bearer <user id>"
var testUsers = []model.User{
	{UserID: "alice", Username: "Alice"},
	{UserID: "bob", Username: "Bob"},
	{UserID: "seller", Username: "Seller"},
}

// SetupTestApp initializes the router and seeds the store with auctions.
func SetupTestApp(t *testing.T, store testStore, auctions ...model.Auction) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	for _, a := range auctions {
		require.NoError(t, store.AddAuction(context.Background(), a))
	}

	sessions := identity.NewMemoryProvider()
	for _, u := range testUsers {
		sessions.AddSession(u.UserID, u)
	}

	hub := notify.NewHub()
	fanout := notify.NewFanout(hub, store, time.Second)
	service := bidding.NewBiddingService(store, fanout)

	router := server.SetupRouter(server.Deps{
		Service:  service,
		Events:   hub,
		Identity: sessions,
	})
	return &testApp{router: router, store: store, hub: hub, fanout: fanout}
}

func openAuction(id string, startingBid float64) model.Auction {
	return model.Auction{
		AuctionID:   id,
		Title:       "title-" + id,
		StartingBid: startingBid,
		SellerID:    "seller",
		EndTime:     time.Now().UTC().Add(time.Hour),
	}
}

// ExecuteRequestAndParse executes an HTTP request as user (empty for anonymous)
// and parses the response body
func (a *testApp) ExecuteRequestAndParse(t *testing.T, method, url, user string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case string:
		reqBody = []byte(v)
	default:
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	a.router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}
