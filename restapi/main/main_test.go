package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sharedcode/dsync"
)

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("DSYNC_DEPLOYMENT", "")
	opts, err := optionsFromEnv()
	if err != nil || opts.Type != dsync.Standalone || opts.RedisConfig != nil {
		t.Fatalf("expected standalone, got %+v, %v", opts, err)
	}

	t.Setenv("DSYNC_DEPLOYMENT", "clustered_cassandra")
	t.Setenv("DSYNC_CASSANDRA_HOSTS", "c1:9042,c2:9042")
	opts, err = optionsFromEnv()
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if opts.RedisConfig.Address != "localhost:6379" || len(opts.CassandraConfig.ClusterHosts) != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}

	t.Setenv("DSYNC_DEPLOYMENT", "mesh")
	if _, err := optionsFromEnv(); err == nil {
		t.Fatalf("expected error for unknown deployment")
	}
}

func TestVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newContext := func(auth string) (*gin.Context, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if auth != "" {
			c.Request.Header.Set("Authorization", auth)
		}
		return c, w
	}

	t.Setenv("DSYNC_ENV", "DEV")
	if c, _ := newContext(""); !verify(c) {
		t.Fatalf("DEV must bypass verification")
	}

	t.Setenv("DSYNC_ENV", "QA")
	t.Setenv("DSYNC_QA_TOKEN", "secret")
	if c, _ := newContext("Bearer secret"); !verify(c) {
		t.Fatalf("QA token must be accepted")
	}
	c, w := newContext("")
	if verify(c) || w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token must be unauthorized, got %d", w.Code)
	}
}
