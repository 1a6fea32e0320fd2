package goGuard_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	cfg := goGuard.DefaultConfig()
	cfg.Token.PublicKey = []byte("-----BEGIN PUBLIC KEY-----\n...")
	cfg.RateLimit.Policies["/api/login"] = goGuard.RatePolicy{
		Limit:         5,
		Window:        time.Minute,
		BlockDuration: 15 * time.Minute,
	}
	cfg.Routes = []goGuard.Route{
		{Prefix: "/api/login", Login: true},
		{Prefix: "/api/admin", RequireAuth: true, Action: "delete", Resource: "users"},
		{Prefix: "/api", RequireAuth: true},
	}

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithRoles(map[string][]string{
			"admin":  {"*:*"},
			"editor": {"read:*", "update:posts"},
		}).
		Build()
	if err != nil {
		return
	}
	defer engine.Close()
}

// ExampleEngine_Evaluate walks one token through the pipeline.
func ExampleEngine_Evaluate() {
	mr, _ := miniredis.Run()
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	cfg := goGuard.DefaultConfig()
	cfg.Token.PrivateKey = priv
	cfg.Token.PublicKey = pub
	cfg.Routes = []goGuard.Route{
		{Prefix: "/posts", RequireAuth: true, Action: "delete", Resource: "posts"},
	}

	engine, err := goGuard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAuditSink(goGuard.NoOpSink{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer engine.Close()

	ctx := context.Background()
	route, _ := engine.RouteFor("/posts/7")
	for _, role := range []string{"guest", "moderator"} {
		token, _, _ := engine.IssueToken("u-"+role, role)
		d := engine.Evaluate(ctx, goGuard.RequestContext{
			IP:     "198.51.100.4",
			Path:   "/posts/7",
			Method: http.MethodDelete,
			Token:  token,
		}, route)
		fmt.Println(role, d.Status, d.State)
	}

	d := engine.Evaluate(ctx, goGuard.RequestContext{IP: "198.51.100.4", Path: "/posts/7"}, route)
	fmt.Println("anonymous", d.Status, d.State)

	// Output:
	// guest 403 rejected
	// moderator 200 forwarded
	// anonymous 401 rejected
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *goGuard.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot.Counters[goGuard.MetricRateLimited]
}
