//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/shotaf-bot/shotaf/internal/api"
	"github.com/shotaf-bot/shotaf/internal/auth"
	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/notes"
	"github.com/shotaf-bot/shotaf/internal/tasks"
	"github.com/shotaf-bot/shotaf/internal/usermemory"
	"github.com/shotaf-bot/shotaf/internal/users"
)

// CaptureSender records outgoing WhatsApp messages instead of calling
// the Green API.
type CaptureSender struct {
	mu   sync.Mutex
	Sent []CapturedMessage
	Fail bool
}

type CapturedMessage struct {
	Phone string
	Text  string
}

func (c *CaptureSender) Send(_ context.Context, phone, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return fmt.Errorf("simulated send failure")
	}
	c.Sent = append(c.Sent, CapturedMessage{Phone: phone, Text: text})
	return nil
}

func (c *CaptureSender) Last() (CapturedMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return CapturedMessage{}, false
	}
	return c.Sent[len(c.Sent)-1], true
}

func (c *CaptureSender) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = nil
	c.Fail = false
}

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Sender      *CaptureSender
	UserSvc     *users.Service
	UserRepo    *users.PostgresRepository
	TaskRepo    *tasks.PostgresRepository
	NoteRepo    *notes.PostgresRepository
	MemoryRepo  *usermemory.PostgresRepository
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:0.8.1-pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "shotaf_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/shotaf_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	m, err := migrate.New(fmt.Sprintf("file://%s", getMigrationsPath()), dsn)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	sender := &CaptureSender{}

	encryptor, err := auth.NewEncryptor("0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("creating encryptor: %v", err)
	}

	userRepo := users.NewPostgresRepository(pool)
	userSvc := users.NewService(userRepo, encryptor)

	jwtManager := auth.NewJWTManager(
		"test-access-secret-32-chars-long!!",
		"test-refresh-secret-32-chars-long!",
		15*time.Minute, 7*24*time.Hour,
	)
	authSvc := auth.NewService(jwtManager, redisClient, sender, userSvc)
	authHandler := auth.NewHandler(authSvc)

	taskRepo := tasks.NewPostgresRepository(pool)
	taskSvc := tasks.NewService(taskRepo, testResolver(t))
	taskHandler := tasks.NewHandler(taskSvc)

	noteRepo := notes.NewPostgresRepository(pool)
	noteSvc := notes.NewService(noteRepo)
	noteHandler := notes.NewHandler(noteSvc)

	memoryRepo := usermemory.NewPostgresRepository(pool)
	memorySvc := usermemory.NewService(memoryRepo)
	memoryHandler := usermemory.NewHandler(memorySvc)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		Webhook: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },

		RequestCode: authHandler.RequestCode,
		Verify:      authHandler.Verify,
		Refresh:     authHandler.Refresh,
		Logout:      authHandler.Logout,

		ListTasks:  taskHandler.List,
		GetTask:    taskHandler.Get,
		DeleteTask: taskHandler.Delete,

		ListNotes:  noteHandler.List,
		GetNote:    noteHandler.Get,
		DeleteNote: noteHandler.Delete,

		GetMemory: memoryHandler.Get,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	server := httptest.NewServer(router)
	t.Cleanup(func() { server.Close() })

	testEnv = &TestEnv{
		Pool:        pool,
		RedisClient: redisClient,
		Server:      server,
		Sender:      sender,
		UserSvc:     userSvc,
		UserRepo:    userRepo,
		TaskRepo:    taskRepo,
		NoteRepo:    noteRepo,
		MemoryRepo:  memoryRepo,
	}
	return testEnv
}

func testResolver(t *testing.T) *clock.Resolver {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		t.Fatalf("loading timezone: %v", err)
	}
	return clock.NewResolver(loc)
}

func getMigrationsPath() string {
	paths := []string{
		"../../migrations",
		"../../../migrations",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	log.Fatal("migrations directory not found")
	return ""
}

// Helper functions

// CreateAuthorizedUser provisions a user the way an operator would:
// first contact creates the row, then authorization is flipped on.
func CreateAuthorizedUser(t *testing.T, env *TestEnv, phone string) string {
	t.Helper()
	ctx := context.Background()

	user, err := env.UserSvc.EnsureByPhone(ctx, phone)
	if err != nil {
		t.Fatalf("creating user: %v", err)
	}
	if err := env.UserRepo.SetAuthorized(ctx, user.ID, true); err != nil {
		t.Fatalf("authorizing user: %v", err)
	}
	return user.ID
}

// LoginUser runs the OTP flow end to end and returns an access token.
func LoginUser(t *testing.T, env *TestEnv, phone string) string {
	t.Helper()

	resp := DoRequest(t, env, "POST", "/api/v1/auth/request-code", map[string]string{"phone": phone}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request-code failed: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	code := ExtractCode(t, env, phone)
	resp = DoRequest(t, env, "POST", "/api/v1/auth/verify", map[string]string{"phone": phone, "code": code}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify failed: status %d", resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}

// ExtractCode pulls the 6-digit OTP out of the captured WhatsApp message.
func ExtractCode(t *testing.T, env *TestEnv, phone string) string {
	t.Helper()
	env.Sender.mu.Lock()
	defer env.Sender.mu.Unlock()
	for i := len(env.Sender.Sent) - 1; i >= 0; i-- {
		msg := env.Sender.Sent[i]
		if msg.Phone != phone {
			continue
		}
		fields := strings.Fields(msg.Text)
		code := fields[len(fields)-1]
		if len(code) == 6 {
			return code
		}
	}
	t.Fatalf("no login code sent to %s", phone)
	return ""
}

func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	return resp
}

func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("parsing response: %v", err)
	}
	return result
}
