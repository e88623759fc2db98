package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quiz-night-service/internal/answerkey"
	"quiz-night-service/internal/app"
	"quiz-night-service/internal/domain"
	pgstore "quiz-night-service/internal/infra/postgres"
	pgmigrations "quiz-night-service/internal/infra/postgres/migrations"
	redisstore "quiz-night-service/internal/infra/redis"
)

func TestPostgresSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	require.NoError(t, err)
	defer pool.Close()

	playSession(t, ctx, app.NewQuizService(pgstore.NewRecordStore(pool), app.Options{MaxRound: 10}))

	// A fresh service over the same table sees everything.
	restarted := app.NewQuizService(pgstore.NewRecordStore(pool), app.Options{MaxRound: 10})
	assertSession(t, ctx, restarted)

	require.NoError(t, restarted.ResetSession(ctx))
	teams, err := restarted.Teams(ctx)
	require.NoError(t, err)
	assert.Empty(t, teams)
	key, err := restarted.AnswerKey(ctx)
	require.NoError(t, err)
	assert.Contains(t, key, "round_1", "reset keeps the answer key")
}

func TestRedisSessionSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	client, err := redisClientFromURL(redisURL)
	require.NoError(t, err)
	defer client.Close()

	playSession(t, ctx, app.NewQuizService(redisstore.NewRecordStore(client, "it:"), app.Options{MaxRound: 10}))
	assertSession(t, ctx, app.NewQuizService(redisstore.NewRecordStore(client, "it:"), app.Options{MaxRound: 10}))
}

func playSession(t *testing.T, ctx context.Context, service *app.QuizService) {
	t.Helper()
	for _, name := range []string{"Owls", "Bats"} {
		_, err := service.RegisterTeam(ctx, name)
		require.NoError(t, err)
	}
	round, closed := 1, false
	_, err := service.SetRoundState(ctx, &round, &closed)
	require.NoError(t, err)

	_, err = service.SubmitAnswers(ctx, "Owls", domain.Answers{"paris", "42"}, 1)
	require.NoError(t, err)
	_, err = service.SubmitAnswers(ctx, "Owls", domain.Answers{"rome"}, 1)
	require.ErrorIs(t, err, domain.ErrDuplicateSubmission)

	require.NoError(t, service.SaveAnswerKey(ctx, 1, answerkey.FromList([]string{"paris", "42"})))
	require.NoError(t, service.SaveScores(ctx, domain.ScoreTable{"Owls": []byte(`{"round_1":2}`)}))
}

func assertSession(t *testing.T, ctx context.Context, service *app.QuizService) {
	t.Helper()
	teams, err := service.Teams(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Owls", "Bats"}, teams)

	state, err := service.RoundState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundState{Round: 1, Closed: false}, state)

	answers, err := service.Answers(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Answers{"paris", "42"}, answers["round_1"]["Owls"].Answers)

	key, err := service.AnswerKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"question_1": "paris", "question_2": "42"}, key["round_1"])

	scores, err := service.Scores(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"round_1":2}`, string(scores["Owls"]))
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err := migrator.Migrate(ctx)
	require.NoError(t, err)
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests skipped in short mode")
	}
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
