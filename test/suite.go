package test

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bistro-tech/bistro/core/access"
	"github.com/bistro-tech/bistro/core/backend"
	"github.com/bistro-tech/bistro/core/client"
	"github.com/bistro-tech/bistro/core/csql"
	"github.com/bistro-tech/bistro/core/logger"
	"github.com/bistro-tech/bistro/core/store"
)

// ServiceTestSuite runs the backend against a real postgres, started as
// a throwaway container. Requests go straight to the mux router through
// the in-process client.
type ServiceTestSuite struct {
	suite.Suite

	postgresContainer testcontainers.Container
	db                *csql.DB
	router            *mux.Router
	tokens            *access.TokenService
	store             *store.Store
}

func (s *ServiceTestSuite) SetupSuite() {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "docker",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	s.Require().NoError(err)
	s.postgresContainer = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	dataSource := fmt.Sprintf("host=%s port=%s user=postgres password=docker dbname=postgres sslmode=disable",
		host, port.Port())
	s.db = csql.OpenWithSchema(dataSource, "bistro_test")

	s.router = mux.NewRouter()
	logger.AddRequestID(s.router)
	s.tokens = access.NewTokenService("integration-test-secret", 0)
	s.store = store.MustNew(s.db)
	backend.New(&backend.Builder{
		Store:  s.store,
		Tokens: s.tokens,
		Router: s.router,
	})
}

func (s *ServiceTestSuite) TearDownSuite() {
	if s.db != nil {
		s.db.ClearSchema()
		s.db.Close()
	}
	if s.postgresContainer != nil {
		s.postgresContainer.Terminate(context.Background())
	}
}

func (s *ServiceTestSuite) client() client.Client {
	return client.NewWithRouter(s.router)
}

func (s *ServiceTestSuite) tokenFor(email string) string {
	result := map[string]string{}
	_, err := s.client().RawPost("/jwt", store.Document{"email": email}, &result)
	s.Require().NoError(err)
	s.Require().NotEmpty(result["token"])
	return result["token"]
}

// seedAdmin stores an admin user record directly and returns a token.
func (s *ServiceTestSuite) seedAdmin(email string) string {
	_, err := s.store.Users.Insert(context.Background(),
		store.Document{"email": email, "role": "admin"})
	s.Require().NoError(err)
	return s.tokenFor(email)
}
