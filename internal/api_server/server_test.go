package apiserver_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	api "github.com/paperlane/paperlane/api/v1alpha1"
	apiserver "github.com/paperlane/paperlane/internal/api_server"
	"github.com/paperlane/paperlane/internal/auth"
	"github.com/paperlane/paperlane/internal/config"
	"github.com/paperlane/paperlane/internal/engine/enginetest"
	"github.com/paperlane/paperlane/internal/store"
	"github.com/paperlane/paperlane/pkg/storage"
)

var _ = Describe("api server", func() {
	var (
		cfg      *config.Config
		s        store.Store
		services *apiserver.Services
		handler  http.Handler
	)

	BeforeEach(func() {
		cfg = config.NewDefault()
		cfg.Service.Engine.APIKey = "engine-key"
		cfg.Service.Auth.AuthenticationType = auth.NoneAuthentication

		db, err := store.InitDB(cfg)
		Expect(err).To(BeNil())
		s = store.NewStore(db)
		Expect(s.InitialMigration(context.TODO())).To(Succeed())
		Expect(s.Seed(context.TODO())).To(Succeed())

		services, err = apiserver.NewServices(cfg, s,
			apiserver.WithEngineClient(enginetest.New()),
			apiserver.WithFileReader(storage.NewLocalReader(GinkgoT().TempDir())),
		)
		Expect(err).To(BeNil())

		handler, err = apiserver.New(cfg, s, services, nil).Router(nil)
		Expect(err).To(BeNil())
	})

	AfterEach(func() {
		_ = services.Close()
		_ = s.Close()
	})

	serve := func(req *http.Request) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	It("serves health without authentication", func() {
		rr := serve(httptest.NewRequest(http.MethodGet, "/health", nil))
		Expect(rr.Code).To(Equal(http.StatusOK))
	})

	It("serves the authenticated api", func() {
		rr := serve(httptest.NewRequest(http.MethodGet, "/api/v1/packages", nil))
		Expect(rr.Code).To(Equal(http.StatusOK))

		var packages api.PackageList
		Expect(json.Unmarshal(rr.Body.Bytes(), &packages)).To(Succeed())
		Expect(packages).To(HaveLen(3))
	})

	It("guards the engine callback with the api key", func() {
		body := `{"job_id": "job-unknown", "state": "COMPLETED"}`

		req := httptest.NewRequest(http.MethodPost, "/api/v1/engine/callbacks", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		Expect(serve(req).Code).To(Equal(http.StatusUnauthorized))

		req = httptest.NewRequest(http.MethodPost, "/api/v1/engine/callbacks", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(auth.APIKeyHeader, "engine-key")
		Expect(serve(req).Code).To(Equal(http.StatusNotFound))
	})

	It("answers cors preflight for allowed origins", func() {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/packages", nil)
		req.Header.Set("Origin", cfg.Service.AllowedOrigins[0])
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rr := serve(req)
		Expect(rr.Header().Get("Access-Control-Allow-Origin")).To(Equal(cfg.Service.AllowedOrigins[0]))
	})

	It("serves metrics until the context is cancelled", func() {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())

		metricServer := apiserver.NewMetricServer(listener.Addr().String(), listener, s)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- metricServer.Run(ctx) }()

		Eventually(func() int {
			resp, err := http.Get("http://" + listener.Addr().String() + "/metrics")
			if err != nil {
				return 0
			}
			defer resp.Body.Close()
			return resp.StatusCode
		}).Should(Equal(http.StatusOK))

		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
})
