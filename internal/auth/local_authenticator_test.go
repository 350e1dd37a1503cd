package auth_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/paperlane/paperlane/internal/auth"
)

var _ = Describe("local authentication", func() {
	var authenticator *auth.LocalAuthenticator

	BeforeEach(func() {
		var err error
		authenticator, err = auth.NewLocalAuthenticator([]byte("s3cr3t"))
		Expect(err).To(BeNil())
	})

	It("requires a secret", func() {
		_, err := auth.NewLocalAuthenticator(nil)
		Expect(err).ToNot(BeNil())
	})

	It("validates a token it issued", func() {
		token, err := authenticator.Issue(auth.User{ID: "u-1", Username: "alice", Role: auth.RoleUser}, time.Minute)
		Expect(err).To(BeNil())

		user, err := authenticator.Authenticate(token)
		Expect(err).To(BeNil())
		Expect(user.ID).To(Equal("u-1"))
		Expect(user.Username).To(Equal("alice"))
		Expect(user.Role).To(Equal(auth.RoleUser))
	})

	It("keeps the admin role", func() {
		token, err := authenticator.Issue(auth.User{ID: "admin-1", Role: auth.RoleAdmin}, time.Minute)
		Expect(err).To(BeNil())

		user, err := authenticator.Authenticate(token)
		Expect(err).To(BeNil())
		Expect(user.IsAdmin()).To(BeTrue())
		Expect(user.Username).To(Equal("admin-1"))
	})

	It("rejects a token signed with another secret", func() {
		other, err := auth.NewLocalAuthenticator([]byte("other"))
		Expect(err).To(BeNil())
		token, err := other.Issue(auth.User{ID: "u-1"}, time.Minute)
		Expect(err).To(BeNil())

		_, err = authenticator.Authenticate(token)
		Expect(err).ToNot(BeNil())
	})

	It("rejects an expired token", func() {
		token, err := authenticator.Issue(auth.User{ID: "u-1"}, -time.Minute)
		Expect(err).To(BeNil())

		_, err = authenticator.Authenticate(token)
		Expect(err).ToNot(BeNil())
	})

	It("rejects a token without expiration", func() {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-1"}).SignedString([]byte("s3cr3t"))
		Expect(err).To(BeNil())

		_, err = authenticator.Authenticate(token)
		Expect(err).ToNot(BeNil())
	})

	It("puts the user in the request context", func() {
		token, err := authenticator.Issue(auth.User{ID: "u-2", Username: "bob"}, time.Minute)
		Expect(err).To(BeNil())

		h := &handler{}
		ts := httptest.NewServer(authenticator.Authenticator(h))
		defer ts.Close()

		req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
		Expect(err).To(BeNil())
		req.Header.Add("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(200))
		Expect(h.user.Username).To(Equal("bob"))
	})
})

var _ = Describe("none authentication", func() {
	It("defaults to an admin user", func() {
		authenticator, err := auth.NewNoneAuthenticator()
		Expect(err).To(BeNil())

		h := &handler{}
		rec := httptest.NewRecorder()
		authenticator.Authenticator(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(200))
		Expect(h.user.IsAdmin()).To(BeTrue())
	})

	It("takes the user from headers", func() {
		authenticator, err := auth.NewNoneAuthenticator()
		Expect(err).To(BeNil())

		h := &handler{}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Paperlane-User", "carol")
		rec := httptest.NewRecorder()
		authenticator.Authenticator(h).ServeHTTP(rec, req)

		Expect(h.user.ID).To(Equal("carol"))
		Expect(h.user.Role).To(Equal(auth.RoleUser))
	})
})

var _ = Describe("api key", func() {
	It("accepts the configured key and runs as system", func() {
		h := &handler{}
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(auth.APIKeyHeader, "engine-key")
		rec := httptest.NewRecorder()
		auth.RequireAPIKey("engine-key")(h).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(200))
		Expect(h.user.Role).To(Equal(auth.RoleSystem))
	})

	It("rejects a wrong key", func() {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(auth.APIKeyHeader, "nope")
		rec := httptest.NewRecorder()
		auth.RequireAPIKey("engine-key")(&handler{}).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(401))
	})

	It("rejects everything when no key is configured", func() {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		rec := httptest.NewRecorder()
		auth.RequireAPIKey("")(&handler{}).ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(401))
	})
})
